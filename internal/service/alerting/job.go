package alerting

import (
	"context"
	"fmt"

	xhttp "ChainPilot/pkg/http"
	"ChainPilot/pkg/logger"
	pkgqueue "ChainPilot/pkg/queue"
)

// DeliveryJob consumes queued alerts and delivers them to the operator
// webhook. Without a webhook configured it logs the alert instead.
type DeliveryJob struct {
	log        *logger.Logger
	client     *xhttp.Client
	webhookURL string
}

// NewDeliveryJob creates the alert delivery job.
func NewDeliveryJob(log *logger.Logger, client *xhttp.Client, webhookURL string) *DeliveryJob {
	return &DeliveryJob{log: log, client: client, webhookURL: webhookURL}
}

func (j *DeliveryJob) Name() string { return "alert_delivery" }

func (j *DeliveryJob) Type() string { return msgTypeAlert }

func (j *DeliveryJob) Handle(ctx context.Context, payload interface{}) error {
	a, err := pkgqueue.ParsePayload[Alert](payload)
	if err != nil {
		return fmt.Errorf("parse alert payload: %w", err)
	}

	if j.webhookURL == "" || j.client == nil {
		j.log.Warn("alert delivered to log only",
			logger.String("severity", a.Severity),
			logger.String("title", a.Title),
		)
		return nil
	}

	if err := j.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    j.webhookURL,
		Body:   a,
	}, nil); err != nil {
		return fmt.Errorf("deliver alert: %w", err)
	}
	return nil
}

var _ pkgqueue.Job = (*DeliveryJob)(nil)

// TypeLogBatch is the queue message type for aggregated error-log batches.
const TypeLogBatch = "aggregated_logs"

// LogBatchJob consumes aggregated error-log batches and forwards them to the
// operator webhook, or summarizes them in the log when no webhook is set.
type LogBatchJob struct {
	log        *logger.Logger
	client     *xhttp.Client
	webhookURL string
}

func NewLogBatchJob(log *logger.Logger, client *xhttp.Client, webhookURL string) *LogBatchJob {
	return &LogBatchJob{log: log, client: client, webhookURL: webhookURL}
}

func (j *LogBatchJob) Name() string { return "log_batch" }

func (j *LogBatchJob) Type() string { return TypeLogBatch }

func (j *LogBatchJob) Handle(ctx context.Context, payload interface{}) error {
	entries, err := pkgqueue.ParsePayload[[]logger.AggregatedLogEntry](payload)
	if err != nil {
		return fmt.Errorf("parse log batch payload: %w", err)
	}

	if j.webhookURL == "" || j.client == nil {
		total := 0
		for _, e := range *entries {
			total += e.Count
		}
		j.log.Warn("error log batch",
			logger.Int("distinct", len(*entries)),
			logger.Int("total", total),
		)
		return nil
	}

	if err := j.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    j.webhookURL,
		Body:   entries,
	}, nil); err != nil {
		return fmt.Errorf("deliver log batch: %w", err)
	}
	return nil
}

var _ pkgqueue.Job = (*LogBatchJob)(nil)
