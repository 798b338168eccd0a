package alerting

import (
	"context"
	"time"

	domrepo "ChainPilot/internal/domain/repository"
	"ChainPilot/pkg/logger"
	pkgqueue "ChainPilot/pkg/queue"
)

const msgTypeAlert = "alert"

// Alert is the operator-facing alert payload.
type Alert struct {
	Severity string      `json:"severity"`
	Title    string      `json:"title"`
	Payload  interface{} `json:"payload,omitempty"`
	At       time.Time   `json:"at"`
}

// QueueSink publishes alerts onto the Redis job queue for asynchronous
// delivery. Publish failures are not retried here; the alert is logged so it
// is never silently lost.
type QueueSink struct {
	q   pkgqueue.QueueService
	log *logger.Logger
}

// NewQueueSink creates an alert sink over the queue service.
func NewQueueSink(q pkgqueue.QueueService, log *logger.Logger) domrepo.AlertSink {
	return &QueueSink{q: q, log: log}
}

func (s *QueueSink) Alert(ctx context.Context, severity, title string, payload interface{}) error {
	a := Alert{Severity: severity, Title: title, Payload: payload, At: time.Now()}
	if err := s.q.PublishMessage(ctx, msgTypeAlert, a); err != nil {
		s.log.Error("alert publish failed",
			logger.String("title", title),
			logger.String("severity", severity),
			logger.Error(err),
		)
		return err
	}
	return nil
}

// LogSink writes alerts straight to the logger. Used when the alert queue is
// disabled.
type LogSink struct {
	log *logger.Logger
}

// NewLogSink creates a logger-backed alert sink.
func NewLogSink(log *logger.Logger) domrepo.AlertSink {
	return &LogSink{log: log}
}

func (s *LogSink) Alert(_ context.Context, severity, title string, payload interface{}) error {
	if severity == "critical" {
		s.log.Error("alert", logger.String("title", title), logger.Any("payload", payload))
	} else {
		s.log.Warn("alert", logger.String("title", title), logger.Any("payload", payload))
	}
	return nil
}
