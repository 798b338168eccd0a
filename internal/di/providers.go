package di

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"ChainPilot/internal/domain/models"
	"ChainPilot/internal/domain/repository"
	"ChainPilot/internal/handler/api"
	mid "ChainPilot/internal/middleware"
	internalrepo "ChainPilot/internal/repository"
	"ChainPilot/internal/service/alerting"
	icache "ChainPilot/internal/service/cache"
	"ChainPilot/internal/service/kafkastream"
	"ChainPilot/internal/service/monitorws"
	"ChainPilot/internal/services/execution"
	"ChainPilot/internal/services/reputation"
	"ChainPilot/internal/services/risk"
	"ChainPilot/internal/usecase"
	pkgcache "ChainPilot/pkg/cache"
	pkgch "ChainPilot/pkg/clickhouse"
	"ChainPilot/pkg/config"
	xhttp "ChainPilot/pkg/http"
	pkgkafka "ChainPilot/pkg/kafka"
	"ChainPilot/pkg/logger"
	"ChainPilot/pkg/metrics"
	pkgqueue "ChainPilot/pkg/queue"
	"ChainPilot/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	level := "info"
	format := "json"
	if cfg.Environment == "development" {
		level = "debug"
		format = "console"
	}
	return logger.New(&logger.Config{Level: level, Format: format, Output: "stdout"})
}

// ProvideMetrics creates the Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideHTTPClient creates the shared outbound HTTP client.
func ProvideHTTPClient() *xhttp.Client {
	return xhttp.NewClient(xhttp.WithTimeout(30 * time.Second))
}

// ProvideClickHouseClient creates a ClickHouse client, or nil when audit
// storage runs in memory.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.SchemaStatements); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideStorage creates the audit storage.
func ProvideStorage(chClient *pkgch.Client) repository.Storage {
	if chClient == nil {
		return internalrepo.NewMemoryStorage(10000)
	}
	return internalrepo.NewClickHouseStorage(chClient)
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is off.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvidePublisher creates the event publisher.
func ProvidePublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.Publisher {
	if producer == nil {
		return internalrepo.NoopPublisher{}
	}
	return internalrepo.NewKafkaPublisher(producer, internalrepo.Topics{
		Decisions: cfg.Kafka.DecisionTopic,
		Orders:    cfg.Kafka.OrderTopic,
		Breakers:  cfg.Kafka.BreakerTopic,
	})
}

// ProvideAlertSink creates the alert sink: Redis-queued delivery when
// enabled, logger otherwise.
func ProvideAlertSink(cfg *config.Config, log *logger.Logger, client *xhttp.Client) (repository.AlertSink, *pkgqueue.RedisQueue) {
	if !cfg.Alerts.Enabled {
		return alerting.NewLogSink(log), nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Alerts.Redis.Addr,
		Password: cfg.Alerts.Redis.Password,
		DB:       cfg.Alerts.Redis.DB,
	})
	qcfg := &pkgqueue.QueueConfig{
		Workers:    cfg.Alerts.Workers,
		QueueSize:  cfg.Alerts.QueueSize,
		RetryLimit: cfg.Alerts.RetryLimit,
		RetryDelay: cfg.Alerts.RetryDelay,
	}
	jobs := []pkgqueue.Job{
		alerting.NewDeliveryJob(log, client, cfg.Alerts.WebhookURL),
		alerting.NewLogBatchJob(log, client, cfg.Alerts.WebhookURL),
	}
	q := pkgqueue.NewRedisConsumer(log, qcfg, rdb, jobs,
		pkgqueue.WithKeyPrefix("chainpilot:alerts"))
	return alerting.NewQueueSink(q, log), q
}

// ProvideMonitorAPI creates the wallet-monitor HTTP client.
func ProvideMonitorAPI(client *xhttp.Client, cfg *config.Config) *internalrepo.MonitorAPI {
	return internalrepo.NewMonitorAPI(client, cfg.Ingest.Monitor.URL, cfg.Ingest.Monitor.AuthToken)
}

// ProvideReputationCache creates the reputation cache, with a Redis L2 when
// configured.
func ProvideReputationCache(monitor *internalrepo.MonitorAPI, cfg *config.Config, m repository.Metrics) (*reputation.Cache, error) {
	opts := []reputation.Option{
		reputation.WithMaxEntries(cfg.Reputation.MaxEntries),
		reputation.WithTTL(cfg.Reputation.TTL),
		reputation.WithRefreshTimeout(cfg.Reputation.RefreshTimeout),
		reputation.WithMetrics(m),
	}
	if cfg.Reputation.Redis.Enabled {
		host, portStr, err := net.SplitHostPort(cfg.Reputation.Redis.Addr)
		if err != nil {
			return nil, fmt.Errorf("reputation redis addr: %w", err)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("reputation redis port: %w", err)
		}
		rc, err := pkgcache.NewRedisCache(
			pkgcache.WithRedisHost(host),
			pkgcache.WithRedisPort(port),
			pkgcache.WithRedisPassword(cfg.Reputation.Redis.Password),
			pkgcache.WithRedisDB(cfg.Reputation.Redis.DB),
			pkgcache.WithRedisPrefix("chainpilot"),
		)
		if err != nil {
			return nil, fmt.Errorf("reputation l2: %w", err)
		}
		l2 := pkgcache.NewLayeredCache(rc,
			pkgcache.WithLayeredMemorySize(cfg.Reputation.MaxEntries),
			pkgcache.WithLayeredPromoteTTL(30*time.Second),
		)
		opts = append(opts, reputation.WithL2(l2))
	}
	return reputation.NewCache(monitor, opts...), nil
}

// ProvideBank creates the circuit breaker bank with event fan-out to the
// publisher, alert sink, and metrics.
func ProvideBank(cfg *config.Config, pub repository.Publisher, alerts repository.AlertSink, m repository.Metrics, log *logger.Logger) *risk.Bank {
	return risk.NewBank(breakerConfig(cfg), risk.WithEventFunc(func(ev models.BreakerEvent) {
		m.RecordBreakerState(string(ev.Kind), string(ev.To))
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := pub.PublishBreakerEvent(ctx, &ev); err != nil {
			log.Warn("breaker event publish failed", logger.Error(err))
		}
		severity := "warning"
		if ev.To == models.BreakerOpen {
			severity = "critical"
		}
		if err := alerts.Alert(ctx, severity, fmt.Sprintf("breaker %s -> %s", ev.Kind, ev.To), ev); err != nil {
			log.Warn("breaker alert failed", logger.Error(err))
		}
	}))
}

// breakerConfig maps the file config onto the bank's limits.
func breakerConfig(cfg *config.Config) risk.Config {
	return risk.Config{
		DrawdownThresholdPct:    cfg.Breakers.DrawdownThresholdPct,
		DrawdownCooldown:        cfg.Breakers.DrawdownCooldown,
		WinRateWindowSize:       cfg.Breakers.WinRateWindowSize,
		WinRateThresholdPct:     cfg.Breakers.WinRateThresholdPct,
		WinRateMinSamples:       cfg.Breakers.WinRateMinSamples,
		WinRateCooldown:         cfg.Breakers.WinRateCooldown,
		ConsecutiveLossWarn:     cfg.Breakers.ConsecutiveLossWarn,
		ConsecutiveLossCritical: cfg.Breakers.ConsecutiveLossCritical,
		ReductionFactor:         cfg.Breakers.ReductionFactor,
		ConsecutiveLossCooldown: cfg.Breakers.ConsecutiveLossCooldown,
	}
}

func retryPolicyConfig(cfg *config.Config) execution.RetryPolicy {
	return execution.RetryPolicy{
		MaxRetries:  cfg.Executor.MaxRetries,
		BaseBackoff: cfg.Executor.BackoffBase,
		MaxBackoff:  cfg.Executor.BackoffMax,
	}
}

func stageTimeoutsConfig(cfg *config.Config) execution.StageTimeouts {
	return execution.StageTimeouts{
		Quote:   cfg.Executor.QuoteTimeout,
		Sign:    cfg.Executor.SignTimeout,
		Submit:  cfg.Executor.SubmitTimeout,
		Confirm: cfg.Executor.ConfirmTimeout,
	}
}

// ProvidePortfolio creates the in-memory portfolio view.
func ProvidePortfolio(cfg *config.Config) *internalrepo.MemoryPortfolio {
	return internalrepo.NewMemoryPortfolio(cfg.Portfolio.StartingBalanceSOL)
}

// ProvideTradeExecutor selects the live or simulated executor once at
// construction.
func ProvideTradeExecutor(cfg *config.Config, client *xhttp.Client) repository.TradeExecutor {
	if cfg.Executor.Mode == "live" {
		return internalrepo.NewLiveExecutor(client, cfg.Executor.LiveURL)
	}
	return internalrepo.NewSimExecutor(cfg.Executor.Sim.Latency, cfg.Executor.Sim.FailureRate)
}

// ProvideExecutor creates the queued executor with breaker feedback,
// portfolio updates, and order audit wired in.
func ProvideExecutor(
	cfg *config.Config,
	trader repository.TradeExecutor,
	bank *risk.Bank,
	portfolio *internalrepo.MemoryPortfolio,
	store repository.Storage,
	pub repository.Publisher,
	alerts repository.AlertSink,
	m repository.Metrics,
	log *logger.Logger,
) *execution.Executor {
	queue := execution.NewQueue()

	// Realized PnL is computed by the portfolio when the order callback
	// applies the terminal order, before the outcome callback fires.
	var pnlMu sync.Mutex
	pnlByOrder := make(map[string]float64)

	return execution.NewExecutor(queue, trader,
		execution.WithMaxConcurrent(cfg.Executor.MaxConcurrent),
		execution.WithRetryPolicy(retryPolicyConfig(cfg)),
		execution.WithStageTimeouts(stageTimeoutsConfig(cfg)),
		execution.WithOutcomeFunc(func(out models.TradeOutcome) {
			pnlMu.Lock()
			out.PnLSOL = pnlByOrder[out.OrderID]
			delete(pnlByOrder, out.OrderID)
			pnlMu.Unlock()
			out.DrawdownPct = portfolio.DrawdownPct()
			bank.RecordOutcome(out)
		}),
		execution.WithOrderFunc(func(o *models.Order) {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := pub.PublishOrder(ctx, o); err != nil {
				log.Warn("order publish failed", logger.Error(err))
			}
			if o.Status.Terminal() {
				pnl := portfolio.ApplyOrder(o)
				if o.Status != models.OrderCancelled {
					pnlMu.Lock()
					pnlByOrder[o.ID] = pnl
					pnlMu.Unlock()
				}
				if err := store.StoreOrder(ctx, o); err != nil {
					log.Warn("order store failed", logger.Error(err))
				}
			}
		}),
		execution.WithAlertSink(alerts),
		execution.WithMetrics(m),
		execution.WithLogger(log),
	)
}

// ProvideSignalStream selects the WebSocket or Kafka ingest backend.
func ProvideSignalStream(cfg *config.Config, consumer *pkgkafka.Consumer, log *logger.Logger) repository.SignalStream {
	if cfg.Ingest.Backend == "kafka" {
		return kafkastream.New(consumer, cfg.Kafka.SignalTopic)
	}
	return monitorws.New(
		cfg.Ingest.Monitor.URL,
		cfg.Ingest.Monitor.AuthToken,
		cfg.Ingest.Monitor.Wallets,
		cfg.Ingest.Monitor.ReconnectDelay,
		cfg.Ingest.Monitor.PingInterval,
		log,
	)
}

// ProvideKafkaConsumer creates a Kafka consumer for the kafka ingest
// backend, nil otherwise.
func ProvideKafkaConsumer(cfg *config.Config, m repository.Metrics) (*pkgkafka.Consumer, error) {
	if cfg.Ingest.Backend != "kafka" {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.HookFuncs{
		Err: func(_ context.Context, topic string, _ kafka.Message, _ []byte, _ error) {
			m.RecordError("kafka_consume_" + topic)
		},
	})
	return consumer, nil
}

// ProvideSignalFilter creates the reputation filter.
func ProvideSignalFilter(cache *reputation.Cache, m repository.Metrics) *usecase.SignalFilter {
	return usecase.NewSignalFilter(cache, m)
}

// ProvideSignalProcessor creates the decision pipeline.
func ProvideSignalProcessor(
	store *config.Store,
	filter *usecase.SignalFilter,
	monitor *internalrepo.MonitorAPI,
	bank *risk.Bank,
	exec *execution.Executor,
	portfolio *internalrepo.MemoryPortfolio,
	storage repository.Storage,
	pub repository.Publisher,
	m repository.Metrics,
	log *logger.Logger,
) *usecase.SignalProcessor {
	return usecase.NewSignalProcessor(store, filter, monitor, monitor, bank, exec, portfolio, storage, pub, m, log)
}

// ProvideSignalCollector creates the collector with the throttled ingress
// pipeline between the stream and the processor.
func ProvideSignalCollector(
	stream repository.SignalStream,
	processor *usecase.SignalProcessor,
	m repository.Metrics,
	cfg *config.Config,
) *usecase.SignalCollector {
	pipe := mid.NewIngressPipeline(processor, m,
		mid.WithMaxRPS(cfg.Ingest.MaxSignalsPerSec),
		mid.WithBufferSize(cfg.Ingest.BufferSize),
	)
	return usecase.NewSignalCollector(stream, processor, m, pipe)
}

// ProvideOpsHandler creates the operator API handler.
func ProvideOpsHandler(
	cfg *config.Config,
	log *logger.Logger,
	bank *risk.Bank,
	exec *execution.Executor,
	collector *usecase.SignalCollector,
	storage repository.Storage,
) *api.OpsHandler {
	h := api.NewOpsHandler(log, bank, exec, collector, storage)
	if r := cfg.Reputation.Redis; r.Enabled {
		h.SetCache(icache.NewRedisCache(icache.RedisConfig{Addr: r.Addr, Password: r.Password, DB: r.DB}))
	} else {
		h.SetCache(icache.NewTTLCache())
	}
	return h
}

// ProvideApp assembles the application.
func ProvideApp(
	cfg *config.Config,
	store *config.Store,
	log *logger.Logger,
	collector *usecase.SignalCollector,
	bank *risk.Bank,
	exec *execution.Executor,
	handler *api.OpsHandler,
	alertQueue *pkgqueue.RedisQueue,
	chClient *pkgch.Client,
	pub repository.Publisher,
	storage repository.Storage,
) *server.App {
	// Breaker limits and executor retry/timeout settings follow config
	// reloads; scoring and sizing already read the snapshot per decision.
	store.OnSwap(func(c *config.Config) {
		bank.UpdateConfig(breakerConfig(c))
		exec.UpdateSettings(retryPolicyConfig(c), stageTimeoutsConfig(c))
	})

	if alertQueue != nil {
		log.AddCollector(&logger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          alerting.TypeLogBatch,
			Publisher:      alertQueue,
		})
	}
	return server.New(cfg, store, log, collector, exec, handler, alertQueue, chClient, pub, storage)
}
