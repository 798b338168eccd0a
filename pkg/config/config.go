package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Ingest struct {
		Backend string `yaml:"backend" default:"websocket"` // websocket or kafka
		Monitor struct {
			URL            string        `yaml:"url"`
			AuthToken      string        `yaml:"auth_token"`
			Wallets        []string      `yaml:"wallets"`
			ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"2s"`
			PingInterval   time.Duration `yaml:"ping_interval" default:"15s"`
		} `yaml:"monitor"`
		MaxSignalsPerSec int `yaml:"max_signals_per_sec" default:"50"`
		BufferSize       int `yaml:"buffer_size" default:"2000"`
	} `yaml:"ingest"`
	Reputation struct {
		MaxEntries     int           `yaml:"max_entries" default:"10000"`
		TTL            time.Duration `yaml:"ttl" default:"300s"`
		RefreshTimeout time.Duration `yaml:"refresh_timeout" default:"50ms"`
		Redis          struct {
			Enabled  bool   `yaml:"enabled"`
			Addr     string `yaml:"addr" default:"localhost:6379"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"reputation"`
	Scoring struct {
		LeaderBonus    float64 `yaml:"leader_bonus" default:"1.15"`
		TradeThreshold float64 `yaml:"trade_threshold" default:"0.65"`
	} `yaml:"scoring"`
	Breakers struct {
		DrawdownThresholdPct   float64       `yaml:"drawdown_threshold_percent" default:"20"`
		DrawdownCooldown       time.Duration `yaml:"drawdown_cooldown" default:"300s"`
		WinRateWindowSize      int           `yaml:"win_rate_window_size" default:"50"`
		WinRateThresholdPct    float64       `yaml:"win_rate_threshold_percent" default:"40"`
		WinRateMinSamples      int           `yaml:"win_rate_min_samples" default:"10"`
		WinRateCooldown        time.Duration `yaml:"win_rate_cooldown" default:"600s"`
		ConsecutiveLossWarn    int           `yaml:"consecutive_loss_threshold" default:"3"`
		ConsecutiveLossCritical int          `yaml:"consecutive_loss_critical" default:"5"`
		ReductionFactor        float64       `yaml:"reduction_factor" default:"0.5"`
		ConsecutiveLossCooldown time.Duration `yaml:"consecutive_loss_cooldown" default:"300s"`
	} `yaml:"breakers"`
	Sizing struct {
		BasePositionPct       float64 `yaml:"base_position_pct" default:"0.05"`
		MinPositionSOL        float64 `yaml:"min_position_sol" default:"0.1"`
		MaxPositionSOL        float64 `yaml:"max_position_sol" default:"5.0"`
		MaxConcurrentPositions int    `yaml:"max_concurrent_positions" default:"5"`
		MaxCapitalAllocationPct float64 `yaml:"max_capital_allocation_pct" default:"0.5"`
		ReserveSOL            float64 `yaml:"reserve_sol" default:"1.0"`
	} `yaml:"sizing"`
	Portfolio struct {
		StartingBalanceSOL float64 `yaml:"starting_balance_sol" default:"10"`
	} `yaml:"portfolio"`
	Executor struct {
		Mode           string        `yaml:"mode" default:"sim"` // sim or live
		LiveURL        string        `yaml:"live_url"`
		MaxConcurrent  int           `yaml:"max_concurrent" default:"3"`
		MaxRetries     int           `yaml:"max_retries" default:"2"`
		BackoffBase    time.Duration `yaml:"backoff_base" default:"500ms"`
		BackoffMax     time.Duration `yaml:"backoff_max" default:"8s"`
		QuoteTimeout   time.Duration `yaml:"quote_timeout" default:"5s"`
		SignTimeout    time.Duration `yaml:"sign_timeout" default:"5s"`
		SubmitTimeout  time.Duration `yaml:"submit_timeout" default:"10s"`
		ConfirmTimeout time.Duration `yaml:"confirm_timeout" default:"30s"`
		DrainDeadline  time.Duration `yaml:"drain_deadline" default:"30s"`
		SlippageBps    int           `yaml:"slippage_bps" default:"100"`
		Sim            struct {
			Latency     time.Duration `yaml:"latency" default:"50ms"`
			FailureRate float64       `yaml:"failure_rate" default:"0.05"`
		} `yaml:"sim"`
	} `yaml:"executor"`
	Kafka struct {
		Enabled       bool     `yaml:"enabled"`
		Brokers       []string `yaml:"brokers"`
		DecisionTopic string   `yaml:"decision_topic" default:"chainpilot.decisions"`
		OrderTopic    string   `yaml:"order_topic" default:"chainpilot.orders"`
		BreakerTopic  string   `yaml:"breaker_topic" default:"chainpilot.breaker.events"`
		SignalTopic   string   `yaml:"signal_topic" default:"chainpilot.signals.raw"`
		RequiredAcks  int      `yaml:"required_acks" default:"-1"`
		Compression   string   `yaml:"compression" default:"gzip"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"200ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async" default:"true"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"chainpilot-core"`
			Workers    int           `yaml:"workers" default:"4"`
			BufferSize int           `yaml:"buffer_size" default:"1024"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"1048576"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"chainpilot"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert" default:"true"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	} `yaml:"clickhouse"`
	Alerts struct {
		Enabled    bool   `yaml:"enabled"`
		WebhookURL string `yaml:"webhook_url"`
		Redis      struct {
			Addr     string `yaml:"addr" default:"localhost:6379"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db" default:"1"`
		} `yaml:"redis"`
		Workers    int           `yaml:"workers" default:"1"`
		QueueSize  int           `yaml:"queue_size" default:"500"`
		RetryLimit int           `yaml:"retry_limit" default:"3"`
		RetryDelay time.Duration `yaml:"retry_delay" default:"5s"`
	} `yaml:"alerts"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("MONITOR_URL"); v != "" {
		c.Ingest.Monitor.URL = v
	}
	if v := os.Getenv("MONITOR_AUTH_TOKEN"); v != "" {
		c.Ingest.Monitor.AuthToken = v
	}
	if v := os.Getenv("INGEST_BACKEND"); v != "" {
		c.Ingest.Backend = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("EXECUTOR_MODE"); v != "" {
		c.Executor.Mode = v
	}
	if v := os.Getenv("TRADE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Scoring.TradeThreshold = f
		}
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Ingest.Backend != "websocket" && c.Ingest.Backend != "kafka" {
		return fmt.Errorf("ingest.backend must be 'websocket' or 'kafka', got '%s'", c.Ingest.Backend)
	}
	if c.Ingest.Backend == "websocket" && c.Ingest.Monitor.URL == "" {
		return fmt.Errorf("ingest.monitor.url is required for websocket ingest")
	}
	if c.Ingest.Backend == "kafka" && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required for kafka ingest")
	}
	if c.Executor.Mode != "sim" && c.Executor.Mode != "live" {
		return fmt.Errorf("executor.mode must be 'sim' or 'live', got '%s'", c.Executor.Mode)
	}
	if c.Executor.Mode == "live" && c.Executor.LiveURL == "" {
		return fmt.Errorf("executor.live_url is required for live mode")
	}
	if c.Scoring.TradeThreshold < 0 || c.Scoring.TradeThreshold > 1 {
		return fmt.Errorf("scoring.trade_threshold must be in [0,1]")
	}
	if c.Sizing.MinPositionSOL > c.Sizing.MaxPositionSOL {
		return fmt.Errorf("sizing.min_position_sol exceeds max_position_sol")
	}
	return nil
}
