package clickhouse

import (
	"strings"
	"testing"
	"time"
)

func TestWithTimeoutsSetsAllThree(t *testing.T) {
	cfg := &ClientConfig{}
	WithTimeouts(time.Second, 2*time.Second, 3*time.Second)(cfg)

	if cfg.DialTimeout != time.Second {
		t.Errorf("dial timeout = %v, want 1s", cfg.DialTimeout)
	}
	if cfg.ReadTimeout != 2*time.Second {
		t.Errorf("read timeout = %v, want 2s", cfg.ReadTimeout)
	}
	if cfg.WriteTimeout != 3*time.Second {
		t.Errorf("write timeout = %v, want 3s", cfg.WriteTimeout)
	}
}

func TestBuildDSNKeepsWriteTimeoutClientSide(t *testing.T) {
	cfg := ClientConfig{
		Host:         "ch.local",
		Port:         9000,
		Database:     "audit",
		User:         "writer",
		DialTimeout:  time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
	dsn := buildDSN(cfg)

	if !strings.Contains(dsn, "dial_timeout=1s") {
		t.Errorf("dsn missing dial_timeout: %s", dsn)
	}
	if !strings.Contains(dsn, "read_timeout=2s") {
		t.Errorf("dsn missing read_timeout: %s", dsn)
	}
	if strings.Contains(dsn, "write_timeout") {
		t.Errorf("write_timeout must not appear in dsn: %s", dsn)
	}
}
