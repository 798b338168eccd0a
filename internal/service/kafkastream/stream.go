package kafkastream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"ChainPilot/internal/domain/models"
	drepo "ChainPilot/internal/domain/repository"
	pkgkafka "ChainPilot/pkg/kafka"
)

// Stream implements SignalStream over a Kafka topic of raw monitor signals.
// Used when the monitor publishes to Kafka instead of serving a WebSocket.
type Stream struct {
	consumer *pkgkafka.Consumer
	topic    string

	mu      sync.Mutex
	sigCh   chan *models.Signal
	errCh   chan error
	started bool
}

// New creates a Kafka-backed SignalStream.
func New(consumer *pkgkafka.Consumer, topic string) drepo.SignalStream {
	return &Stream{
		consumer: consumer,
		topic:    topic,
		sigCh:    make(chan *models.Signal, 1024),
		errCh:    make(chan error, 1),
	}
}

// Topic implements kafka.MessageHandler.
func (s *Stream) Topic() string { return s.topic }

// Handle decodes one raw signal message and forwards it downstream.
func (s *Stream) Handle(_ context.Context, data []byte) error {
	var sig models.Signal
	if err := json.Unmarshal(data, &sig); err != nil {
		return fmt.Errorf("decode signal: %w", err)
	}
	if sig.ReceivedAt.IsZero() {
		sig.ReceivedAt = time.Now()
	}
	select {
	case s.sigCh <- &sig:
	default:
		// drop on backpressure
	}
	return nil
}

// Connect registers the handler and starts the consumer.
func (s *Stream) Connect(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	s.consumer.RegisterHandler(s)
	if err := s.consumer.Start(); err != nil {
		return fmt.Errorf("kafka stream start: %w", err)
	}
	s.started = true
	return nil
}

// Subscribe is a no-op; topic interest is fixed at construction.
func (s *Stream) Subscribe(context.Context) error { return nil }

// Read returns the signal and error channels.
func (s *Stream) Read(context.Context) (<-chan *models.Signal, <-chan error) {
	return s.sigCh, s.errCh
}

// Reconnect is a no-op; the consumer group rebalances on its own.
func (s *Stream) Reconnect(context.Context) error { return nil }

// Close stops the consumer.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	s.started = false
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.consumer.Stop(ctx)
}

// IsConnected reports whether the consumer is running.
func (s *Stream) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}
