package usecase

import (
	"context"

	"ChainPilot/internal/domain/models"
	drepo "ChainPilot/internal/domain/repository"
	mid "ChainPilot/internal/middleware"
)

// SignalCollector consumes the monitor stream and feeds signals into the
// decision pipeline.
type SignalCollector struct {
	stream  drepo.SignalStream
	proc    *SignalProcessor
	metrics drepo.Metrics
	pipe    *mid.IngressPipeline
}

// NewSignalCollector creates a new SignalCollector instance.
func NewSignalCollector(stream drepo.SignalStream, proc *SignalProcessor, metrics drepo.Metrics, pipe *mid.IngressPipeline) *SignalCollector {
	return &SignalCollector{stream: stream, proc: proc, metrics: metrics, pipe: pipe}
}

// IsConnected returns true if the monitor stream is connected.
func (c *SignalCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *SignalCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	if c.pipe != nil {
		c.pipe.Start(ctx)
	}
	sigCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, sigCh, errCh)
	return nil
}

func (c *SignalCollector) consume(ctx context.Context, sigCh <-chan *models.Signal, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errCh:
			if !ok {
				if sigCh, errCh = c.resume(ctx); sigCh == nil {
					return
				}
				continue
			}
			if err == nil {
				continue
			}
			c.metrics.RecordError("stream")
			if sigCh, errCh = c.resume(ctx); sigCh == nil {
				return
			}
		case s, ok := <-sigCh:
			if !ok {
				if sigCh, errCh = c.resume(ctx); sigCh == nil {
					return
				}
				continue
			}
			if s == nil {
				continue
			}
			if c.pipe != nil {
				_ = c.pipe.Process(ctx, s)
			} else {
				_ = c.proc.Process(ctx, s)
			}
		}
	}
}

// resume re-establishes the stream after a read failure and opens a fresh
// read loop. It retries until the connection comes back or ctx is cancelled,
// in which case both channels are nil.
func (c *SignalCollector) resume(ctx context.Context) (<-chan *models.Signal, <-chan error) {
	for ctx.Err() == nil {
		if err := c.stream.Reconnect(ctx); err != nil {
			c.metrics.RecordError("reconnect")
			continue
		}
		return c.stream.Read(ctx)
	}
	return nil, nil
}

// Processor returns the underlying SignalProcessor for lifecycle management.
func (c *SignalCollector) Processor() *SignalProcessor { return c.proc }

// Shutdown stops the pipeline and closes the stream.
func (c *SignalCollector) Shutdown(ctx context.Context) error {
	if c.pipe != nil {
		c.pipe.Stop()
	}
	return c.stream.Close()
}
