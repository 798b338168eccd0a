package middleware

import (
	"context"
	"sync"

	"ChainPilot/internal/domain/models"
	domrepo "ChainPilot/internal/domain/repository"
	"ChainPilot/internal/service/ratelimit"
)

// Proc is the minimal processor interface the pipeline needs.
type Proc interface {
	Process(ctx context.Context, s *models.Signal) error
}

// IngressPipeline sits between the signal stream and the decision stage.
// It throttles per wallet, buffers bursts, and fans out to a worker pool so
// one slow signal never blocks the others. A full buffer drops the signal
// rather than blocking the producer.
type IngressPipeline struct {
	proc    Proc
	limiter *ratelimit.Limiter
	metrics domrepo.Metrics
	maxRPS  int
	workers int
	bufCh   chan *models.Signal
	stopCh  chan struct{}
	started bool
	mu      sync.Mutex
	wg      sync.WaitGroup
}

type PipelineOption func(*IngressPipeline)

// WithMaxRPS sets the per-wallet signals-per-second throttle.
func WithMaxRPS(n int) PipelineOption {
	return func(p *IngressPipeline) {
		if n > 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets the burst buffer size.
func WithBufferSize(n int) PipelineOption {
	return func(p *IngressPipeline) {
		if n > 0 {
			p.bufCh = make(chan *models.Signal, n)
		}
	}
}

// WithWorkers sets the decision-stage worker count.
func WithWorkers(n int) PipelineOption {
	return func(p *IngressPipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// NewIngressPipeline creates a new pipeline.
func NewIngressPipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *IngressPipeline {
	p := &IngressPipeline{
		proc:    proc,
		limiter: ratelimit.New(),
		metrics: metrics,
		maxRPS:  50,
		workers: 8,
		bufCh:   make(chan *models.Signal, 2000),
		stopCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the decision-stage workers.
func (p *IngressPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for {
				select {
				case <-p.stopCh:
					return
				case s := <-p.bufCh:
					if s == nil {
						continue
					}
					// A single signal's failure is isolated; processing
					// of subsequent signals never halts.
					if err := p.proc.Process(ctx, s); err != nil {
						p.metrics.RecordError("pipeline_process")
					}
				}
			}
		}()
	}
}

// Process admits one raw signal into the pipeline. Never blocks.
func (p *IngressPipeline) Process(ctx context.Context, s *models.Signal) error {
	if s == nil || s.Wallet == "" {
		p.metrics.RecordError("pipeline_invalid")
		return nil
	}
	if !p.limiter.Allow(s.Wallet, float64(p.maxRPS), float64(p.maxRPS)) {
		p.metrics.RecordError("pipeline_throttle")
		return nil
	}
	select {
	case p.bufCh <- s:
	default:
		p.metrics.RecordError("pipeline_buffer_drop")
	}
	return nil
}

// Stop halts the workers. Buffered signals are abandoned.
func (p *IngressPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
	p.wg.Wait()
}
