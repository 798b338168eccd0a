package repository

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"ChainPilot/internal/domain/models"
	domrepo "ChainPilot/internal/domain/repository"
)

// SimExecutor is a simulated trade executor for development and paper
// trading. It models network latency and a configurable failure rate so the
// retry and breaker paths get exercised without touching a chain.
type SimExecutor struct {
	latency     time.Duration
	failureRate float64

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSimExecutor creates a simulated executor.
func NewSimExecutor(latency time.Duration, failureRate float64) domrepo.TradeExecutor {
	return &SimExecutor{
		latency:     latency,
		failureRate: failureRate,
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *SimExecutor) ExecuteBuy(ctx context.Context, token string, amountSOL float64, slippageBps int) (models.Fill, error) {
	return s.execute(ctx, "buy", token, amountSOL, slippageBps)
}

func (s *SimExecutor) ExecuteSell(ctx context.Context, token string, amountSOL float64, slippageBps int) (models.Fill, error) {
	return s.execute(ctx, "sell", token, amountSOL, slippageBps)
}

func (s *SimExecutor) execute(ctx context.Context, side, token string, amountSOL float64, slippageBps int) (models.Fill, error) {
	select {
	case <-time.After(s.latency):
	case <-ctx.Done():
		return models.Fill{}, fmt.Errorf("sim %s: %w", side, ctx.Err())
	}

	s.mu.Lock()
	roll := s.rnd.Float64()
	price := 0.9 + 0.2*s.rnd.Float64()
	n := s.rnd.Int63()
	s.mu.Unlock()

	if roll < s.failureRate {
		return models.Fill{}, fmt.Errorf("sim %s %s: %w", side, token, models.ErrExecutionFailure)
	}

	// Simulated slippage inside the allowed band.
	price *= 1 + float64(slippageBps)/10000*(roll-0.5)

	return models.Fill{
		TxSignature: fmt.Sprintf("sim-%d", n),
		Token:       token,
		AmountSOL:   amountSOL,
		FillPrice:   price,
		FilledAt:    time.Now(),
	}, nil
}

// Quote simulates route discovery and returns an indicative price.
func (s *SimExecutor) Quote(ctx context.Context, token string, amountSOL float64) (float64, error) {
	select {
	case <-time.After(s.latency / 2):
	case <-ctx.Done():
		return 0, fmt.Errorf("sim quote: %w", ctx.Err())
	}
	s.mu.Lock()
	price := 0.9 + 0.2*s.rnd.Float64()
	s.mu.Unlock()
	return price, nil
}

// Sign simulates transaction signing.
func (s *SimExecutor) Sign(ctx context.Context, token string, amountSOL float64) error {
	select {
	case <-time.After(s.latency / 4):
		return nil
	case <-ctx.Done():
		return fmt.Errorf("sim sign: %w", ctx.Err())
	}
}
