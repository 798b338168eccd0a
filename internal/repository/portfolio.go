package repository

import (
	"context"
	"sync"

	"ChainPilot/internal/domain/models"
	domrepo "ChainPilot/internal/domain/repository"
)

// MemoryPortfolio tracks balance and open positions from order fills. The
// authoritative balance lives on-chain; this view only needs to be accurate
// enough for sizing and risk, and is reconciled by applying every fill.
// Equity (balance plus allocated basis) and its running peak feed the
// drawdown circuit breaker.
type MemoryPortfolio struct {
	mu        sync.Mutex
	balance   float64
	peak      float64
	positions map[string]float64 // token -> allocated SOL (cost basis)
}

// NewMemoryPortfolio creates a portfolio seeded with the starting balance.
func NewMemoryPortfolio(startingBalanceSOL float64) *MemoryPortfolio {
	return &MemoryPortfolio{
		balance:   startingBalanceSOL,
		peak:      startingBalanceSOL,
		positions: make(map[string]float64),
	}
}

// View implements repository.Portfolio.
func (p *MemoryPortfolio) View(ctx context.Context) (models.PortfolioView, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var allocated float64
	for _, v := range p.positions {
		allocated += v
	}
	return models.PortfolioView{
		BalanceSOL:    p.balance,
		OpenPositions: len(p.positions),
		AllocatedSOL:  allocated,
	}, nil
}

// ApplyFill updates the view from one executed order and returns the
// realized PnL in SOL. Buys move balance into position basis (PnL zero);
// sells credit the proceeds, release the closed basis, and realize the
// difference.
func (p *MemoryPortfolio) ApplyFill(o *models.Order, fill models.Fill) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	var pnl float64
	if o.Side == models.DirectionBuy {
		p.balance -= fill.AmountSOL
		p.positions[o.Token] += fill.AmountSOL
	} else {
		basis := o.AmountSOL
		if held := p.positions[o.Token]; basis > held {
			basis = held
		}
		p.balance += fill.AmountSOL
		p.positions[o.Token] -= basis
		if p.positions[o.Token] <= 0 {
			delete(p.positions, o.Token)
		}
		pnl = fill.AmountSOL - basis
	}

	if eq := p.equityLocked(); eq > p.peak {
		p.peak = eq
	}
	return pnl
}

// ApplyOrder updates the view from a terminal order, preferring the executed
// amount over the sized amount. Returns the realized PnL in SOL.
func (p *MemoryPortfolio) ApplyOrder(o *models.Order) float64 {
	if o.Status != models.OrderSuccess {
		return 0
	}
	amount := o.FilledSOL
	if amount == 0 {
		amount = o.AmountSOL
	}
	return p.ApplyFill(o, models.Fill{Token: o.Token, AmountSOL: amount})
}

// DrawdownPct reports how far equity sits below its running peak, in
// percent. Zero while equity is at or above the peak.
func (p *MemoryPortfolio) DrawdownPct() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.peak <= 0 {
		return 0
	}
	dd := (p.peak - p.equityLocked()) / p.peak * 100
	if dd < 0 {
		return 0
	}
	return dd
}

// equityLocked is balance plus allocated basis. Caller holds mu.
func (p *MemoryPortfolio) equityLocked() float64 {
	eq := p.balance
	for _, v := range p.positions {
		eq += v
	}
	return eq
}

var _ domrepo.Portfolio = (*MemoryPortfolio)(nil)
