package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"ChainPilot/internal/domain/models"
	drepo "ChainPilot/internal/domain/repository"
	"ChainPilot/internal/services/execution"
	"ChainPilot/internal/services/risk"
	"ChainPilot/internal/services/scoring"
	"ChainPilot/internal/services/sizing"
	"ChainPilot/pkg/config"
	"ChainPilot/pkg/logger"
)

// SignalProcessor drives one signal through the full decision pipeline:
// validate, filter, score, threshold, risk gate, size, enqueue. Each call is
// an independent task; failures are isolated to the signal that caused them.
type SignalProcessor struct {
	cfg       *config.Store
	filter    *SignalFilter
	cluster   drepo.ClusterService
	safety    drepo.TokenSafety
	bank      *risk.Bank
	exec      *execution.Executor
	portfolio drepo.Portfolio
	store     drepo.Storage
	pub       drepo.Publisher
	metrics   drepo.Metrics
	log       *logger.Logger
	validate  *validator.Validate
}

// NewSignalProcessor creates a new SignalProcessor instance.
func NewSignalProcessor(
	cfg *config.Store,
	filter *SignalFilter,
	cluster drepo.ClusterService,
	safety drepo.TokenSafety,
	bank *risk.Bank,
	exec *execution.Executor,
	portfolio drepo.Portfolio,
	store drepo.Storage,
	pub drepo.Publisher,
	metrics drepo.Metrics,
	log *logger.Logger,
) *SignalProcessor {
	return &SignalProcessor{
		cfg:       cfg,
		filter:    filter,
		cluster:   cluster,
		safety:    safety,
		bank:      bank,
		exec:      exec,
		portfolio: portfolio,
		store:     store,
		pub:       pub,
		metrics:   metrics,
		log:       log,
		validate:  validator.New(),
	}
}

// Process runs the decision pipeline for a single signal. The returned error
// is for accounting only; the caller keeps consuming the stream either way.
func (p *SignalProcessor) Process(ctx context.Context, s *models.Signal) error {
	if s == nil {
		return fmt.Errorf("%w: nil signal", models.ErrValidation)
	}
	start := time.Now()
	if s.ReceivedAt.IsZero() {
		s.ReceivedAt = start
	}

	if err := p.validate.Struct(s); err != nil {
		p.metrics.RecordError("validation")
		return fmt.Errorf("%w: %v", models.ErrValidation, err)
	}

	status, entry, err := p.filter.Filter(ctx, s)
	if err != nil {
		// Lookup failure drops the signal without raising.
		p.log.Warn("signal dropped on reputation lookup failure",
			logger.String("wallet", s.Wallet),
			logger.Error(err))
		p.audit(ctx, p.record(s, status, models.ScoredSignal{}, models.ThresholdResult{}, models.SizingDecision{}, err.Error()))
		return nil
	}
	if status != models.FilterPassed {
		p.audit(ctx, p.record(s, status, models.ScoredSignal{}, models.ThresholdResult{}, models.SizingDecision{}, ""))
		return nil
	}

	snap := p.cfg.Snapshot()

	// Cluster lookup failure degrades to a neutral boost; token-safety
	// failure degrades to unsafe. The two postures differ on purpose.
	boost, leader := 1.0, false
	if info, cerr := p.cluster.GetClusterInfo(ctx, s.Wallet); cerr != nil {
		p.metrics.RecordError("cluster_lookup")
		p.log.Warn("cluster lookup failed, neutral boost applied",
			logger.String("wallet", s.Wallet),
			logger.Error(cerr))
	} else {
		boost, leader = info.AmplificationFactor, info.IsLeader
	}

	tokenSafe, rejectReason := false, ""
	if res, serr := p.safety.Evaluate(ctx, s.Token); serr != nil {
		p.metrics.RecordError("token_safety")
		rejectReason = "token safety check unavailable"
	} else {
		tokenSafe, rejectReason = res.Safe, res.RejectReason
	}

	scorer := scoring.NewScorer(snap.Scoring.LeaderBonus)
	scored := scorer.Score(scoring.Input{
		Signal:       s,
		WalletScore:  entry.ReputationScore,
		ClusterBoost: boost,
		IsLeader:     leader,
		TokenSafe:    tokenSafe,
		RejectReason: rejectReason,
	})
	p.metrics.RecordScore(scored.FinalScore)

	checker := scoring.NewThresholdChecker(snap.Scoring.TradeThreshold)
	thr := checker.Check(scored)
	if !thr.Passed {
		p.audit(ctx, p.record(s, status, scored, thr, models.SizingDecision{Outcome: models.SizingSkip}, "below threshold"))
		return nil
	}

	riskSnap := p.bank.Admit()

	view, verr := p.portfolio.View(ctx)
	if verr != nil {
		p.metrics.RecordError("portfolio_view")
		p.bank.ReleaseProbe()
		return fmt.Errorf("%w: portfolio view: %v", models.ErrLookupFailure, verr)
	}

	sizer := sizing.NewSizer(sizing.Config{
		BasePositionPct:         snap.Sizing.BasePositionPct,
		MinPositionSOL:          snap.Sizing.MinPositionSOL,
		MaxPositionSOL:          snap.Sizing.MaxPositionSOL,
		MaxConcurrentPositions:  snap.Sizing.MaxConcurrentPositions,
		MaxCapitalAllocationPct: snap.Sizing.MaxCapitalAllocationPct,
		ReserveSOL:              snap.Sizing.ReserveSOL,
	})
	decision := sizer.Decide(scored, thr.PositionMultiplier, view, riskSnap)
	p.metrics.RecordSizing(string(decision.Outcome))

	rec := p.record(s, status, scored, thr, decision, decision.Reason)
	if !decision.ShouldTrade {
		p.bank.ReleaseProbe()
		p.audit(ctx, rec)
		return nil
	}

	order := p.buildOrder(s, scored, decision, snap.Executor.SlippageBps)
	if err := p.exec.Submit(order); err != nil {
		p.bank.ReleaseProbe()
		p.metrics.RecordError("submit")
		rec.Outcome = models.SizingSkip
		rec.Reason = "order queue closed"
		p.audit(ctx, rec)
		return fmt.Errorf("submit order: %w", err)
	}

	p.audit(ctx, rec)
	p.metrics.RecordLatency("decision", time.Since(start).Seconds())
	return nil
}

// buildOrder turns a sizing decision into a queued order. Exits always
// outrank entries; among entries, higher cluster conviction ranks higher.
func (p *SignalProcessor) buildOrder(s *models.Signal, scored models.ScoredSignal, d models.SizingDecision, slippageBps int) *models.Order {
	priority := models.PriorityEntryBase
	if s.Direction == models.DirectionSell {
		priority = models.PriorityExit
	} else if scored.ClusterBoost > 1 {
		priority = int(float64(models.PriorityEntryBase) * scored.ClusterBoost)
	}

	sig := s.TxSignature
	if len(sig) > 12 {
		sig = sig[:12]
	}
	return &models.Order{
		ID:          fmt.Sprintf("%s-%d", sig, time.Now().UnixNano()),
		TxSignature: s.TxSignature,
		Side:        s.Direction,
		Token:       s.Token,
		AmountSOL:   d.FinalSizeSOL,
		SlippageBps: slippageBps,
		Status:      models.OrderPending,
		Priority:    priority,
		CreatedAt:   time.Now(),
	}
}

func (p *SignalProcessor) record(s *models.Signal, status models.FilterStatus, scored models.ScoredSignal, thr models.ThresholdResult, d models.SizingDecision, reason string) *models.DecisionRecord {
	return &models.DecisionRecord{
		TxSignature:  s.TxSignature,
		Wallet:       s.Wallet,
		Token:        s.Token,
		Direction:    s.Direction,
		FilterStatus: status,
		FinalScore:   scored.FinalScore,
		Threshold:    thr.Threshold,
		Passed:       thr.Passed,
		Outcome:      d.Outcome,
		SizeSOL:      d.FinalSizeSOL,
		Reason:       reason,
		DecidedAt:    time.Now(),
	}
}

// audit persists and publishes the decision. Audit failures are logged and
// never fail the pipeline.
func (p *SignalProcessor) audit(ctx context.Context, rec *models.DecisionRecord) {
	if p.store != nil {
		if err := p.store.StoreDecision(ctx, rec); err != nil {
			p.metrics.RecordError("store_decision")
			p.log.Error("store decision failed", logger.Error(err))
		}
	}
	if p.pub != nil {
		if err := p.pub.PublishDecision(ctx, rec); err != nil {
			p.metrics.RecordError("publish_decision")
			p.log.Error("publish decision failed", logger.Error(err))
		}
	}
}
