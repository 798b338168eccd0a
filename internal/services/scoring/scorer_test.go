package scoring

import (
	"math"
	"testing"
	"time"

	"ChainPilot/internal/domain/models"
)

func testSignal() *models.Signal {
	return &models.Signal{
		TxSignature: "sig-1",
		Wallet:      "wallet-aaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		Token:       "token-bbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
		Direction:   models.DirectionBuy,
		Timestamp:   time.Now(),
	}
}

func TestScoreFormula(t *testing.T) {
	s := NewScorer(1.15)
	for _, ws := range []float64{0, 0.25, 0.5, 0.8, 1} {
		for _, boost := range []float64{1.0, 1.2, 1.5, 1.8} {
			for _, leader := range []bool{false, true} {
				got := s.Score(Input{
					Signal: testSignal(), WalletScore: ws,
					ClusterBoost: boost, IsLeader: leader, TokenSafe: true,
				})
				want := ws * boost
				if leader {
					want = ws * 1.15 * boost
				}
				if want > 1 {
					want = 1
				}
				if math.Abs(got.FinalScore-want) > 1e-9 {
					t.Fatalf("ws=%v boost=%v leader=%v: got %v want %v", ws, boost, leader, got.FinalScore, want)
				}
				if got.FinalScore < 0 || got.FinalScore > 1 {
					t.Fatalf("score out of range: %v", got.FinalScore)
				}
			}
		}
	}
}

func TestScoreUnsafeTokenZeroes(t *testing.T) {
	s := NewScorer(1.15)
	got := s.Score(Input{
		Signal: testSignal(), WalletScore: 0.99,
		ClusterBoost: 1.8, IsLeader: true,
		TokenSafe: false, RejectReason: "honeypot",
	})
	if got.FinalScore != 0 {
		t.Fatalf("expected 0 score, got %v", got.FinalScore)
	}
	if got.Reason != "honeypot" {
		t.Fatalf("expected rejection reason carried, got %q", got.Reason)
	}
}

func TestScoreDeterministic(t *testing.T) {
	s := NewScorer(1.15)
	in := Input{Signal: testSignal(), WalletScore: 0.7, ClusterBoost: 1.3, IsLeader: true, TokenSafe: true}
	a := s.Score(in)
	b := s.Score(in)
	if a.FinalScore != b.FinalScore {
		t.Fatalf("non-deterministic score: %v vs %v", a.FinalScore, b.FinalScore)
	}
}

func TestScenarioA(t *testing.T) {
	// wallet 0.8, boost 1.2, no leader, threshold 0.65.
	s := NewScorer(1.15)
	scored := s.Score(Input{Signal: testSignal(), WalletScore: 0.8, ClusterBoost: 1.2, TokenSafe: true})
	if math.Abs(scored.FinalScore-0.96) > 1e-9 {
		t.Fatalf("expected 0.96, got %v", scored.FinalScore)
	}
	res := NewThresholdChecker(0.65).Check(scored)
	if !res.Passed {
		t.Fatalf("expected pass")
	}
	if math.Abs(res.PositionMultiplier-1.2) > 1e-9 {
		t.Fatalf("expected multiplier 1.2, got %v", res.PositionMultiplier)
	}
}

func TestScenarioB(t *testing.T) {
	s := NewScorer(1.15)
	scored := s.Score(Input{Signal: testSignal(), WalletScore: 0.99, ClusterBoost: 1.0, TokenSafe: false})
	if scored.FinalScore != 0 {
		t.Fatalf("expected 0, got %v", scored.FinalScore)
	}
	res := NewThresholdChecker(0.65).Check(scored)
	if res.Passed {
		t.Fatalf("expected fail")
	}
	if res.PositionMultiplier != NoTradeMultiplier {
		t.Fatalf("expected sentinel multiplier, got %v", res.PositionMultiplier)
	}
}

func TestThresholdMonotonicity(t *testing.T) {
	s := NewScorer(1.15)
	scored := s.Score(Input{Signal: testSignal(), WalletScore: 0.6, ClusterBoost: 1.2, TokenSafe: true})
	prevPassed := true
	for th := 0.05; th <= 1.0; th += 0.05 {
		passed := NewThresholdChecker(th).Check(scored).Passed
		if passed && !prevPassed {
			t.Fatalf("raising threshold flipped failed->passed at %v", th)
		}
		prevPassed = passed
	}
}
