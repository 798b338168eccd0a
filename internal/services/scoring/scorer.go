package scoring

import (
	"time"

	"ChainPilot/internal/domain/models"
)

// DefaultLeaderBonus is the multiplier applied for cluster leaders.
const DefaultLeaderBonus = 1.15

// Input is everything the scorer needs for one signal. The scorer is a pure
// function of this input: identical inputs always yield identical output.
type Input struct {
	Signal       *models.Signal
	WalletScore  float64 // [0,1]
	ClusterBoost float64 // >= 1, neutral 1.0
	IsLeader     bool
	TokenSafe    bool
	RejectReason string // token-safety rejection cause, when unsafe
}

// Scorer combines wallet reputation, cluster boost, leader bonus and the
// token-safety gate into a final score in [0,1].
type Scorer struct {
	leaderBonus float64
}

// NewScorer creates a scorer with the given leader bonus multiplier.
func NewScorer(leaderBonus float64) *Scorer {
	if leaderBonus < 1 {
		leaderBonus = DefaultLeaderBonus
	}
	return &Scorer{leaderBonus: leaderBonus}
}

// Score computes the final score. An unsafe token zeroes the score
// regardless of reputation. The result is clipped to 1.0.
func (s *Scorer) Score(in Input) models.ScoredSignal {
	out := models.ScoredSignal{
		TxSignature:  in.Signal.TxSignature,
		Wallet:       in.Signal.Wallet,
		Token:        in.Signal.Token,
		Direction:    in.Signal.Direction,
		WalletScore:  clamp01(in.WalletScore),
		ClusterBoost: in.ClusterBoost,
		IsLeader:     in.IsLeader,
		TokenSafe:    in.TokenSafe,
		ScoredAt:     time.Now(),
	}
	if out.ClusterBoost < 1 {
		out.ClusterBoost = 1
	}

	if !in.TokenSafe {
		out.FinalScore = 0
		out.Reason = in.RejectReason
		if out.Reason == "" {
			out.Reason = "token failed safety gate"
		}
		return out
	}

	score := out.WalletScore
	if in.IsLeader {
		score *= s.leaderBonus
	}
	score *= out.ClusterBoost
	out.FinalScore = clamp01(score)
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
