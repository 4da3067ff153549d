package predictor

import (
	"context"
	"math"
)

// ═══════════════════════════════════════════════════════════════════════════════
// CONFIDENCE MODEL - Advisory direction prediction from market features
// ═══════════════════════════════════════════════════════════════════════════════
//
// IMPORTANT: This is a READ-ONLY component - it ONLY scores features.
// It does NOT veto or execute trades; the router treats its output as
// advisory and keeps going when it errors.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Features is the model input derived from a market snapshot
type Features struct {
	Mid           float64 // mid price, 0..1
	SpreadPct     float64 // bid/ask spread percentage
	Liquidity     float64 // liquidity score, 0..1
	BookImbalance float64 // -1..+1, positive = bid heavy
	TickOffset    float64 // last trade minus mid, signed
}

// Prediction is the model output
type Prediction struct {
	Direction  int     // +1 buy, -1 sell, 0 no view
	Confidence float64 // 0..1
}

// Model predicts price direction from market features
type Model interface {
	Predict(ctx context.Context, feat Features) (Prediction, error)
}

// ScoreModel is a heuristic Model built from weighted component scores
type ScoreModel struct {
	minScore float64 // score magnitude below this predicts direction 0
}

// NewScoreModel creates the default heuristic model
func NewScoreModel() *ScoreModel {
	return &ScoreModel{minScore: 10}
}

// Predict scores the features and maps the total onto direction/confidence
func (m *ScoreModel) Predict(_ context.Context, feat Features) (Prediction, error) {
	// 1. Book imbalance score (-40 to +40)
	score := feat.BookImbalance * 40

	// 2. Tick offset score (-30 to +30): last trade printing above mid
	// suggests buyer pressure
	offsetScore := feat.TickOffset * 600
	if offsetScore > 30 {
		offsetScore = 30
	} else if offsetScore < -30 {
		offsetScore = -30
	}
	score += offsetScore

	// 3. Extremity score (-30 to +30): contracts near 0 or 1 tend to
	// keep drifting toward resolution
	if feat.Mid > 0.8 {
		score += (feat.Mid - 0.8) * 150
	} else if feat.Mid > 0 && feat.Mid < 0.2 {
		score -= (0.2 - feat.Mid) * 150
	}

	// Wide spreads and thin books dampen conviction
	damp := 1.0
	if feat.SpreadPct > 5 {
		damp *= 0.7
	}
	if feat.Liquidity < 0.5 {
		damp *= 0.8
	}
	score *= damp

	pred := Prediction{}
	if math.Abs(score) >= m.minScore {
		if score > 0 {
			pred.Direction = 1
		} else {
			pred.Direction = -1
		}
	}

	pred.Confidence = math.Abs(score) / 100
	if pred.Confidence > 1 {
		pred.Confidence = 1
	}

	return pred, nil
}
