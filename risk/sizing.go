package risk

import (
	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// POSITION SIZING - strength-scaled, bounded, whole currency units
// ═══════════════════════════════════════════════════════════════════════════════
//
// Formula: size = base * strength (when scaling is on), clamped to max,
// never below one unit, rounded to whole units.
//
// ═══════════════════════════════════════════════════════════════════════════════

var minOrderSize = decimal.NewFromInt(1)

// positionSize computes the order size for a (possibly confidence-adjusted)
// strength under the given config
func positionSize(cfg Config, strength float64) decimal.Decimal {
	size := cfg.BaseSize
	if cfg.ScaleWithStrength {
		size = size.Mul(decimal.NewFromFloat(strength))
	}

	if size.GreaterThan(cfg.MaxSize) {
		size = cfg.MaxSize
	}

	size = size.Round(0)
	if size.LessThan(minOrderSize) {
		size = minOrderSize
	}

	return size
}
