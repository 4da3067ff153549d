package risk

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPositionSize(t *testing.T) {
	cfg := DefaultConfig() // base 10, max 100, scaling on

	tests := []struct {
		name     string
		strength float64
		want     int64
	}{
		{"full strength", 1.0, 10},
		{"scales down", 0.8, 8},
		{"rounds to whole units", 0.55, 6},
		{"floors at one unit", 0.01, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := positionSize(cfg, tt.strength)
			assert.True(t, got.Equal(decimal.NewFromInt(tt.want)), "got %s", got)
		})
	}
}

func TestPositionSizeClampsToMax(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BaseSize = decimal.NewFromInt(500)

	got := positionSize(cfg, 1.0)
	assert.True(t, got.Equal(cfg.MaxSize), "got %s", got)
}

func TestPositionSizeWithoutScaling(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ScaleWithStrength = false

	got := positionSize(cfg, 0.5)
	assert.True(t, got.Equal(cfg.BaseSize), "got %s", got)
}
