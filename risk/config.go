package risk

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/signalrouter/types"
)

// Config holds all router tunables. Values are merged over DefaultConfig
// at construction and only change through UpdateConfig.
type Config struct {
	Enabled bool
	DryRun  bool

	// Admission
	AllowedSignalTypes []string // empty = accept any type
	MinStrength        float64
	EnabledPlatforms   []string
	ExcludedMarkets    []string

	// Sizing
	BaseSize          decimal.Decimal // currency units
	MaxSize           decimal.Decimal
	ScaleWithStrength bool

	// Risk limits
	MaxDailyLoss           decimal.Decimal
	MaxConcurrentPositions int
	Cooldown               time.Duration

	// Dispatch
	OrderMode   types.OrderMode
	MaxSlippage decimal.Decimal // fraction, 0.02 = 2%

	// Feature filters
	UseFeatureFilters bool

	// Capacities
	QueueCapacity int
	AuditCapacity int
}

// DefaultConfig returns the hard defaults: disabled and dry-run until
// explicitly switched on.
func DefaultConfig() Config {
	return Config{
		Enabled:                false,
		DryRun:                 true,
		MinStrength:            0.5,
		EnabledPlatforms:       []string{"polymarket", "kalshi"},
		BaseSize:               decimal.NewFromInt(10),
		MaxSize:                decimal.NewFromInt(100),
		ScaleWithStrength:      true,
		MaxDailyLoss:           decimal.NewFromInt(200),
		MaxConcurrentPositions: 5,
		Cooldown:               120 * time.Second,
		OrderMode:              types.OrderModeMaker,
		MaxSlippage:            decimal.NewFromFloat(0.02),
		UseFeatureFilters:      true,
		QueueCapacity:          100,
		AuditCapacity:          500,
	}
}

func (c Config) typeAllowed(signalType string) bool {
	if len(c.AllowedSignalTypes) == 0 {
		return true
	}
	for _, t := range c.AllowedSignalTypes {
		if t == signalType {
			return true
		}
	}
	return false
}

func (c Config) platformEnabled(platform string) bool {
	for _, p := range c.EnabledPlatforms {
		if p == platform {
			return true
		}
	}
	return false
}

func (c Config) marketExcluded(marketID string) bool {
	for _, m := range c.ExcludedMarkets {
		if m == marketID {
			return true
		}
	}
	return false
}

// ConfigUpdate is a partial config; nil fields keep their current value.
// Applied by Router.UpdateConfig without a restart.
type ConfigUpdate struct {
	Enabled                *bool
	DryRun                 *bool
	AllowedSignalTypes     *[]string
	MinStrength            *float64
	EnabledPlatforms       *[]string
	ExcludedMarkets        *[]string
	BaseSize               *decimal.Decimal
	MaxSize                *decimal.Decimal
	ScaleWithStrength      *bool
	MaxDailyLoss           *decimal.Decimal
	MaxConcurrentPositions *int
	Cooldown               *time.Duration
	OrderMode              *types.OrderMode
	MaxSlippage            *decimal.Decimal
	UseFeatureFilters      *bool
}

func (u ConfigUpdate) apply(c *Config) {
	if u.Enabled != nil {
		c.Enabled = *u.Enabled
	}
	if u.DryRun != nil {
		c.DryRun = *u.DryRun
	}
	if u.AllowedSignalTypes != nil {
		c.AllowedSignalTypes = *u.AllowedSignalTypes
	}
	if u.MinStrength != nil {
		c.MinStrength = *u.MinStrength
	}
	if u.EnabledPlatforms != nil {
		c.EnabledPlatforms = *u.EnabledPlatforms
	}
	if u.ExcludedMarkets != nil {
		c.ExcludedMarkets = *u.ExcludedMarkets
	}
	if u.BaseSize != nil {
		c.BaseSize = *u.BaseSize
	}
	if u.MaxSize != nil {
		c.MaxSize = *u.MaxSize
	}
	if u.ScaleWithStrength != nil {
		c.ScaleWithStrength = *u.ScaleWithStrength
	}
	if u.MaxDailyLoss != nil {
		c.MaxDailyLoss = *u.MaxDailyLoss
	}
	if u.MaxConcurrentPositions != nil {
		c.MaxConcurrentPositions = *u.MaxConcurrentPositions
	}
	if u.Cooldown != nil {
		c.Cooldown = *u.Cooldown
	}
	if u.OrderMode != nil {
		c.OrderMode = *u.OrderMode
	}
	if u.MaxSlippage != nil {
		c.MaxSlippage = *u.MaxSlippage
	}
	if u.UseFeatureFilters != nil {
		c.UseFeatureFilters = *u.UseFeatureFilters
	}
}
