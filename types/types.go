package types

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// SHARED TYPES - Avoid import cycles
// ═══════════════════════════════════════════════════════════════════════════════

// Direction is the side of a trading signal
type Direction string

const (
	DirectionBuy     Direction = "buy"
	DirectionSell    Direction = "sell"
	DirectionNeutral Direction = "neutral"
)

// Int maps a direction onto the -1/0/+1 scale used by prediction models
func (d Direction) Int() int {
	switch d {
	case DirectionBuy:
		return 1
	case DirectionSell:
		return -1
	default:
		return 0
	}
}

// OrderMode selects how an admitted trade is placed
type OrderMode string

const (
	OrderModeMaker  OrderMode = "maker"  // post-only, rests on the book
	OrderModeLimit  OrderMode = "limit"  // resting limit
	OrderModeMarket OrderMode = "market" // immediate fill
)

// TradingSignal is a directional, strength-scored trade suggestion
// tied to a specific market and outcome
type TradingSignal struct {
	Type      string    // category tag (momentum, whale, news, ...)
	Platform  string    // polymarket, kalshi, ...
	MarketID  string
	OutcomeID string    // outcome token, empty for binary markets
	Direction Direction
	Strength  float64   // 0..1, may be rescaled by the confidence gate
	Source    string    // emitting strategy/model
	Timestamp time.Time
}

// MarketKey returns the composite identity used for cooldowns and
// open-position tracking
func (s TradingSignal) MarketKey() string {
	return MarketKey(s.Platform, s.MarketID)
}

// MarketKey builds the composite (platform, market) identity
func MarketKey(platform, marketID string) string {
	return fmt.Sprintf("%s:%s", platform, marketID)
}

// ExecutionStatus is the terminal state of a processed signal
type ExecutionStatus string

const (
	StatusExecuted ExecutionStatus = "executed"
	StatusRejected ExecutionStatus = "rejected"
	StatusDryRun   ExecutionStatus = "dry_run"
	StatusFailed   ExecutionStatus = "failed"
)

// ExecutionRecord is an append-only audit entry, created exactly once
// per processed signal and never mutated afterwards
type ExecutionRecord struct {
	ID        string
	Signal    TradingSignal
	Status    ExecutionStatus
	Reason    string          // rejection/failure reason, empty otherwise
	Size      decimal.Decimal // computed order size, zero if rejected early
	Price     decimal.Decimal // computed fill price, zero if rejected early
	OrderID   string          // backend order id on live execution
	Timestamp time.Time
}

// OrderResult is returned by the execution backend on success
type OrderResult struct {
	OrderID string
	Status  string
}
