package feeds

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/signalrouter/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// FEATURE CACHE - Current market snapshot per (platform, market, outcome)
// ═══════════════════════════════════════════════════════════════════════════════

// Tick is a last-trade price fallback for markets without book data
type Tick struct {
	Price     decimal.Decimal
	Timestamp time.Time
}

// MarketFeatures is the snapshot the router prices against.
// Book may be nil (tick-only markets); Tick may be nil.
type MarketFeatures struct {
	Book *Orderbook
	Tick *Tick
}

// HasBook reports whether an orderbook with at least one side is available
func (m *MarketFeatures) HasBook() bool {
	if m == nil || m.Book == nil {
		return false
	}
	return !m.Book.BestBid().IsZero() || !m.Book.BestAsk().IsZero()
}

// FeatureCache stores live market features and serves lookups for the router
type FeatureCache struct {
	mu    sync.RWMutex
	books map[string]*Orderbook
	ticks map[string]Tick
}

// NewFeatureCache creates an empty cache
func NewFeatureCache() *FeatureCache {
	return &FeatureCache{
		books: make(map[string]*Orderbook),
		ticks: make(map[string]Tick),
	}
}

func featureKey(platform, marketID, outcomeID string) string {
	return types.MarketKey(platform, marketID) + ":" + outcomeID
}

// Book returns the live orderbook for the key, creating it on first use
func (c *FeatureCache) Book(platform, marketID, outcomeID string) *Orderbook {
	key := featureKey(platform, marketID, outcomeID)

	c.mu.Lock()
	defer c.mu.Unlock()

	ob, ok := c.books[key]
	if !ok {
		ob = NewOrderbook(platform, marketID, outcomeID)
		c.books[key] = ob
	}
	return ob
}

// SetTick records a last-trade price
func (c *FeatureCache) SetTick(platform, marketID, outcomeID string, price decimal.Decimal, ts time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks[featureKey(platform, marketID, outcomeID)] = Tick{Price: price, Timestamp: ts}
}

// GetFeatures returns the current snapshot, nil if nothing is known yet
func (c *FeatureCache) GetFeatures(platform, marketID, outcomeID string) *MarketFeatures {
	key := featureKey(platform, marketID, outcomeID)

	c.mu.RLock()
	book := c.books[key]
	tick, hasTick := c.ticks[key]
	c.mu.RUnlock()

	if book == nil && !hasTick {
		return nil
	}

	feat := &MarketFeatures{Book: book}
	if hasTick {
		t := tick
		feat.Tick = &t
	}
	return feat
}
