package feeds

import (
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// ORDERBOOK - In-memory orderbook state per outcome token
// ═══════════════════════════════════════════════════════════════════════════════

// PriceLevel represents a single price level in the orderbook
type PriceLevel struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// Orderbook maintains the current book state for one (platform, market, outcome)
type Orderbook struct {
	mu        sync.RWMutex
	Platform  string
	MarketID  string
	OutcomeID string
	Bids      []PriceLevel
	Asks      []PriceLevel
}

// NewOrderbook creates a new orderbook instance
func NewOrderbook(platform, marketID, outcomeID string) *Orderbook {
	return &Orderbook{
		Platform:  platform,
		MarketID:  marketID,
		OutcomeID: outcomeID,
		Bids:      make([]PriceLevel, 0),
		Asks:      make([]PriceLevel, 0),
	}
}

// Update replaces the book levels. Zero-size levels are dropped,
// bids sort descending and asks ascending.
func (ob *Orderbook) Update(bids, asks []PriceLevel) {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	ob.Bids = ob.Bids[:0]
	for _, lvl := range bids {
		if lvl.Size.GreaterThan(decimal.Zero) {
			ob.Bids = append(ob.Bids, lvl)
		}
	}

	ob.Asks = ob.Asks[:0]
	for _, lvl := range asks {
		if lvl.Size.GreaterThan(decimal.Zero) {
			ob.Asks = append(ob.Asks, lvl)
		}
	}

	sort.Slice(ob.Bids, func(i, j int) bool {
		return ob.Bids[i].Price.GreaterThan(ob.Bids[j].Price)
	})
	sort.Slice(ob.Asks, func(i, j int) bool {
		return ob.Asks[i].Price.LessThan(ob.Asks[j].Price)
	})
}

// BestBid returns the highest bid price
func (ob *Orderbook) BestBid() decimal.Decimal {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	if len(ob.Bids) == 0 {
		return decimal.Zero
	}
	return ob.Bids[0].Price
}

// BestAsk returns the lowest ask price
func (ob *Orderbook) BestAsk() decimal.Decimal {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	if len(ob.Asks) == 0 {
		return decimal.Zero
	}
	return ob.Asks[0].Price
}

// Mid returns the mid price, zero if either side is empty
func (ob *Orderbook) Mid() decimal.Decimal {
	bid := ob.BestBid()
	ask := ob.BestAsk()
	if bid.IsZero() || ask.IsZero() {
		return decimal.Zero
	}
	return bid.Add(ask).Div(decimal.NewFromInt(2))
}

// SpreadPct returns (ask - bid) / mid as a percentage, zero on an empty side
func (ob *Orderbook) SpreadPct() float64 {
	bid := ob.BestBid()
	ask := ob.BestAsk()
	if bid.IsZero() || ask.IsZero() {
		return 0
	}
	mid := bid.Add(ask).Div(decimal.NewFromInt(2))
	return ask.Sub(bid).Div(mid).Mul(decimal.NewFromInt(100)).InexactFloat64()
}

// Imbalance returns book imbalance over the top 3 levels:
// positive = more bids, negative = more asks, range -1..+1
func (ob *Orderbook) Imbalance() float64 {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	bidVol := decimal.Zero
	askVol := decimal.Zero

	for i := 0; i < 3 && i < len(ob.Bids); i++ {
		bidVol = bidVol.Add(ob.Bids[i].Size)
	}
	for i := 0; i < 3 && i < len(ob.Asks); i++ {
		askVol = askVol.Add(ob.Asks[i].Size)
	}

	total := bidVol.Add(askVol)
	if total.IsZero() {
		return 0
	}

	return bidVol.Sub(askVol).Div(total).InexactFloat64()
}

// LiquidityScore maps top-of-book notional depth onto 0..1.
// fullLiquidityDepth notional (price*size summed over top 3 levels
// per side) scores 1.0; an empty book scores 0.
func (ob *Orderbook) LiquidityScore() float64 {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	notional := decimal.Zero
	for i := 0; i < 3 && i < len(ob.Bids); i++ {
		notional = notional.Add(ob.Bids[i].Price.Mul(ob.Bids[i].Size))
	}
	for i := 0; i < 3 && i < len(ob.Asks); i++ {
		notional = notional.Add(ob.Asks[i].Price.Mul(ob.Asks[i].Size))
	}

	score := notional.Div(fullLiquidityDepth).InexactFloat64()
	if score > 1 {
		score = 1
	}
	return score
}

// fullLiquidityDepth is the top-of-book notional that counts as fully liquid
var fullLiquidityDepth = decimal.NewFromInt(1000)
