package risk

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/signalrouter/exec"
	"github.com/web3guy0/signalrouter/feeds"
	"github.com/web3guy0/signalrouter/metrics"
	"github.com/web3guy0/signalrouter/predictor"
	"github.com/web3guy0/signalrouter/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// SIGNAL ROUTER - Central admission, pricing, sizing and dispatch
// ═══════════════════════════════════════════════════════════════════════════════
//
// Flow:
//   Signal source → bounded queue → serial consumer → admission gate →
//   price/feature filters → confidence gate → sizing → dispatch → audit
//
// One signal is in flight at a time; producers never block, the queue
// drops newest on overflow.
//
// ═══════════════════════════════════════════════════════════════════════════════

const (
	lowLiquidityThreshold  = 0.3  // liquidity score below this rejects
	wideSpreadPctThreshold = 10.0 // spread % above this rejects
	mlDisagreeConfidence   = 0.4  // model veto needs more conviction than this
	dispatchTimeout        = 30 * time.Second
	cooldownSweepAt        = 256 // sweep expired cooldowns past this map size
)

// FeatureProvider serves the current market snapshot for a key
type FeatureProvider interface {
	GetFeatures(platform, marketID, outcomeID string) *feeds.MarketFeatures
}

// SignalSource is the subscribe surface of the upstream signal stream
type SignalSource interface {
	OnSignal(handler func(types.TradingSignal))
}

// Notifier receives every terminal execution record (Telegram, dashboards)
type Notifier interface {
	NotifyExecution(rec types.ExecutionRecord)
}

// Store persists execution records (optional collaborator)
type Store interface {
	LogExecution(rec types.ExecutionRecord) error
}

// Router is the serialized signal-routing core
type Router struct {
	mu sync.RWMutex

	cfg      Config
	features FeatureProvider
	backend  exec.Backend
	model    predictor.Model
	store    Store
	notifier Notifier

	queue   chan types.TradingSignal
	stopCh  chan struct{}
	running bool

	stats         Stats
	audit         *auditLog
	cooldowns     map[string]time.Time // market key -> until
	openPositions map[string]struct{}
	lastResetDay  int
}

// NewRouter creates a router over the given config and feature provider.
// Execution backend, confidence model, store and notifier are optional
// and attached via setters; their absence is a normal rejection path.
func NewRouter(cfg Config, features FeatureProvider) *Router {
	r := &Router{
		cfg:           cfg,
		features:      features,
		queue:         make(chan types.TradingSignal, cfg.QueueCapacity),
		audit:         newAuditLog(cfg.AuditCapacity),
		cooldowns:     make(map[string]time.Time),
		openPositions: make(map[string]struct{}),
		lastResetDay:  time.Now().YearDay(),
	}
	r.stats.DailyPnL = decimal.Zero
	r.stats.RejectionReasons = make(map[string]int64)

	log.Info().
		Bool("enabled", cfg.Enabled).
		Bool("dry_run", cfg.DryRun).
		Float64("min_strength", cfg.MinStrength).
		Str("max_daily_loss", cfg.MaxDailyLoss.StringFixed(0)).
		Int("max_positions", cfg.MaxConcurrentPositions).
		Dur("cooldown", cfg.Cooldown).
		Str("order_mode", string(cfg.OrderMode)).
		Msg("🛡️ Signal router initialized")

	return r
}

// SetBackend attaches the live execution backend
func (r *Router) SetBackend(backend exec.Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backend = backend
}

// SetModel attaches the advisory confidence model
func (r *Router) SetModel(model predictor.Model) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.model = model
}

// SetStore attaches the execution-record store
func (r *Router) SetStore(store Store) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.store = store
}

// SetNotifier attaches the terminal-status observer
func (r *Router) SetNotifier(notifier Notifier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifier = notifier
}

// ═══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE
// ═══════════════════════════════════════════════════════════════════════════════

// Start launches the consumer and subscribes to the signal source.
// A router disabled in config stays stopped.
func (r *Router) Start(source SignalSource) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	if !r.cfg.Enabled {
		r.mu.Unlock()
		log.Warn().Msg("Router disabled in config, not starting")
		return
	}
	r.running = true
	r.stopCh = make(chan struct{})
	stopCh := r.stopCh
	dryRun := r.cfg.DryRun
	mode := r.cfg.OrderMode
	r.mu.Unlock()

	go r.consumeLoop(stopCh)

	if source != nil {
		source.OnSignal(r.Enqueue)
	}

	log.Info().
		Bool("dry_run", dryRun).
		Str("order_mode", string(mode)).
		Msg("⚡ Signal router started")
}

// Stop halts the consumer. In-flight work finishes its current step but
// discards results instead of mutating state.
func (r *Router) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	close(r.stopCh)
	r.mu.Unlock()

	log.Info().Msg("Signal router stopped")
}

// IsRunning reports the lifecycle state
func (r *Router) IsRunning() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.running
}

// Enqueue appends a signal to the bounded queue. No-op when stopped;
// drops the incoming signal when the queue is full.
func (r *Router) Enqueue(sig types.TradingSignal) {
	if !r.IsRunning() {
		return
	}

	select {
	case r.queue <- sig:
	default:
		r.mu.Lock()
		r.stats.QueueDropped++
		r.mu.Unlock()
		metrics.QueueDropped.Inc()
		log.Warn().
			Str("market", sig.MarketKey()).
			Str("type", sig.Type).
			Msg("Queue full, dropping signal")
	}
}

// consumeLoop serially drains the queue until stopped
func (r *Router) consumeLoop(stopCh chan struct{}) {
	for {
		select {
		case <-stopCh:
			return
		case sig := <-r.queue:
			r.process(sig)
		}
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// SIGNAL PROCESSING
// ═══════════════════════════════════════════════════════════════════════════════

// process runs one signal through the full pipeline. Every path out of
// here is terminal: rejected, dry_run, executed or failed. A panic is
// logged and the consumer moves on to the next signal.
func (r *Router) process(sig types.TradingSignal) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().
				Interface("panic", rec).
				Str("market", sig.MarketKey()).
				Msg("Signal processing panicked")
		}
	}()

	r.checkDayReset()

	r.mu.Lock()
	r.stats.Received++
	cfg := r.cfg
	r.mu.Unlock()
	metrics.SignalsReceived.Inc()

	// Admission gate
	if reason, gate, ok := r.admit(cfg, sig); !ok {
		r.reject(sig, reason, gate)
		return
	}

	// Pricing and feature filters
	var feat *feeds.MarketFeatures
	if r.features != nil {
		feat = r.features.GetFeatures(sig.Platform, sig.MarketID, sig.OutcomeID)
	}

	price, ok := resolvePrice(sig.Direction, feat)
	if !ok {
		r.reject(sig, "no price data", "no_price")
		return
	}

	if cfg.UseFeatureFilters && feat.HasBook() {
		if liq := feat.Book.LiquidityScore(); liq < lowLiquidityThreshold {
			r.reject(sig, "low liquidity", "low_liquidity")
			return
		}
		if spread := feat.Book.SpreadPct(); spread > wideSpreadPctThreshold {
			r.reject(sig, "wide spread", "wide_spread")
			return
		}
	}

	// Confidence gate: the model can veto on a confident disagreement,
	// otherwise it modulates strength. Model errors are advisory.
	r.mu.RLock()
	model := r.model
	r.mu.RUnlock()

	if model != nil && feat != nil {
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		pred, err := model.Predict(ctx, modelFeatures(feat))
		cancel()

		if err != nil {
			log.Warn().
				Err(err).
				Str("market", sig.MarketKey()).
				Msg("Confidence model failed, continuing unadjusted")
		} else {
			if pred.Direction != 0 && pred.Direction != sig.Direction.Int() && pred.Confidence > mlDisagreeConfidence {
				r.reject(sig, fmt.Sprintf("ml disagrees (conf %.2f, dir %d)", pred.Confidence, pred.Direction), "ml_disagree")
				return
			}
			// never scales below half the original strength
			sig.Strength *= 0.5 + 0.5*pred.Confidence
		}
	}

	size := positionSize(cfg, sig.Strength)

	r.dispatch(cfg, sig, price, size)
}

// admit runs the fixed-order admission checks, short-circuiting on the
// first failure. Returns the rejection reason and metric gate label.
func (r *Router) admit(cfg Config, sig types.TradingSignal) (reason, gate string, ok bool) {
	if !cfg.typeAllowed(sig.Type) {
		return "signal type not allowed: " + sig.Type, "type", false
	}
	if sig.Direction == types.DirectionNeutral {
		return "neutral direction", "neutral", false
	}
	if sig.Strength < cfg.MinStrength {
		return fmt.Sprintf("strength %.2f below minimum %.2f", sig.Strength, cfg.MinStrength), "strength", false
	}
	if !cfg.platformEnabled(sig.Platform) {
		return "platform not enabled: " + sig.Platform, "platform", false
	}
	if cfg.marketExcluded(sig.MarketID) {
		return "market excluded", "excluded", false
	}

	key := sig.MarketKey()

	r.mu.Lock()
	defer r.mu.Unlock()

	if until, found := r.cooldowns[key]; found && time.Now().Before(until) {
		return "market in cooldown", "cooldown", false
	}
	if len(r.cooldowns) > cooldownSweepAt {
		r.sweepCooldownsLocked()
	}

	if r.stats.DailyPnL.LessThanOrEqual(cfg.MaxDailyLoss.Neg()) {
		return "daily loss limit reached", "daily_loss", false
	}

	if len(r.openPositions) >= cfg.MaxConcurrentPositions {
		return "max concurrent positions reached", "max_positions", false
	}

	return "", "", true
}

// dispatch sends the admitted, priced and sized trade to the backend,
// or records the would-be trade in dry-run mode
func (r *Router) dispatch(cfg Config, sig types.TradingSignal, price, size decimal.Decimal) {
	key := sig.MarketKey()

	if cfg.DryRun {
		// cooldown still arms so repeated dry-run signals stay throttled;
		// open positions and P&L are untouched
		r.mu.Lock()
		r.cooldowns[key] = time.Now().Add(cfg.Cooldown)
		r.stats.DryRun++
		r.mu.Unlock()

		r.record(sig, types.StatusDryRun, "", size, price, "")

		log.Info().
			Str("market", key).
			Str("direction", string(sig.Direction)).
			Str("price", price.StringFixed(3)).
			Str("size", size.StringFixed(0)).
			Msg("📝 DRY RUN: trade evaluated")
		return
	}

	r.mu.RLock()
	backend := r.backend
	r.mu.RUnlock()

	if backend == nil {
		r.reject(sig, "no execution backend", "no_backend")
		return
	}

	params := exec.OrderParams{
		Platform:    sig.Platform,
		MarketID:    sig.MarketID,
		OutcomeID:   sig.OutcomeID,
		Price:       price,
		Size:        size,
		MaxSlippage: cfg.MaxSlippage,
	}

	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	result, err := r.place(ctx, backend, cfg.OrderMode, sig.Direction, params)
	cancel()

	// results arriving after Stop() are discarded, not applied
	if !r.IsRunning() {
		log.Warn().
			Str("market", key).
			Msg("Router stopped mid-dispatch, discarding result")
		return
	}

	if err != nil {
		// no retry: on an ambiguous failure a retry risks a duplicate fill
		r.mu.Lock()
		r.stats.Failed++
		r.mu.Unlock()

		r.record(sig, types.StatusFailed, err.Error(), size, price, "")

		log.Error().
			Err(err).
			Str("market", key).
			Str("direction", string(sig.Direction)).
			Msg("Order failed")
		return
	}

	r.mu.Lock()
	r.stats.Executed++
	r.openPositions[key] = struct{}{}
	r.stats.OpenPositions = len(r.openPositions)
	r.cooldowns[key] = time.Now().Add(cfg.Cooldown)
	r.mu.Unlock()

	r.record(sig, types.StatusExecuted, "", size, price, result.OrderID)

	log.Info().
		Str("market", key).
		Str("direction", string(sig.Direction)).
		Str("order_id", result.OrderID).
		Str("price", price.StringFixed(3)).
		Str("size", size.StringFixed(0)).
		Msg("✅ Trade executed")
}

// place makes exactly one backend call, chosen by order mode and direction
func (r *Router) place(ctx context.Context, backend exec.Backend, mode types.OrderMode, dir types.Direction, p exec.OrderParams) (types.OrderResult, error) {
	buy := dir == types.DirectionBuy

	switch mode {
	case types.OrderModeMarket:
		if buy {
			return backend.MarketBuy(ctx, p)
		}
		return backend.MarketSell(ctx, p)
	case types.OrderModeLimit:
		if buy {
			return backend.LimitBuy(ctx, p)
		}
		return backend.LimitSell(ctx, p)
	default:
		if buy {
			return backend.MakerBuy(ctx, p)
		}
		return backend.MakerSell(ctx, p)
	}
}

// reject tallies a policy rejection and writes its audit record
func (r *Router) reject(sig types.TradingSignal, reason, gate string) {
	r.mu.Lock()
	r.stats.Rejected++
	r.stats.RejectionReasons[reason]++
	r.mu.Unlock()
	metrics.SignalsRejected.WithLabelValues(gate).Inc()

	r.record(sig, types.StatusRejected, reason, decimal.Zero, decimal.Zero, "")

	log.Debug().
		Str("market", sig.MarketKey()).
		Str("reason", reason).
		Msg("🚫 Signal rejected")
}

// record writes the single terminal audit entry for a processed signal
// and fans it out to the store and notifier
func (r *Router) record(sig types.TradingSignal, status types.ExecutionStatus, reason string, size, price decimal.Decimal, orderID string) {
	rec := types.ExecutionRecord{
		ID:        fmt.Sprintf("exec_%d", time.Now().UnixNano()),
		Signal:    sig,
		Status:    status,
		Reason:    reason,
		Size:      size,
		Price:     price,
		OrderID:   orderID,
		Timestamp: time.Now(),
	}

	r.mu.Lock()
	r.audit.append(rec)
	store := r.store
	notifier := r.notifier
	r.mu.Unlock()

	metrics.Executions.WithLabelValues(string(status)).Inc()

	if store != nil {
		if err := store.LogExecution(rec); err != nil {
			log.Warn().Err(err).Str("id", rec.ID).Msg("Failed to persist execution record")
		}
	}
	if notifier != nil {
		notifier.NotifyExecution(rec)
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// PRICING HELPERS
// ═══════════════════════════════════════════════════════════════════════════════

// resolvePrice picks the realistic fill price: best ask for buys, best
// bid for sells, last-trade tick when no book side is usable. Contracts
// are probability-denominated so the price must sit strictly in (0, 1).
func resolvePrice(dir types.Direction, feat *feeds.MarketFeatures) (decimal.Decimal, bool) {
	if feat == nil {
		return decimal.Zero, false
	}

	price := decimal.Zero
	if feat.HasBook() {
		if dir == types.DirectionBuy {
			price = feat.Book.BestAsk()
		} else {
			price = feat.Book.BestBid()
		}
	}
	if price.IsZero() && feat.Tick != nil {
		price = feat.Tick.Price
	}

	if price.LessThanOrEqual(decimal.Zero) || price.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return decimal.Zero, false
	}
	return price, true
}

// modelFeatures derives confidence-model inputs from the market snapshot
func modelFeatures(feat *feeds.MarketFeatures) predictor.Features {
	f := predictor.Features{}

	if feat.HasBook() {
		f.Mid = feat.Book.Mid().InexactFloat64()
		f.SpreadPct = feat.Book.SpreadPct()
		f.Liquidity = feat.Book.LiquidityScore()
		f.BookImbalance = feat.Book.Imbalance()
	}
	if feat.Tick != nil {
		tick := feat.Tick.Price.InexactFloat64()
		if f.Mid == 0 {
			f.Mid = tick
		} else {
			f.TickOffset = tick - f.Mid
		}
	}

	return f
}

// ═══════════════════════════════════════════════════════════════════════════════
// STATE MANAGEMENT
// ═══════════════════════════════════════════════════════════════════════════════

// checkDayReset clears daily state once per calendar day
func (r *Router) checkDayReset() {
	r.mu.Lock()
	today := time.Now().YearDay()
	if r.lastResetDay == today {
		r.mu.Unlock()
		return
	}
	r.lastResetDay = today
	r.resetDailyLocked()
	r.mu.Unlock()

	log.Info().Msg("📅 Daily router stats reset")
}

// ResetDailyStats zeroes daily P&L and clears open positions and
// cooldowns. Runs automatically once per day, exposed for manual use.
func (r *Router) ResetDailyStats() {
	r.mu.Lock()
	r.resetDailyLocked()
	r.mu.Unlock()

	log.Info().Msg("📅 Daily router stats reset (manual)")
}

func (r *Router) resetDailyLocked() {
	r.stats.DailyPnL = decimal.Zero
	r.openPositions = make(map[string]struct{})
	r.stats.OpenPositions = 0
	r.cooldowns = make(map[string]time.Time)
}

// sweepCooldownsLocked drops expired cooldown entries
func (r *Router) sweepCooldownsLocked() {
	now := time.Now()
	for key, until := range r.cooldowns {
		if now.After(until) {
			delete(r.cooldowns, key)
		}
	}
}

// RecordPnL applies a realized P&L delta (settlements, closed positions)
// to the daily total feeding the loss circuit breaker
func (r *Router) RecordPnL(delta decimal.Decimal) {
	r.mu.Lock()
	r.stats.DailyPnL = r.stats.DailyPnL.Add(delta)
	daily := r.stats.DailyPnL
	r.mu.Unlock()

	if delta.IsNegative() {
		log.Warn().
			Str("pnl", delta.StringFixed(2)).
			Str("daily", daily.StringFixed(2)).
			Msg("📉 Loss recorded")
	} else {
		log.Info().
			Str("pnl", delta.StringFixed(2)).
			Str("daily", daily.StringFixed(2)).
			Msg("📈 Win recorded")
	}
}

// UpdateConfig merges the partial update over the current config
// without a restart
func (r *Router) UpdateConfig(update ConfigUpdate) {
	r.mu.Lock()
	update.apply(&r.cfg)
	r.mu.Unlock()

	log.Info().Msg("Router config updated")
}

// GetStats returns a defensive copy of the counters and the rejection
// histogram
func (r *Router) GetStats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return copyStats(r.stats)
}

// GetRecentExecutions returns up to limit audit records, most-recent-first
func (r *Router) GetRecentExecutions(limit int) []types.ExecutionRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.audit.recent(limit)
}
