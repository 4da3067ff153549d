package risk

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3guy0/signalrouter/exec"
	"github.com/web3guy0/signalrouter/feeds"
	"github.com/web3guy0/signalrouter/predictor"
	"github.com/web3guy0/signalrouter/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// FAKES
// ═══════════════════════════════════════════════════════════════════════════════

type fakeFeatures struct {
	feat *feeds.MarketFeatures
}

func (f *fakeFeatures) GetFeatures(platform, marketID, outcomeID string) *feeds.MarketFeatures {
	return f.feat
}

type fakeBackend struct {
	calls      []string
	lastParams exec.OrderParams
	err        error
	orderID    string
}

func (b *fakeBackend) call(name string, p exec.OrderParams) (types.OrderResult, error) {
	b.calls = append(b.calls, name)
	b.lastParams = p
	if b.err != nil {
		return types.OrderResult{}, b.err
	}
	return types.OrderResult{OrderID: b.orderID, Status: "live"}, nil
}

func (b *fakeBackend) MakerBuy(_ context.Context, p exec.OrderParams) (types.OrderResult, error) {
	return b.call("maker_buy", p)
}
func (b *fakeBackend) MakerSell(_ context.Context, p exec.OrderParams) (types.OrderResult, error) {
	return b.call("maker_sell", p)
}
func (b *fakeBackend) LimitBuy(_ context.Context, p exec.OrderParams) (types.OrderResult, error) {
	return b.call("limit_buy", p)
}
func (b *fakeBackend) LimitSell(_ context.Context, p exec.OrderParams) (types.OrderResult, error) {
	return b.call("limit_sell", p)
}
func (b *fakeBackend) MarketBuy(_ context.Context, p exec.OrderParams) (types.OrderResult, error) {
	return b.call("market_buy", p)
}
func (b *fakeBackend) MarketSell(_ context.Context, p exec.OrderParams) (types.OrderResult, error) {
	return b.call("market_sell", p)
}

type fakeModel struct {
	pred predictor.Prediction
	err  error
}

func (m *fakeModel) Predict(_ context.Context, _ predictor.Features) (predictor.Prediction, error) {
	return m.pred, m.err
}

type fakeSource struct {
	handler func(types.TradingSignal)
}

func (s *fakeSource) OnSignal(h func(types.TradingSignal)) {
	s.handler = h
}

// ═══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ═══════════════════════════════════════════════════════════════════════════════

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.DryRun = true
	return cfg
}

// liquidBook is a healthy book: best bid 0.40, best ask 0.42, deep on
// both sides so the feature filters pass
func liquidBook() *feeds.MarketFeatures {
	ob := feeds.NewOrderbook("polymarket", "mkt-1", "yes")
	ob.Update(
		[]feeds.PriceLevel{{Price: decimal.NewFromFloat(0.40), Size: decimal.NewFromInt(2000)}},
		[]feeds.PriceLevel{{Price: decimal.NewFromFloat(0.42), Size: decimal.NewFromInt(2000)}},
	)
	return &feeds.MarketFeatures{Book: ob}
}

func buySignal() types.TradingSignal {
	return types.TradingSignal{
		Type:      "momentum",
		Platform:  "polymarket",
		MarketID:  "mkt-1",
		OutcomeID: "yes",
		Direction: types.DirectionBuy,
		Strength:  0.8,
		Source:    "test",
		Timestamp: time.Now(),
	}
}

// newTestRouter builds a router whose dispatch path applies results, as
// if Start had been called, without launching the consumer goroutine
func newTestRouter(cfg Config, feat *feeds.MarketFeatures) *Router {
	r := NewRouter(cfg, &fakeFeatures{feat: feat})
	r.running = true
	return r
}

func lastRecord(t *testing.T, r *Router) types.ExecutionRecord {
	t.Helper()
	recs := r.GetRecentExecutions(1)
	require.Len(t, recs, 1)
	return recs[0]
}

// ═══════════════════════════════════════════════════════════════════════════════
// ADMISSION GATE
// ═══════════════════════════════════════════════════════════════════════════════

func TestNeutralDirectionAlwaysRejected(t *testing.T) {
	r := newTestRouter(testConfig(), liquidBook())

	sig := buySignal()
	sig.Direction = types.DirectionNeutral
	r.process(sig)

	stats := r.GetStats()
	assert.Equal(t, int64(1), stats.Received)
	assert.Equal(t, int64(1), stats.Rejected)
	assert.Equal(t, int64(1), stats.RejectionReasons["neutral direction"])
	assert.Equal(t, types.StatusRejected, lastRecord(t, r).Status)
}

func TestAdmissionOrderShortCircuits(t *testing.T) {
	cfg := testConfig()
	cfg.AllowedSignalTypes = []string{"whale"}
	r := newTestRouter(cfg, liquidBook())

	// fails the type check even though direction is also neutral:
	// checks run in fixed order
	sig := buySignal()
	sig.Direction = types.DirectionNeutral
	r.process(sig)

	stats := r.GetStats()
	assert.Equal(t, int64(1), stats.RejectionReasons["signal type not allowed: momentum"])
	assert.Zero(t, stats.RejectionReasons["neutral direction"])
}

func TestWeakStrengthRejected(t *testing.T) {
	r := newTestRouter(testConfig(), liquidBook())

	sig := buySignal()
	sig.Strength = 0.3
	r.process(sig)

	rec := lastRecord(t, r)
	assert.Equal(t, types.StatusRejected, rec.Status)
	assert.Equal(t, "strength 0.30 below minimum 0.50", rec.Reason)
}

func TestDisabledPlatformAndExcludedMarket(t *testing.T) {
	cfg := testConfig()
	cfg.ExcludedMarkets = []string{"mkt-banned"}
	r := newTestRouter(cfg, liquidBook())

	sig := buySignal()
	sig.Platform = "manifold"
	r.process(sig)
	assert.Equal(t, "platform not enabled: manifold", lastRecord(t, r).Reason)

	sig = buySignal()
	sig.MarketID = "mkt-banned"
	r.process(sig)
	assert.Equal(t, "market excluded", lastRecord(t, r).Reason)
}

func TestEmptyAllowlistAcceptsAnyType(t *testing.T) {
	r := newTestRouter(testConfig(), liquidBook())

	sig := buySignal()
	sig.Type = "anything-at-all"
	r.process(sig)

	assert.Equal(t, types.StatusDryRun, lastRecord(t, r).Status)
}

func TestCooldownBlocksRepeatRouting(t *testing.T) {
	r := newTestRouter(testConfig(), liquidBook())

	r.process(buySignal())
	assert.Equal(t, types.StatusDryRun, lastRecord(t, r).Status)

	r.process(buySignal())
	rec := lastRecord(t, r)
	assert.Equal(t, types.StatusRejected, rec.Status)
	assert.Equal(t, "market in cooldown", rec.Reason)
}

func TestDailyLossCircuitBreaker(t *testing.T) {
	r := newTestRouter(testConfig(), liquidBook())

	r.RecordPnL(decimal.NewFromInt(-200))

	for i := 0; i < 3; i++ {
		sig := buySignal()
		sig.MarketID = fmt.Sprintf("mkt-%d", i)
		sig.Strength = 1.0
		r.process(sig)
		assert.Equal(t, "daily loss limit reached", lastRecord(t, r).Reason)
	}

	r.ResetDailyStats()

	r.process(buySignal())
	assert.Equal(t, types.StatusDryRun, lastRecord(t, r).Status)
}

func TestMaxConcurrentPositions(t *testing.T) {
	cfg := testConfig()
	cfg.DryRun = false
	cfg.MaxConcurrentPositions = 1
	r := newTestRouter(cfg, liquidBook())
	backend := &fakeBackend{orderID: "ord-1"}
	r.SetBackend(backend)

	r.process(buySignal())
	require.Equal(t, types.StatusExecuted, lastRecord(t, r).Status)

	sig := buySignal()
	sig.MarketID = "mkt-2"
	r.process(sig)
	assert.Equal(t, "max concurrent positions reached", lastRecord(t, r).Reason)
}

// ═══════════════════════════════════════════════════════════════════════════════
// PRICING AND FEATURE FILTERS
// ═══════════════════════════════════════════════════════════════════════════════

func TestNoFeaturesRejectedAsNoPriceData(t *testing.T) {
	r := newTestRouter(testConfig(), nil)

	r.process(buySignal())
	assert.Equal(t, "no price data", lastRecord(t, r).Reason)
}

func TestTickOnlyPriceFallback(t *testing.T) {
	feat := &feeds.MarketFeatures{
		Tick: &feeds.Tick{Price: decimal.NewFromFloat(0.55), Timestamp: time.Now()},
	}
	r := newTestRouter(testConfig(), feat)

	r.process(buySignal())
	rec := lastRecord(t, r)
	assert.Equal(t, types.StatusDryRun, rec.Status)
	assert.True(t, rec.Price.Equal(decimal.NewFromFloat(0.55)))
}

func TestOutOfRangePriceRejected(t *testing.T) {
	feat := &feeds.MarketFeatures{
		Tick: &feeds.Tick{Price: decimal.NewFromInt(1), Timestamp: time.Now()},
	}
	r := newTestRouter(testConfig(), feat)

	r.process(buySignal())
	assert.Equal(t, "no price data", lastRecord(t, r).Reason)
}

func TestLowLiquidityFilter(t *testing.T) {
	ob := feeds.NewOrderbook("polymarket", "mkt-1", "yes")
	ob.Update(
		[]feeds.PriceLevel{{Price: decimal.NewFromFloat(0.50), Size: decimal.NewFromInt(100)}},
		[]feeds.PriceLevel{{Price: decimal.NewFromFloat(0.52), Size: decimal.NewFromInt(100)}},
	)
	r := newTestRouter(testConfig(), &feeds.MarketFeatures{Book: ob})
	r.SetModel(&fakeModel{pred: predictor.Prediction{Direction: 1, Confidence: 1}})

	r.process(buySignal())
	rec := lastRecord(t, r)
	assert.Equal(t, "low liquidity", rec.Reason)
	// rejected before the confidence gate: strength untouched
	assert.Equal(t, 0.8, rec.Signal.Strength)
}

func TestWideSpreadFilter(t *testing.T) {
	ob := feeds.NewOrderbook("polymarket", "mkt-1", "yes")
	ob.Update(
		[]feeds.PriceLevel{{Price: decimal.NewFromFloat(0.30), Size: decimal.NewFromInt(2000)}},
		[]feeds.PriceLevel{{Price: decimal.NewFromFloat(0.60), Size: decimal.NewFromInt(2000)}},
	)
	r := newTestRouter(testConfig(), &feeds.MarketFeatures{Book: ob})

	r.process(buySignal())
	assert.Equal(t, "wide spread", lastRecord(t, r).Reason)
}

func TestFiltersSkippedForTickOnlySignals(t *testing.T) {
	// no book to derive liquidity or spread from
	feat := &feeds.MarketFeatures{
		Tick: &feeds.Tick{Price: decimal.NewFromFloat(0.55), Timestamp: time.Now()},
	}
	r := newTestRouter(testConfig(), feat)

	r.process(buySignal())
	assert.Equal(t, types.StatusDryRun, lastRecord(t, r).Status)
}

// ═══════════════════════════════════════════════════════════════════════════════
// CONFIDENCE GATE
// ═══════════════════════════════════════════════════════════════════════════════

func TestModelDisagreementRejects(t *testing.T) {
	r := newTestRouter(testConfig(), liquidBook())
	r.SetModel(&fakeModel{pred: predictor.Prediction{Direction: -1, Confidence: 0.5}})

	r.process(buySignal())

	rec := lastRecord(t, r)
	assert.Equal(t, types.StatusRejected, rec.Status)
	assert.Equal(t, "ml disagrees (conf 0.50, dir -1)", rec.Reason)
	// strength left unmodified in the audit record
	assert.Equal(t, 0.8, rec.Signal.Strength)
}

func TestModelConfidenceScalesStrength(t *testing.T) {
	r := newTestRouter(testConfig(), liquidBook())
	r.SetModel(&fakeModel{pred: predictor.Prediction{Direction: 1, Confidence: 0.5}})

	r.process(buySignal())

	rec := lastRecord(t, r)
	require.Equal(t, types.StatusDryRun, rec.Status)
	// 0.8 * (0.5 + 0.5*0.5) = 0.6 -> size round(10 * 0.6) = 6
	assert.InDelta(t, 0.6, rec.Signal.Strength, 1e-9)
	assert.True(t, rec.Size.Equal(decimal.NewFromInt(6)), "size = %s", rec.Size)
}

func TestModelErrorIsAdvisory(t *testing.T) {
	r := newTestRouter(testConfig(), liquidBook())
	r.SetModel(&fakeModel{err: fmt.Errorf("model offline")})

	r.process(buySignal())

	rec := lastRecord(t, r)
	assert.Equal(t, types.StatusDryRun, rec.Status)
	assert.Equal(t, 0.8, rec.Signal.Strength)
}

func TestModelNoViewNeverVetoes(t *testing.T) {
	r := newTestRouter(testConfig(), liquidBook())
	r.SetModel(&fakeModel{pred: predictor.Prediction{Direction: 0, Confidence: 0.9}})

	r.process(buySignal())
	assert.Equal(t, types.StatusDryRun, lastRecord(t, r).Status)
}

// ═══════════════════════════════════════════════════════════════════════════════
// DISPATCH
// ═══════════════════════════════════════════════════════════════════════════════

func TestDryRunNeverCallsBackend(t *testing.T) {
	r := newTestRouter(testConfig(), liquidBook())
	backend := &fakeBackend{orderID: "ord-1"}
	r.SetBackend(backend)

	for i := 0; i < 3; i++ {
		sig := buySignal()
		sig.MarketID = fmt.Sprintf("mkt-%d", i)
		r.process(sig)
	}

	stats := r.GetStats()
	assert.Empty(t, backend.calls)
	assert.Equal(t, int64(3), stats.DryRun)
	assert.Zero(t, stats.OpenPositions)
	assert.Zero(t, stats.Executed)
}

func TestDryRunStillArmsCooldown(t *testing.T) {
	r := newTestRouter(testConfig(), liquidBook())

	r.process(buySignal())
	r.process(buySignal())

	stats := r.GetStats()
	assert.Equal(t, int64(1), stats.DryRun)
	assert.Equal(t, int64(1), stats.RejectionReasons["market in cooldown"])
}

func TestLiveMakerBuyPath(t *testing.T) {
	cfg := testConfig()
	cfg.DryRun = false
	r := newTestRouter(cfg, liquidBook())
	backend := &fakeBackend{orderID: "ord-42"}
	r.SetBackend(backend)

	r.process(buySignal())

	// size = round(min(10 * 0.8, 100)) = 8, price = best ask 0.42
	require.Equal(t, []string{"maker_buy"}, backend.calls)
	assert.True(t, backend.lastParams.Price.Equal(decimal.NewFromFloat(0.42)))
	assert.True(t, backend.lastParams.Size.Equal(decimal.NewFromInt(8)))

	rec := lastRecord(t, r)
	assert.Equal(t, types.StatusExecuted, rec.Status)
	assert.Equal(t, "ord-42", rec.OrderID)

	stats := r.GetStats()
	assert.Equal(t, int64(1), stats.Executed)
	assert.Equal(t, 1, stats.OpenPositions)
}

func TestSellUsesBestBid(t *testing.T) {
	cfg := testConfig()
	cfg.DryRun = false
	r := newTestRouter(cfg, liquidBook())
	backend := &fakeBackend{orderID: "ord-7"}
	r.SetBackend(backend)

	sig := buySignal()
	sig.Direction = types.DirectionSell
	r.process(sig)

	require.Equal(t, []string{"maker_sell"}, backend.calls)
	assert.True(t, backend.lastParams.Price.Equal(decimal.NewFromFloat(0.40)))
}

func TestOrderModeSelectsBackendPath(t *testing.T) {
	for mode, want := range map[types.OrderMode]string{
		types.OrderModeMaker:  "maker_buy",
		types.OrderModeLimit:  "limit_buy",
		types.OrderModeMarket: "market_buy",
	} {
		cfg := testConfig()
		cfg.DryRun = false
		cfg.OrderMode = mode
		r := newTestRouter(cfg, liquidBook())
		backend := &fakeBackend{orderID: "ord-1"}
		r.SetBackend(backend)

		r.process(buySignal())
		assert.Equal(t, []string{want}, backend.calls, "mode %s", mode)
	}
}

func TestLiveWithoutBackendRejected(t *testing.T) {
	cfg := testConfig()
	cfg.DryRun = false
	r := newTestRouter(cfg, liquidBook())

	r.process(buySignal())
	assert.Equal(t, "no execution backend", lastRecord(t, r).Reason)
}

func TestFailedOrderLeavesStateUntouched(t *testing.T) {
	cfg := testConfig()
	cfg.DryRun = false
	r := newTestRouter(cfg, liquidBook())
	backend := &fakeBackend{err: fmt.Errorf("gateway timeout")}
	r.SetBackend(backend)

	r.process(buySignal())

	rec := lastRecord(t, r)
	assert.Equal(t, types.StatusFailed, rec.Status)
	assert.Equal(t, "gateway timeout", rec.Reason)

	stats := r.GetStats()
	assert.Equal(t, int64(1), stats.Failed)
	assert.Zero(t, stats.Executed)
	assert.Zero(t, stats.OpenPositions)

	// no cooldown armed: the same market can be attempted again
	r.process(buySignal())
	assert.Equal(t, types.StatusFailed, lastRecord(t, r).Status)
}

// ═══════════════════════════════════════════════════════════════════════════════
// QUEUE AND LIFECYCLE
// ═══════════════════════════════════════════════════════════════════════════════

func TestEnqueueDropsOnFullQueue(t *testing.T) {
	cfg := testConfig()
	cfg.QueueCapacity = 2
	r := NewRouter(cfg, &fakeFeatures{feat: liquidBook()})
	r.running = true // consumer deliberately not draining

	for i := 0; i < 5; i++ {
		r.Enqueue(buySignal())
	}

	stats := r.GetStats()
	assert.Equal(t, int64(3), stats.QueueDropped)
	// dropped signals never reached the admission gate
	assert.Zero(t, stats.Received)
}

func TestEnqueueIsNoOpWhenStopped(t *testing.T) {
	r := NewRouter(testConfig(), &fakeFeatures{feat: liquidBook()})

	r.Enqueue(buySignal())

	assert.Zero(t, r.GetStats().QueueDropped)
	assert.Empty(t, r.GetRecentExecutions(10))
}

func TestStartSubscribesAndProcesses(t *testing.T) {
	r := NewRouter(testConfig(), &fakeFeatures{feat: liquidBook()})
	source := &fakeSource{}

	r.Start(source)
	defer r.Stop()
	require.NotNil(t, source.handler)

	source.handler(buySignal())

	require.Eventually(t, func() bool {
		return r.GetStats().DryRun == 1
	}, time.Second, 10*time.Millisecond)
}

func TestDisabledRouterDoesNotStart(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	r := NewRouter(cfg, &fakeFeatures{feat: liquidBook()})

	r.Start(&fakeSource{})
	assert.False(t, r.IsRunning())
}

func TestStopDiscardsInFlightResult(t *testing.T) {
	cfg := testConfig()
	cfg.DryRun = false
	r := NewRouter(cfg, &fakeFeatures{feat: liquidBook()})

	entered := make(chan struct{})
	release := make(chan struct{})
	r.SetBackend(&blockingBackend{entered: entered, release: release})

	r.Start(&fakeSource{})
	r.Enqueue(buySignal())

	<-entered
	r.Stop()
	close(release)

	time.Sleep(50 * time.Millisecond)
	stats := r.GetStats()
	assert.Zero(t, stats.Executed)
	assert.Zero(t, stats.OpenPositions)
}

type blockingBackend struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingBackend) respond() (types.OrderResult, error) {
	close(b.entered)
	<-b.release
	return types.OrderResult{OrderID: "late"}, nil
}

func (b *blockingBackend) MakerBuy(context.Context, exec.OrderParams) (types.OrderResult, error) {
	return b.respond()
}
func (b *blockingBackend) MakerSell(context.Context, exec.OrderParams) (types.OrderResult, error) {
	return b.respond()
}
func (b *blockingBackend) LimitBuy(context.Context, exec.OrderParams) (types.OrderResult, error) {
	return b.respond()
}
func (b *blockingBackend) LimitSell(context.Context, exec.OrderParams) (types.OrderResult, error) {
	return b.respond()
}
func (b *blockingBackend) MarketBuy(context.Context, exec.OrderParams) (types.OrderResult, error) {
	return b.respond()
}
func (b *blockingBackend) MarketSell(context.Context, exec.OrderParams) (types.OrderResult, error) {
	return b.respond()
}

// ═══════════════════════════════════════════════════════════════════════════════
// STATS, AUDIT, CONFIG
// ═══════════════════════════════════════════════════════════════════════════════

func TestAuditRingEviction(t *testing.T) {
	cfg := testConfig()
	cfg.AuditCapacity = 3
	r := newTestRouter(cfg, liquidBook())

	for i := 0; i < 4; i++ {
		sig := buySignal()
		sig.Direction = types.DirectionNeutral
		sig.MarketID = fmt.Sprintf("mkt-%d", i)
		r.process(sig)
	}

	recs := r.GetRecentExecutions(10)
	require.Len(t, recs, 3)
	// earliest record evicted, newest first
	assert.Equal(t, "mkt-3", recs[0].Signal.MarketID)
	assert.Equal(t, "mkt-1", recs[2].Signal.MarketID)

	one := r.GetRecentExecutions(1)
	require.Len(t, one, 1)
	assert.Equal(t, "mkt-3", one[0].Signal.MarketID)
}

func TestGetStatsReturnsDefensiveCopy(t *testing.T) {
	r := newTestRouter(testConfig(), liquidBook())

	sig := buySignal()
	sig.Direction = types.DirectionNeutral
	r.process(sig)

	stats := r.GetStats()
	stats.RejectionReasons["neutral direction"] = 99
	stats.Received = 99

	fresh := r.GetStats()
	assert.Equal(t, int64(1), fresh.RejectionReasons["neutral direction"])
	assert.Equal(t, int64(1), fresh.Received)
}

func TestUpdateConfigMergesPartial(t *testing.T) {
	r := newTestRouter(testConfig(), liquidBook())

	newMin := 0.9
	dryRun := false
	r.UpdateConfig(ConfigUpdate{MinStrength: &newMin, DryRun: &dryRun})

	r.mu.RLock()
	cfg := r.cfg
	r.mu.RUnlock()

	assert.Equal(t, 0.9, cfg.MinStrength)
	assert.False(t, cfg.DryRun)
	// untouched fields keep their values
	assert.Equal(t, 120*time.Second, cfg.Cooldown)
	assert.True(t, cfg.Enabled)

	r.process(buySignal()) // strength 0.8 < new minimum 0.9
	assert.Equal(t, "strength 0.80 below minimum 0.90", lastRecord(t, r).Reason)
}

func TestResetDailyStatsClearsCooldownsAndPositions(t *testing.T) {
	cfg := testConfig()
	cfg.DryRun = false
	r := newTestRouter(cfg, liquidBook())
	r.SetBackend(&fakeBackend{orderID: "ord-1"})

	r.process(buySignal())
	require.Equal(t, 1, r.GetStats().OpenPositions)

	r.RecordPnL(decimal.NewFromInt(-50))
	r.ResetDailyStats()

	stats := r.GetStats()
	assert.Zero(t, stats.OpenPositions)
	assert.True(t, stats.DailyPnL.IsZero())

	// cooldown cleared: the same market routes again
	r.process(buySignal())
	assert.Equal(t, types.StatusExecuted, lastRecord(t, r).Status)
}

func TestProcessRecoversFromPanic(t *testing.T) {
	r := newTestRouter(testConfig(), liquidBook())
	r.SetModel(&panicModel{})

	assert.NotPanics(t, func() { r.process(buySignal()) })

	// the loop keeps going: a later signal still processes
	r.SetModel(nil)
	sig := buySignal()
	sig.MarketID = "mkt-2"
	r.process(sig)
	assert.Equal(t, types.StatusDryRun, lastRecord(t, r).Status)
}

type panicModel struct{}

func (panicModel) Predict(context.Context, predictor.Features) (predictor.Prediction, error) {
	panic("model blew up")
}
