package feeds

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/web3guy0/signalrouter/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// SIGNAL BUS - Bounded multi-producer pub/sub for trading signals
// ═══════════════════════════════════════════════════════════════════════════════
//
// Producers publish without blocking; signals are dropped once a
// subscriber's buffer fills. Handlers run on the bus goroutine in
// publish order.
//
// ═══════════════════════════════════════════════════════════════════════════════

// SignalBus distributes trading signals to subscribed handlers
type SignalBus struct {
	mu       sync.RWMutex
	ch       chan types.TradingSignal
	handlers []func(types.TradingSignal)
	running  bool
	stopCh   chan struct{}
}

// NewSignalBus creates a bus with the given buffer capacity
func NewSignalBus(capacity int) *SignalBus {
	if capacity <= 0 {
		capacity = 256
	}
	return &SignalBus{
		ch:     make(chan types.TradingSignal, capacity),
		stopCh: make(chan struct{}),
	}
}

// OnSignal registers a handler invoked for every published signal
func (b *SignalBus) OnSignal(handler func(types.TradingSignal)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, handler)
}

// Publish enqueues a signal without blocking; drops on a full buffer
func (b *SignalBus) Publish(sig types.TradingSignal) {
	select {
	case b.ch <- sig:
	default:
		log.Warn().
			Str("market", sig.MarketKey()).
			Str("type", sig.Type).
			Msg("Signal bus full, dropping signal")
	}
}

// Start begins dispatching published signals to handlers
func (b *SignalBus) Start() {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return
	}
	b.running = true
	b.mu.Unlock()

	go b.dispatchLoop()
}

// Stop halts dispatching; buffered signals are discarded
func (b *SignalBus) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.running {
		return
	}
	b.running = false
	close(b.stopCh)
}

func (b *SignalBus) dispatchLoop() {
	for {
		select {
		case <-b.stopCh:
			return
		case sig := <-b.ch:
			b.mu.RLock()
			handlers := b.handlers
			b.mu.RUnlock()

			for _, h := range handlers {
				h(sig)
			}
		}
	}
}
