package feeds

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3guy0/signalrouter/types"
)

func TestBusDeliversInPublishOrder(t *testing.T) {
	bus := NewSignalBus(16)

	var mu sync.Mutex
	var got []string
	bus.OnSignal(func(sig types.TradingSignal) {
		mu.Lock()
		got = append(got, sig.MarketID)
		mu.Unlock()
	})

	bus.Start()
	defer bus.Stop()

	bus.Publish(types.TradingSignal{MarketID: "a"})
	bus.Publish(types.TradingSignal{MarketID: "b"})
	bus.Publish(types.TradingSignal{MarketID: "c"})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 3
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestBusFanOut(t *testing.T) {
	bus := NewSignalBus(16)

	var mu sync.Mutex
	calls := 0
	handler := func(types.TradingSignal) {
		mu.Lock()
		calls++
		mu.Unlock()
	}
	bus.OnSignal(handler)
	bus.OnSignal(handler)

	bus.Start()
	defer bus.Stop()

	bus.Publish(types.TradingSignal{MarketID: "a"})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls == 2
	}, time.Second, 10*time.Millisecond)
}

func TestBusDropsWhenFull(t *testing.T) {
	bus := NewSignalBus(2) // not started, nothing drains

	for i := 0; i < 5; i++ {
		bus.Publish(types.TradingSignal{MarketID: "a"})
	}

	assert.Len(t, bus.ch, 2)
}
