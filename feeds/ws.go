package feeds

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/signalrouter/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// WEBSOCKET FEED
// ═══════════════════════════════════════════════════════════════════════════════
//
// Consumes the upstream market-data stream: book snapshots and last-trade
// events keep the feature cache current, signal events are forwarded onto
// the signal bus.
//
// ═══════════════════════════════════════════════════════════════════════════════

const (
	reconnectDelay = 5 * time.Second
	pingInterval   = 30 * time.Second
)

// WSFeed manages the WebSocket connection feeding cache and bus
type WSFeed struct {
	mu sync.RWMutex

	wsURL     string
	conn      *websocket.Conn
	connected bool
	running   bool
	stopCh    chan struct{}

	cache *FeatureCache
	bus   *SignalBus
}

// NewWSFeed creates a feed writing into cache and publishing signals to bus
func NewWSFeed(wsURL string, cache *FeatureCache, bus *SignalBus) *WSFeed {
	return &WSFeed{
		wsURL:  wsURL,
		stopCh: make(chan struct{}),
		cache:  cache,
		bus:    bus,
	}
}

// Start connects and begins processing
func (f *WSFeed) Start() {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return
	}
	f.running = true
	f.mu.Unlock()

	go f.connectionLoop()
	log.Info().Str("url", f.wsURL).Msg("📡 Feed started")
}

// Stop closes the connection
func (f *WSFeed) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.running {
		return
	}

	f.running = false
	close(f.stopCh)

	if f.conn != nil {
		f.conn.Close()
	}

	log.Info().Msg("Feed stopped")
}

// SubscribeMarket subscribes to book and trade events for a market
func (f *WSFeed) SubscribeMarket(platform, marketID string) error {
	f.mu.RLock()
	conn := f.conn
	f.mu.RUnlock()

	if conn == nil {
		return nil
	}

	msg := map[string]interface{}{
		"type":     "subscribe",
		"platform": platform,
		"market":   marketID,
		"channels": []string{"book", "trades", "signals"},
	}

	return conn.WriteJSON(msg)
}

// connectionLoop maintains the WebSocket connection
func (f *WSFeed) connectionLoop() {
	for {
		select {
		case <-f.stopCh:
			return
		default:
		}

		if err := f.connect(); err != nil {
			log.Error().Err(err).Msg("Connection failed, retrying...")
			time.Sleep(reconnectDelay)
			continue
		}

		f.readLoop()
		time.Sleep(reconnectDelay)
	}
}

func (f *WSFeed) connect() error {
	conn, _, err := websocket.DefaultDialer.Dial(f.wsURL, nil)
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.conn = conn
	f.connected = true
	f.mu.Unlock()

	log.Info().Msg("🔌 WebSocket connected")

	go f.pingLoop()

	return nil
}

// pingLoop keeps the connection alive
func (f *WSFeed) pingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-f.stopCh:
			return
		case <-ticker.C:
			f.mu.RLock()
			conn := f.conn
			connected := f.connected
			f.mu.RUnlock()

			if connected && conn != nil {
				conn.WriteMessage(websocket.PingMessage, nil)
			}
		}
	}
}

// readLoop reads messages until the connection drops
func (f *WSFeed) readLoop() {
	for {
		select {
		case <-f.stopCh:
			return
		default:
		}

		f.mu.RLock()
		conn := f.conn
		f.mu.RUnlock()

		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Warn().Err(err).Msg("Read error")
			f.mu.Lock()
			f.connected = false
			f.mu.Unlock()
			return
		}

		f.processMessage(message)
	}
}

// wsMessage is an upstream event envelope
type wsMessage struct {
	EventType string     `json:"event_type"`
	Platform  string     `json:"platform"`
	Market    string     `json:"market"`
	Outcome   string     `json:"outcome"`
	Price     string     `json:"price"`
	Bids      [][]string `json:"bids"`
	Asks      [][]string `json:"asks"`

	// signal events
	SignalType string  `json:"signal_type"`
	Direction  string  `json:"direction"`
	Strength   float64 `json:"strength"`
	Source     string  `json:"source"`
}

func (f *WSFeed) processMessage(data []byte) {
	var msgs []wsMessage
	if err := json.Unmarshal(data, &msgs); err != nil {
		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return
		}
		msgs = []wsMessage{msg}
	}

	for _, msg := range msgs {
		switch msg.EventType {
		case "book":
			f.handleBook(msg)
		case "last_trade_price":
			f.handleTrade(msg)
		case "signal":
			f.handleSignal(msg)
		}
	}
}

func (f *WSFeed) handleBook(msg wsMessage) {
	ob := f.cache.Book(msg.Platform, msg.Market, msg.Outcome)
	ob.Update(parseLevels(msg.Bids), parseLevels(msg.Asks))
}

func (f *WSFeed) handleTrade(msg wsMessage) {
	price, err := decimal.NewFromString(msg.Price)
	if err != nil {
		return
	}
	f.cache.SetTick(msg.Platform, msg.Market, msg.Outcome, price, time.Now())
}

func (f *WSFeed) handleSignal(msg wsMessage) {
	if f.bus == nil {
		return
	}

	f.bus.Publish(types.TradingSignal{
		Type:      msg.SignalType,
		Platform:  msg.Platform,
		MarketID:  msg.Market,
		OutcomeID: msg.Outcome,
		Direction: types.Direction(msg.Direction),
		Strength:  msg.Strength,
		Source:    msg.Source,
		Timestamp: time.Now(),
	})
}

// parseLevels converts [price, size] string pairs into price levels
func parseLevels(raw [][]string) []PriceLevel {
	levels := make([]PriceLevel, 0, len(raw))
	for _, pair := range raw {
		if len(pair) < 2 {
			continue
		}
		price, err1 := decimal.NewFromString(pair[0])
		size, err2 := decimal.NewFromString(pair[1])
		if err1 != nil || err2 != nil {
			continue
		}
		levels = append(levels, PriceLevel{Price: price, Size: size})
	}
	return levels
}
