package bot

import (
	"fmt"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/signalrouter/risk"
	"github.com/web3guy0/signalrouter/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// TELEGRAM BOT - Routing notifications & control
// ═══════════════════════════════════════════════════════════════════════════════
//
// Implements the router's Notifier: executed/failed trades are pushed to
// the authorized chat, rejections stay silent (they flood). Commands read
// the router's stats and audit log.
//
// ═══════════════════════════════════════════════════════════════════════════════

// StatsProvider is the read surface the bot reports from
type StatsProvider interface {
	GetStats() risk.Stats
	GetRecentExecutions(limit int) []types.ExecutionRecord
	IsRunning() bool
}

// TelegramBot manages the Telegram interface
type TelegramBot struct {
	mu      sync.RWMutex
	api     *tgbotapi.BotAPI
	chatID  int64
	running bool
	stopCh  chan struct{}

	stats StatsProvider
}

// NewTelegramBot creates a bot bound to one chat
func NewTelegramBot(token string, chatID int64, stats StatsProvider) (*TelegramBot, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram token not set")
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	bot := &TelegramBot{
		api:    api,
		chatID: chatID,
		stopCh: make(chan struct{}),
		stats:  stats,
	}

	log.Info().Str("username", api.Self.UserName).Msg("🤖 Telegram bot initialized")

	return bot, nil
}

// Start begins listening for commands
func (b *TelegramBot) Start() {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return
	}
	b.running = true
	b.mu.Unlock()

	go b.commandLoop()
	log.Info().Msg("📱 Telegram bot started")
}

// Stop stops the bot
func (b *TelegramBot) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.running {
		return
	}

	b.running = false
	close(b.stopCh)
	log.Info().Msg("Telegram bot stopped")
}

// ═══════════════════════════════════════════════════════════════════════════════
// NOTIFICATIONS
// ═══════════════════════════════════════════════════════════════════════════════

// NotifyExecution implements risk.Notifier
func (b *TelegramBot) NotifyExecution(rec types.ExecutionRecord) {
	switch rec.Status {
	case types.StatusExecuted:
		msg := fmt.Sprintf(`✅ *TRADE EXECUTED*

📊 %s — %s
💵 Price: *%s¢*
📦 Size: *$%s*
🆔 %s`,
			rec.Signal.MarketKey(), strings.ToUpper(string(rec.Signal.Direction)),
			centPrice(rec),
			rec.Size.StringFixed(0),
			rec.OrderID,
		)
		b.sendMarkdown(msg)

	case types.StatusFailed:
		msg := fmt.Sprintf(`⚠️ *ORDER FAILED*

📊 %s — %s
📝 %s`,
			rec.Signal.MarketKey(), strings.ToUpper(string(rec.Signal.Direction)),
			rec.Reason,
		)
		b.sendMarkdown(msg)

	case types.StatusDryRun:
		log.Debug().
			Str("market", rec.Signal.MarketKey()).
			Msg("Dry-run record, not notifying")
	}
}

var hundred = decimal.NewFromInt(100)

func centPrice(rec types.ExecutionRecord) string {
	return rec.Price.Mul(hundred).StringFixed(1)
}

// ═══════════════════════════════════════════════════════════════════════════════
// COMMAND HANDLING
// ═══════════════════════════════════════════════════════════════════════════════

func (b *TelegramBot) commandLoop() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-b.stopCh:
			return
		case update := <-updates:
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}

			// Only respond to authorized chat
			if update.Message.Chat.ID != b.chatID {
				continue
			}

			b.handleCommand(update.Message)
		}
	}
}

func (b *TelegramBot) handleCommand(msg *tgbotapi.Message) {
	cmd := strings.ToLower(msg.Command())

	switch cmd {
	case "start", "help":
		b.cmdHelp()
	case "status":
		b.cmdStatus()
	case "stats":
		b.cmdStats()
	case "recent":
		b.cmdRecent()
	case "ping":
		b.send("🏓 Pong!")
	default:
		b.send("❓ Unknown command. Use /help")
	}
}

func (b *TelegramBot) cmdHelp() {
	msg := `🤖 *SIGNAL ROUTER COMMANDS*
━━━━━━━━━━━━━━━━━━━━

📊 /status — Router status
📈 /stats — Routing statistics
📜 /recent — Last 10 executions
🏓 /ping — Test connection`

	b.sendMarkdown(msg)
}

func (b *TelegramBot) cmdStatus() {
	if b.stats == nil {
		b.send("No stats provider attached")
		return
	}

	state := "⏸️ STOPPED"
	if b.stats.IsRunning() {
		state = "▶️ RUNNING"
	}
	b.sendMarkdown(fmt.Sprintf("*Router:* %s", state))
}

func (b *TelegramBot) cmdStats() {
	if b.stats == nil {
		b.send("No stats provider attached")
		return
	}

	s := b.stats.GetStats()

	msg := fmt.Sprintf(`📈 *ROUTING STATS*
━━━━━━━━━━━━━━━━━━━━

📥 Received: *%d*
✅ Executed: *%d*
📝 Dry-run: *%d*
🚫 Rejected: *%d*
⚠️ Failed: *%d*
🗑 Dropped: *%d*

━━━━━━━━━━━━━━━━━━━━
💵 Daily P&L: *$%s*
💼 Open positions: *%d*`,
		s.Received, s.Executed, s.DryRun, s.Rejected, s.Failed, s.QueueDropped,
		s.DailyPnL.StringFixed(2), s.OpenPositions,
	)

	b.sendMarkdown(msg)
}

func (b *TelegramBot) cmdRecent() {
	if b.stats == nil {
		b.send("No stats provider attached")
		return
	}

	recs := b.stats.GetRecentExecutions(10)
	if len(recs) == 0 {
		b.send("No executions yet")
		return
	}

	var sb strings.Builder
	sb.WriteString("📜 *RECENT EXECUTIONS*\n━━━━━━━━━━━━━━━━━━━━\n")
	for _, rec := range recs {
		line := fmt.Sprintf("%s %s %s", statusEmoji(rec.Status), rec.Signal.MarketKey(), string(rec.Status))
		if rec.Reason != "" {
			line += " — " + rec.Reason
		}
		sb.WriteString(line + "\n")
	}

	b.sendMarkdown(sb.String())
}

func statusEmoji(status types.ExecutionStatus) string {
	switch status {
	case types.StatusExecuted:
		return "✅"
	case types.StatusDryRun:
		return "📝"
	case types.StatusFailed:
		return "⚠️"
	default:
		return "🚫"
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// SEND HELPERS
// ═══════════════════════════════════════════════════════════════════════════════

func (b *TelegramBot) send(text string) {
	msg := tgbotapi.NewMessage(b.chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		log.Warn().Err(err).Msg("Telegram send failed")
	}
}

func (b *TelegramBot) sendMarkdown(text string) {
	msg := tgbotapi.NewMessage(b.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.api.Send(msg); err != nil {
		log.Warn().Err(err).Msg("Telegram send failed")
	}
}
