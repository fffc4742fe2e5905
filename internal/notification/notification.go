// Package notification pushes trade and system alerts to Telegram and
// Discord, fed from the event bus.
package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"binance-trading-bot/config"
	"binance-trading-bot/internal/events"

	"github.com/rs/zerolog"
)

// Kind classifies a notification.
type Kind string

const (
	KindTrade Kind = "trade"
	KindPump  Kind = "pump"
	KindAlert Kind = "alert"
	KindInfo  Kind = "info"
)

// Message is one outgoing notification.
type Message struct {
	Kind      Kind
	Title     string
	Body      string
	Symbol    string
	PnL       float64
	Timestamp time.Time
}

// Sender delivers messages to one channel.
type Sender interface {
	Send(msg *Message) error
	Name() string
	Enabled() bool
}

// Manager fans messages out to every enabled sender.
type Manager struct {
	senders []Sender
	enabled bool
	logger  zerolog.Logger
}

func NewManager(cfg config.NotificationConfig, logger zerolog.Logger) *Manager {
	m := &Manager{
		enabled: cfg.Enabled,
		logger:  logger.With().Str("component", "notification").Logger(),
	}
	m.senders = append(m.senders,
		NewTelegramSender(cfg.Telegram),
		NewDiscordSender(cfg.Discord),
	)
	return m
}

// AddSender registers an extra delivery channel.
func (m *Manager) AddSender(s Sender) {
	m.senders = append(m.senders, s)
}

// Send delivers to every enabled sender; the last error wins.
func (m *Manager) Send(msg *Message) error {
	if !m.enabled {
		return nil
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	var lastErr error
	for _, s := range m.senders {
		if !s.Enabled() {
			continue
		}
		if err := s.Send(msg); err != nil {
			m.logger.Warn().Err(err).Str("sender", s.Name()).Msg("notification delivery failed")
			lastErr = err
		}
	}
	return lastErr
}

// AttachBus subscribes the manager to the events worth interrupting a
// human for.
func (m *Manager) AttachBus(bus *events.Bus) {
	bus.Subscribe(events.EventTradeOpened, func(e events.Event) {
		m.Send(&Message{
			Kind:   KindTrade,
			Title:  fmt.Sprintf("Trade opened: %v", e.Data["symbol"]),
			Body:   fmt.Sprintf("%v %v @ %.4f, qty %.6f (%v)", e.Data["side"], e.Data["symbol"], num(e.Data["entry_price"]), num(e.Data["quantity"]), e.Data["source"]),
			Symbol: str(e.Data["symbol"]),
		})
	})
	bus.Subscribe(events.EventTradeClosed, func(e events.Event) {
		pnl := num(e.Data["pnl"])
		verdict := "profit"
		if pnl < 0 {
			verdict = "loss"
		}
		m.Send(&Message{
			Kind:   KindTrade,
			Title:  fmt.Sprintf("Trade closed: %v (%s)", e.Data["symbol"], verdict),
			Body:   fmt.Sprintf("Exit @ %.4f, P&L %.2f USDT. %v", num(e.Data["exit_price"]), pnl, e.Data["reason"]),
			Symbol: str(e.Data["symbol"]),
			PnL:    pnl,
		})
	})
	bus.Subscribe(events.EventPumpDetected, func(e events.Event) {
		m.Send(&Message{
			Kind:   KindPump,
			Title:  fmt.Sprintf("Pump detected: %v", e.Data["symbol"]),
			Body:   fmt.Sprintf("+%.2f%% on %.1fx volume, confidence %.2f", num(e.Data["price_change_pct"]), num(e.Data["volume_change"]), num(e.Data["confidence"])),
			Symbol: str(e.Data["symbol"]),
		})
	})
	bus.Subscribe(events.EventEmergencyStop, func(e events.Event) {
		m.Send(&Message{
			Kind:  KindAlert,
			Title: "Emergency stop",
			Body:  fmt.Sprintf("Drawdown %.1f%%: %v", num(e.Data["drawdown"])*100, e.Data["reason"]),
		})
	})
}

// SendDailyReport summarizes the day.
func (m *Manager) SendDailyReport(totalPnL float64, closedTrades int, winRate float64) error {
	return m.Send(&Message{
		Kind:  KindInfo,
		Title: "Daily report",
		Body:  fmt.Sprintf("P&L %.2f USDT over %d closed trades, win rate %.0f%%", totalPnL, closedTrades, winRate*100),
		PnL:   totalPnL,
	})
}

func num(v interface{}) float64 {
	f, _ := v.(float64)
	return f
}

func str(v interface{}) string {
	s, _ := v.(string)
	return s
}

// ============================================================================
// TELEGRAM
// ============================================================================

type TelegramSender struct {
	endpoint string
	chatID   string
	enabled  bool
	client   *http.Client
}

func NewTelegramSender(cfg config.TelegramConfig) *TelegramSender {
	return &TelegramSender{
		endpoint: fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", cfg.BotToken),
		chatID:   cfg.ChatID,
		enabled:  cfg.Enabled && cfg.BotToken != "" && cfg.ChatID != "",
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *TelegramSender) Name() string  { return "telegram" }
func (t *TelegramSender) Enabled() bool { return t.enabled }

func (t *TelegramSender) Send(msg *Message) error {
	payload, err := json.Marshal(map[string]interface{}{
		"chat_id":    t.chatID,
		"text":       fmt.Sprintf("*%s*\n\n%s", msg.Title, msg.Body),
		"parse_mode": "Markdown",
	})
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	resp, err := t.client.Post(t.endpoint, "application/json", bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}
	return nil
}

// ============================================================================
// DISCORD
// ============================================================================

type DiscordSender struct {
	webhookURL string
	enabled    bool
	client     *http.Client
}

func NewDiscordSender(cfg config.DiscordConfig) *DiscordSender {
	return &DiscordSender{
		webhookURL: cfg.WebhookURL,
		enabled:    cfg.Enabled && cfg.WebhookURL != "",
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (d *DiscordSender) Name() string  { return "discord" }
func (d *DiscordSender) Enabled() bool { return d.enabled }

func (d *DiscordSender) Send(msg *Message) error {
	color := 0x2ECC71 // Green
	if msg.Kind == KindAlert || msg.PnL < 0 {
		color = 0xE74C3C // Red
	}

	embed := map[string]interface{}{
		"title":       msg.Title,
		"description": msg.Body,
		"color":       color,
		"timestamp":   msg.Timestamp.Format(time.RFC3339),
	}
	if msg.Symbol != "" {
		embed["fields"] = []map[string]interface{}{
			{"name": "Symbol", "value": msg.Symbol, "inline": true},
		}
	}

	payload, err := json.Marshal(map[string]interface{}{
		"embeds": []map[string]interface{}{embed},
	})
	if err != nil {
		return fmt.Errorf("marshal discord payload: %w", err)
	}

	resp, err := d.client.Post(d.webhookURL, "application/json", bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("send discord message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("discord API returned status %d", resp.StatusCode)
	}
	return nil
}
