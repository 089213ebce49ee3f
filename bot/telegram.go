package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/tradegate/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// TELEGRAM NOTIFIER - fills, rejections and breaker alerts
// ═══════════════════════════════════════════════════════════════════════════════

// Telegram implements core.TradeNotifier. It only pushes; command handling
// belongs to the host.
type Telegram struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegram connects the bot API with the given token.
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram token not set")
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	log.Info().Str("bot", api.Self.UserName).Msg("📱 Telegram notifier connected")
	return &Telegram{api: api, chatID: chatID}, nil
}

func (t *Telegram) send(text string) {
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := t.api.Send(msg); err != nil {
		log.Error().Err(err).Msg("Telegram send failed")
	}
}

// NotifyTrade announces a filled order.
func (t *Telegram) NotifyTrade(symbol string, side types.TradeSide, price, size decimal.Decimal) {
	t.send(fmt.Sprintf("✅ *%s %s*\nprice: `%s`\nsize: `%s`",
		side, symbol, price.StringFixed(2), size.String()))
}

// NotifyBreaker announces the circuit breaker latching.
func (t *Telegram) NotifyBreaker(reason string, consecutiveLosses int) {
	t.send(fmt.Sprintf("🚨 *CIRCUIT BREAKER*\n%s\nconsecutive losses: `%d`\nTrading halted until manual reset.",
		reason, consecutiveLosses))
}

// NotifyRejection announces a rejected intent with its dominant violation.
func (t *Telegram) NotifyRejection(symbol, reason string) {
	t.send(fmt.Sprintf("🚫 *%s rejected*\n%s", symbol, reason))
}
