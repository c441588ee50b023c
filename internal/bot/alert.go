package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"sniper/internal/models"
	"sniper/pkg/utils"
)

// AlertChannel - внешний канал доставки уведомлений.
// Реализация сама отвечает за повтор при отказе разметки.
type AlertChannel interface {
	Send(ctx context.Context, text string, keyboard models.Keyboard) error
}

// Dispatcher рендерит и отправляет уведомления
//
// Отказ доставки логируется и считается, но не ретраится и не
// откатывает cooldown: алерт потрачен в момент попытки.
type Dispatcher struct {
	channel AlertChannel
	logger  *zap.Logger

	buyAmountSOL  float64
	lowLiqWarnUSD float64
}

// NewDispatcher создаёт диспетчер алертов
func NewDispatcher(channel AlertChannel, buyAmountSOL, lowLiqWarnUSD float64, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		channel:       channel,
		logger:        logger.Named("alerts"),
		buyAmountSOL:  buyAmountSOL,
		lowLiqWarnUSD: lowLiqWarnUSD,
	}
}

// TokenAlert отправляет алерт о прошедшем фильтр токене с кнопкой покупки
func (d *Dispatcher) TokenAlert(ctx context.Context, token models.DiscoveredToken) {
	text := d.renderToken(token)
	kb := models.SingleButton(
		fmt.Sprintf("Купить %.3f SOL", d.buyAmountSOL),
		"buy_"+token.Mint,
	)
	d.send(ctx, "token", text, kb)
}

// TradeAlert отправляет уведомление об исполненной покупке
func (d *Dispatcher) TradeAlert(ctx context.Context, p models.Position) {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>Покупка исполнена</b>\n\n")
	fmt.Fprintf(&b, "Токен: <b>%s</b>\n", escapeHTML(p.Symbol))
	fmt.Fprintf(&b, "Mint: <code>%s</code>\n", p.Mint)
	fmt.Fprintf(&b, "Размер: %.4f SOL\n", p.AmountSOL)
	fmt.Fprintf(&b, "Цена входа: $%.8f\n", p.EntryPrice)
	fmt.Fprintf(&b, "Подпись: <code>%s</code>", utils.Abbrev(p.BuySignature, 8))

	kb := models.SingleButton("Продать 100%", "sell_"+p.Mint)
	d.send(ctx, "trade", b.String(), kb)
}

// CloseAlert отправляет уведомление о закрытии позиции
func (d *Dispatcher) CloseAlert(ctx context.Context, closed models.ClosedPosition) {
	emoji := "✅"
	if closed.PnlPercent <= 0 {
		emoji = "🔻"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s <b>Позиция закрыта</b> (%s)\n\n", emoji, closed.Reason)
	fmt.Fprintf(&b, "Токен: <b>%s</b>\n", escapeHTML(closed.Position.Symbol))
	fmt.Fprintf(&b, "Mint: <code>%s</code>\n", closed.Position.Mint)
	fmt.Fprintf(&b, "Вход: $%.8f → Выход: $%.8f\n", closed.Position.EntryPrice, closed.ExitPrice)
	fmt.Fprintf(&b, "PnL: %s (%.4f SOL)", utils.FormatPercent(closed.PnlPercent), closed.PnlSOL)

	d.send(ctx, "close", b.String(), nil)
}

// FailureAlert отправляет уведомление о неудачной сделке
func (d *Dispatcher) FailureAlert(ctx context.Context, side, mint string, err error) {
	var b strings.Builder
	fmt.Fprintf(&b, "⚠️ <b>Сделка не прошла</b> (%s)\n\n", side)
	fmt.Fprintf(&b, "Mint: <code>%s</code>\n", mint)
	fmt.Fprintf(&b, "Ошибка: %s", escapeHTML(err.Error()))

	d.send(ctx, "failure", b.String(), nil)
}

// Heartbeat отправляет периодический статус
func (d *Dispatcher) Heartbeat(ctx context.Context, seenTokens, openPositions int, stats models.TradeStats, uptime time.Duration) {
	var b strings.Builder
	fmt.Fprintf(&b, "💓 <b>Бот работает</b>\n\n")
	fmt.Fprintf(&b, "Аптайм: %s\n", utils.FormatAge(time.Now().Add(-uptime), time.Now()))
	fmt.Fprintf(&b, "Токенов обнаружено: %s\n", utils.FormatCount(seenTokens))
	fmt.Fprintf(&b, "Открытых позиций: %d\n", openPositions)
	fmt.Fprintf(&b, "Сделок: %d (winrate %.0f%%)", stats.TotalTrades, stats.WinRate())

	d.send(ctx, "heartbeat", b.String(), nil)
}

// Notice отправляет произвольное служебное сообщение (старт, останов)
func (d *Dispatcher) Notice(ctx context.Context, text string) {
	d.send(ctx, "notice", text, nil)
}

// renderToken - карточка токена для алерта
func (d *Dispatcher) renderToken(token models.DiscoveredToken) string {
	m := token.Metrics

	var b strings.Builder
	fmt.Fprintf(&b, "🚨 <b>%s</b>", escapeHTML(displayName(token)))
	if token.Source == models.SourceFeed {
		b.WriteString(" (новый токен)")
	} else {
		b.WriteString(" (hot mover)")
	}
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "Mint: <code>%s</code>\n", token.Mint)
	if m.Venue != "" {
		fmt.Fprintf(&b, "DEX: %s\n", escapeHTML(m.Venue))
	}
	fmt.Fprintf(&b, "MC: %s | Ликвидность: %s\n", utils.FormatUSDPtr(m.MarketCapUSD), utils.FormatUSDPtr(m.LiquidityUSD))
	fmt.Fprintf(&b, "Объём 24ч: %s\n", utils.FormatUSDPtr(m.Volume24hUSD))
	fmt.Fprintf(&b, "Изм. 1ч: %s | 5м: %s\n", utils.FormatPercentPtr(m.PriceChange1h), utils.FormatPercentPtr(m.PriceChange5m))

	if m.PriceUSD != nil {
		fmt.Fprintf(&b, "Цена: $%.8f\n", *m.PriceUSD)
	}
	if m.Holders != nil {
		fmt.Fprintf(&b, "Холдеров: %s\n", utils.FormatCount(*m.Holders))
	}
	if m.PairCreatedAt != nil {
		fmt.Fprintf(&b, "Возраст пары: %s\n", utils.FormatAge(*m.PairCreatedAt, time.Now()))
	}

	if m.LiquidityUSD != nil && *m.LiquidityUSD > 0 && *m.LiquidityUSD < d.lowLiqWarnUSD {
		fmt.Fprintf(&b, "\n⚠️ Низкая ликвидность (меньше %s) - высокий риск", utils.FormatUSD(d.lowLiqWarnUSD))
	}

	return b.String()
}

func (d *Dispatcher) send(ctx context.Context, alertType, text string, kb models.Keyboard) {
	if err := d.channel.Send(ctx, text, kb); err != nil {
		alertsSent.WithLabelValues(alertType, "failed").Inc()
		d.logger.Error("alert delivery failed",
			zap.String("type", alertType),
			zap.Error(err))
		return
	}
	alertsSent.WithLabelValues(alertType, "ok").Inc()
}

func displayName(token models.DiscoveredToken) string {
	switch {
	case token.Symbol != "" && token.Name != "":
		return token.Name + " (" + token.Symbol + ")"
	case token.Symbol != "":
		return token.Symbol
	case token.Name != "":
		return token.Name
	default:
		return utils.Abbrev(token.Mint, 6)
	}
}

// escapeHTML экранирует спецсимволы HTML разметки Telegram
func escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}
