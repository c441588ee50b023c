package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"sniper/internal/models"
	"sniper/pkg/utils"
)

// Trader - операции покупки и продажи (реализуется Executor)
type Trader interface {
	Buy(ctx context.Context, mint, symbol string, amountSOL float64) (*models.Position, error)
	Seller
}

// CommandsConfig - параметры командного обработчика
type CommandsConfig struct {
	TradingEnabled    bool
	AutoTrade         bool
	BuySOL            float64
	TakeProfitPercent float64
	StopLossPercent   float64
	LowLiquidityUSD   float64 // порог предупреждения
}

// Commands обрабатывает команды оператора из канала алертов
//
// Авторизация (единственный разрешённый чат) выполняется до вызова,
// на уровне engine. trader == nil означает выключенную торговлю.
type Commands struct {
	cfg       CommandsConfig
	store     *Store
	trader    Trader
	market    MarketData
	channel   AlertChannel
	gate      *Gate
	logger    *zap.Logger
	startedAt time.Time
}

// NewCommands создаёт обработчик команд
func NewCommands(
	cfg CommandsConfig,
	store *Store,
	trader Trader,
	market MarketData,
	channel AlertChannel,
	gate *Gate,
	logger *zap.Logger,
) *Commands {
	return &Commands{
		cfg:       cfg,
		store:     store,
		trader:    trader,
		market:    market,
		channel:   channel,
		gate:      gate,
		logger:    logger.Named("commands"),
		startedAt: time.Now(),
	}
}

// HandleText обрабатывает текстовое сообщение оператора
func (c *Commands) HandleText(ctx context.Context, text string) {
	text = strings.TrimSpace(text)
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return
	}

	switch strings.ToLower(fields[0]) {
	case "/start", "/help":
		c.reply(ctx, c.helpText(), nil)
	case "/status":
		c.reply(ctx, c.statusText(), nil)
	case "/stats":
		c.reply(ctx, c.statsText(), nil)
	case "/positions":
		c.sendPositions(ctx)
	case "/buy":
		c.handleBuy(ctx, fields[1:])
	case "/sell":
		c.handleSell(ctx, fields[1:])
	default:
		// Вставленный mint адрес - карточка токена
		if utils.IsMintAddress(fields[0]) {
			c.sendTokenInfo(ctx, fields[0])
			return
		}
		c.reply(ctx, "Неизвестная команда. /help - список команд", nil)
	}
}

// CallbackAck возвращает короткий текст подтверждения для кнопки.
// Пустая строка - неизвестный callback, исполнять нечего.
func (c *Commands) CallbackAck(data string) string {
	switch {
	case strings.HasPrefix(data, "buy_"):
		return "Покупаю..."
	case strings.HasPrefix(data, "sell_"):
		return "Продаю..."
	default:
		return ""
	}
}

// HandleCallback исполняет нажатие inline кнопки.
// Блокирует до завершения сделки - вызывающий решает, нужен ли
// ему отдельный goroutine.
func (c *Commands) HandleCallback(ctx context.Context, data string) {
	switch {
	case strings.HasPrefix(data, "buy_"):
		c.executeBuy(ctx, strings.TrimPrefix(data, "buy_"), 0)
	case strings.HasPrefix(data, "sell_"):
		c.executeSell(ctx, strings.TrimPrefix(data, "sell_"))
	}
}

// ============================================================
// Команды
// ============================================================

func (c *Commands) handleBuy(ctx context.Context, args []string) {
	if len(args) == 0 || !utils.IsMintAddress(args[0]) {
		c.reply(ctx, "Использование: /buy MINT [количество SOL]", nil)
		return
	}

	amount := 0.0
	if len(args) > 1 {
		parsed, err := strconv.ParseFloat(args[1], 64)
		if err != nil || parsed <= 0 {
			c.reply(ctx, "Некорректное количество SOL: "+args[1], nil)
			return
		}
		amount = parsed
	}

	c.executeBuy(ctx, args[0], amount)
}

func (c *Commands) handleSell(ctx context.Context, args []string) {
	if len(args) == 0 || !utils.IsMintAddress(args[0]) {
		c.reply(ctx, "Использование: /sell MINT", nil)
		return
	}
	c.executeSell(ctx, args[0])
}

func (c *Commands) executeBuy(ctx context.Context, mint string, amountSOL float64) {
	if c.trader == nil {
		c.reply(ctx, "Торговля выключена (TRADING_ENABLED=false)", nil)
		return
	}

	if _, err := c.trader.Buy(ctx, mint, "", amountSOL); err != nil {
		c.logger.Warn("manual buy failed", zap.String("mint", mint), zap.Error(err))
		switch {
		case errors.Is(err, ErrAlreadyOpen):
			c.reply(ctx, "По этому токену уже есть открытая позиция", nil)
		case errors.Is(err, ErrCapacityExceeded):
			c.reply(ctx, fmt.Sprintf("Достигнут лимит позиций (%d)", c.store.MaxPositions()), nil)
		default:
			// Подробности уже ушли через FailureAlert
		}
	}
}

func (c *Commands) executeSell(ctx context.Context, mint string) {
	if c.trader == nil {
		c.reply(ctx, "Торговля выключена (TRADING_ENABLED=false)", nil)
		return
	}

	if _, err := c.trader.Sell(ctx, mint, 1, models.ReasonManual); err != nil {
		c.logger.Warn("manual sell failed", zap.String("mint", mint), zap.Error(err))
		switch {
		case errors.Is(err, ErrSellInProgress):
			c.reply(ctx, "Продажа этой позиции уже исполняется", nil)
		case errors.Is(err, ErrNotFound):
			c.reply(ctx, "Открытой позиции по этому токену нет", nil)
		default:
		}
	}
}

// ============================================================
// Представления
// ============================================================

func (c *Commands) helpText() string {
	return strings.Join([]string{
		"<b>Команды</b>",
		"",
		"/status - состояние бота",
		"/stats - статистика торговли",
		"/positions - открытые позиции",
		"/buy MINT [SOL] - купить токен",
		"/sell MINT - продать позицию",
		"",
		"Вставьте mint адрес - покажу карточку токена",
	}, "\n")
}

func (c *Commands) statusText() string {
	var b strings.Builder
	b.WriteString("<b>Статус</b>\n\n")
	fmt.Fprintf(&b, "Аптайм: %s\n", utils.FormatAge(c.startedAt, time.Now()))
	fmt.Fprintf(&b, "Торговля: %s", onOff(c.cfg.TradingEnabled))
	if c.cfg.TradingEnabled {
		fmt.Fprintf(&b, " (авто: %s)", onOff(c.cfg.AutoTrade))
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Токенов обнаружено: %s\n", utils.FormatCount(c.gate.SeenCount()))
	fmt.Fprintf(&b, "Позиций: %d/%d\n", c.store.Count(), c.store.MaxPositions())
	fmt.Fprintf(&b, "TP: +%.0f%% | Trailing SL: -%.0f%% от максимума", c.cfg.TakeProfitPercent, c.cfg.StopLossPercent)
	return b.String()
}

func (c *Commands) statsText() string {
	stats := c.store.Stats()

	var b strings.Builder
	b.WriteString("<b>Статистика</b>\n\n")
	fmt.Fprintf(&b, "Сделок: %d\n", stats.TotalTrades)
	fmt.Fprintf(&b, "Прибыльных: %d | Убыточных: %d\n", stats.Wins, stats.Losses)
	fmt.Fprintf(&b, "Winrate: %.0f%%\n", stats.WinRate())
	fmt.Fprintf(&b, "Реализованный PnL: %+.4f SOL", stats.TotalProfitSOL)
	return b.String()
}

func (c *Commands) sendPositions(ctx context.Context) {
	positions := c.store.List()
	if len(positions) == 0 {
		c.reply(ctx, "Открытых позиций нет", nil)
		return
	}

	var b strings.Builder
	var kb models.Keyboard

	fmt.Fprintf(&b, "<b>Открытые позиции (%d/%d)</b>\n", len(positions), c.store.MaxPositions())
	for _, p := range positions {
		b.WriteString("\n")
		fmt.Fprintf(&b, "<b>%s</b> %s\n", escapeHTML(positionLabel(p)), utils.FormatPercent(p.PnlPercent()))
		fmt.Fprintf(&b, "<code>%s</code>\n", p.Mint)
		fmt.Fprintf(&b, "Вход: $%.8f | Сейчас: $%.8f\n", p.EntryPrice, p.CurrentPrice)
		fmt.Fprintf(&b, "Стоп: $%.8f | Возраст: %s\n",
			p.TrailingStopPrice(c.cfg.StopLossPercent),
			utils.FormatAge(p.OpenedAt, time.Now()))
		if p.AutoExitDisabled {
			b.WriteString("⚠️ Авто-выход отключён, только ручной /sell\n")
		}

		kb = append(kb, []models.Button{{
			Text: "Продать " + positionLabel(p),
			Data: "sell_" + p.Mint,
		}})
	}

	c.reply(ctx, b.String(), kb)
}

// sendTokenInfo - карточка по вставленному mint адресу.
// Вид зависит от наличия открытой позиции по токену.
func (c *Commands) sendTokenInfo(ctx context.Context, mint string) {
	if p, err := c.store.Get(mint); err == nil {
		var b strings.Builder
		fmt.Fprintf(&b, "<b>Открытая позиция: %s</b> %s\n\n", escapeHTML(positionLabel(*p)), utils.FormatPercent(p.PnlPercent()))
		fmt.Fprintf(&b, "<code>%s</code>\n", p.Mint)
		fmt.Fprintf(&b, "Вход: $%.8f | Сейчас: $%.8f\n", p.EntryPrice, p.CurrentPrice)
		fmt.Fprintf(&b, "Максимум: $%.8f | Стоп: $%.8f", p.HighestPrice, p.TrailingStopPrice(c.cfg.StopLossPercent))

		c.reply(ctx, b.String(), models.SingleButton("Продать 100%", "sell_"+mint))
		return
	}

	metrics, err := c.market.PairByMint(ctx, mint)
	if err != nil {
		c.reply(ctx, "Токен не найден на DexScreener:\n<code>"+mint+"</code>", nil)
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<b>Токен</b> <code>%s</code>\n\n", mint)
	if metrics.Venue != "" {
		fmt.Fprintf(&b, "DEX: %s\n", escapeHTML(metrics.Venue))
	}
	fmt.Fprintf(&b, "MC: %s | Ликвидность: %s\n", utils.FormatUSDPtr(metrics.MarketCapUSD), utils.FormatUSDPtr(metrics.LiquidityUSD))
	fmt.Fprintf(&b, "Объём 24ч: %s\n", utils.FormatUSDPtr(metrics.Volume24hUSD))
	fmt.Fprintf(&b, "Изм. 1ч: %s | 5м: %s\n", utils.FormatPercentPtr(metrics.PriceChange1h), utils.FormatPercentPtr(metrics.PriceChange5m))
	if metrics.PriceUSD != nil {
		fmt.Fprintf(&b, "Цена: $%.8f\n", *metrics.PriceUSD)
	}

	if metrics.LiquidityUSD != nil && *metrics.LiquidityUSD > 0 && *metrics.LiquidityUSD < c.cfg.LowLiquidityUSD {
		fmt.Fprintf(&b, "\n⚠️ Низкая ликвидность (меньше %s) - высокий риск", utils.FormatUSD(c.cfg.LowLiquidityUSD))
	}

	kb := models.SingleButton(fmt.Sprintf("Купить %.3f SOL", c.cfg.BuySOL), "buy_"+mint)
	c.reply(ctx, b.String(), kb)
}

func (c *Commands) reply(ctx context.Context, text string, kb models.Keyboard) {
	if err := c.channel.Send(ctx, text, kb); err != nil {
		c.logger.Error("reply failed", zap.Error(err))
	}
}

func positionLabel(p models.Position) string {
	if p.Symbol != "" {
		return p.Symbol
	}
	return utils.Abbrev(p.Mint, 4)
}

func onOff(b bool) string {
	if b {
		return "включена"
	}
	return "выключена"
}
