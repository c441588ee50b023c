package bot

import (
	"context"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"sniper/internal/models"
	"sniper/internal/telegram"
)

// MarketScanner - периодический поиск hot movers (реализуется market.DexScreener)
type MarketScanner interface {
	SearchMovers(ctx context.Context) ([]models.DiscoveredToken, error)
}

// CommandSource - входящий поток команд оператора
type CommandSource interface {
	Updates(ctx context.Context, offset int64, timeout time.Duration) ([]telegram.Update, error)
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

// EngineConfig - параметры оркестратора
type EngineConfig struct {
	AutoTrade bool

	AuthorizedChatID int64

	ScanInterval      time.Duration
	MonitorInterval   time.Duration
	PollInterval      time.Duration
	HeartbeatInterval time.Duration
	EnrichDelay       time.Duration // пауза перед обогащением токена из feed
	MaxAlertsPerScan  int
}

// Engine связывает discovery, фильтр, алерты, монитор и команды
//
// Три независимых периодических задачи (скан, монитор, опрос команд)
// плюс поток feed и heartbeat. Вызовы одной задачи не
// перекрываются - каждый тик берёт atomic busy флаг и пропускается
// если предыдущий ещё работает. Защита от двойной продажи при
// медленном подтверждении.
type Engine struct {
	cfg EngineConfig

	gate     *Gate
	filter   *Filter
	alerts   *Dispatcher
	store    *Store
	monitor  *Monitor
	trader   Trader // nil при выключенной торговле
	market   MarketData
	scanner  MarketScanner
	commands *Commands
	source   CommandSource

	feed <-chan models.DiscoveredToken

	// busy флаги периодических задач
	monitorBusy int32
	scanBusy    int32
	pollBusy    int32

	updateOffset int64
	startedAt    time.Time
	logger       *zap.Logger
}

// NewEngine создаёт оркестратор
func NewEngine(
	cfg EngineConfig,
	gate *Gate,
	filter *Filter,
	alerts *Dispatcher,
	store *Store,
	monitor *Monitor,
	trader Trader,
	market MarketData,
	scanner MarketScanner,
	commands *Commands,
	source CommandSource,
	feed <-chan models.DiscoveredToken,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		cfg:      cfg,
		gate:     gate,
		filter:   filter,
		alerts:   alerts,
		store:    store,
		monitor:  monitor,
		trader:   trader,
		market:   market,
		scanner:  scanner,
		commands: commands,
		source:   source,
		feed:     feed,
		logger:   logger.Named("engine"),
	}
}

// Run запускает все задачи и блокирует до отмены контекста
func (e *Engine) Run(ctx context.Context) {
	e.startedAt = time.Now()
	e.logger.Info("engine started",
		zap.Bool("auto_trade", e.cfg.AutoTrade),
		zap.Duration("monitor_interval", e.cfg.MonitorInterval),
		zap.Duration("scan_interval", e.cfg.ScanInterval))

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		e.feedLoop(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		e.periodic(ctx, e.cfg.MonitorInterval, &e.monitorBusy, e.monitorTick)
	}()

	if e.scanner != nil && e.cfg.ScanInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.periodic(ctx, e.cfg.ScanInterval, &e.scanBusy, e.scanTick)
		}()
	}

	if e.source != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.periodic(ctx, e.cfg.PollInterval, &e.pollBusy, e.pollTick)
		}()
	}

	if e.cfg.HeartbeatInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.heartbeatLoop(ctx)
		}()
	}

	wg.Wait()
	e.logger.Info("engine stopped")
}

// periodic вызывает task по тикеру, не допуская перекрытия вызовов.
// Тик поверх незавершённого предыдущего пропускается (busy флаг).
func (e *Engine) periodic(ctx context.Context, interval time.Duration, busy *int32, task func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !atomic.CompareAndSwapInt32(busy, 0, 1) {
				monitorSkips.Inc()
				continue
			}
			task(ctx)
			atomic.StoreInt32(busy, 0)
		case <-ctx.Done():
			return
		}
	}
}

func (e *Engine) monitorTick(ctx context.Context) {
	e.monitor.Tick(ctx)
}

// ============================================================
// Discovery: feed и scan
// ============================================================

func (e *Engine) feedLoop(ctx context.Context) {
	for {
		select {
		case token := <-e.feed:
			e.handleDiscovery(ctx, token)
		case <-ctx.Done():
			return
		}
	}
}

// handleDiscovery - путь одного обнаруженного токена:
// дедуп -> предварительный фильтр -> обогащение -> фильтр -> алерт
func (e *Engine) handleDiscovery(ctx context.Context, token models.DiscoveredToken) {
	if !e.gate.AdmitDiscovery(token.Mint) {
		return
	}
	tokensDiscovered.WithLabelValues(string(token.Source)).Inc()

	// Ранний отсев по метрикам из самого события (дёшево, без HTTP)
	if verdict := e.filter.Evaluate(token); !verdict.Accepted {
		tokensFiltered.WithLabelValues(string(token.Source), verdict.Reason).Inc()
		return
	}

	// Пара появляется на DexScreener с задержкой - даём ей время
	if token.Source == models.SourceFeed && e.cfg.EnrichDelay > 0 {
		select {
		case <-time.After(e.cfg.EnrichDelay):
		case <-ctx.Done():
			return
		}
	}

	if metrics, err := e.market.PairByMint(ctx, token.Mint); err == nil {
		token.Metrics = token.Metrics.Merge(metrics)
	}

	verdict := e.filter.Evaluate(token)
	if !verdict.Accepted {
		tokensFiltered.WithLabelValues(string(token.Source), verdict.Reason).Inc()
		e.logger.Debug("token rejected",
			zap.String("mint", token.Mint),
			zap.String("reason", verdict.Reason))
		return
	}

	if !e.gate.AdmitAlert(token.Mint) {
		alertsSuppressed.Inc()
		return
	}

	e.logger.Info("token admitted",
		zap.String("mint", token.Mint),
		zap.String("symbol", token.Symbol),
		zap.String("source", string(token.Source)))

	e.alerts.TokenAlert(ctx, token)

	if e.cfg.AutoTrade && e.trader != nil {
		if _, err := e.trader.Buy(ctx, token.Mint, token.Symbol, 0); err != nil {
			e.logger.Warn("auto-trade buy failed",
				zap.String("mint", token.Mint),
				zap.Error(err))
		}
	}
}

// scanTick - периодический проход по hot movers
//
// Дедуп здесь только через cooldown алертов: один и тот же mover
// может алертить повторно после окна, в отличие от пути feed.
func (e *Engine) scanTick(ctx context.Context) {
	tokens, err := e.scanner.SearchMovers(ctx)
	if err != nil {
		e.logger.Warn("market scan failed", zap.Error(err))
		return
	}

	// Лимит алертов за проход достаётся лидерам по часовому росту,
	// а не случайному порядку ответа API
	sort.SliceStable(tokens, func(i, j int) bool {
		return change1h(tokens[i]) > change1h(tokens[j])
	})

	sent := 0
	for _, token := range tokens {
		if sent >= e.cfg.MaxAlertsPerScan {
			break
		}

		verdict := e.filter.Evaluate(token)
		if !verdict.Accepted {
			tokensFiltered.WithLabelValues(string(token.Source), verdict.Reason).Inc()
			continue
		}
		if !e.gate.AdmitAlert(token.Mint) {
			alertsSuppressed.Inc()
			continue
		}

		tokensDiscovered.WithLabelValues(string(token.Source)).Inc()
		e.alerts.TokenAlert(ctx, token)
		sent++
	}

	if sent > 0 {
		e.logger.Info("scan complete", zap.Int("candidates", len(tokens)), zap.Int("alerts", sent))
	}
}

// change1h - ключ сортировки movers, неизвестное изменение в конец
func change1h(t models.DiscoveredToken) float64 {
	if t.Metrics.PriceChange1h == nil {
		return math.Inf(-1)
	}
	return *t.Metrics.PriceChange1h
}

// ============================================================
// Команды и heartbeat
// ============================================================

// pollTick забирает обновления Telegram и раздаёт их обработчику.
// Сообщения из неавторизованных чатов молча отбрасываются.
func (e *Engine) pollTick(ctx context.Context) {
	updates, err := e.source.Updates(ctx, e.updateOffset, 2*time.Second)
	if err != nil {
		e.logger.Warn("command poll failed", zap.Error(err))
		return
	}

	for _, update := range updates {
		if update.UpdateID >= e.updateOffset {
			e.updateOffset = update.UpdateID + 1
		}

		switch {
		case update.Message != nil:
			if update.Message.Chat.ID != e.cfg.AuthorizedChatID {
				e.logger.Warn("message from unauthorized chat dropped",
					zap.Int64("chat_id", update.Message.Chat.ID))
				continue
			}
			e.commands.HandleText(ctx, update.Message.Text)

		case update.Callback != nil:
			if update.Callback.Message == nil || update.Callback.Message.Chat.ID != e.cfg.AuthorizedChatID {
				continue
			}
			ack := e.commands.CallbackAck(update.Callback.Data)
			if err := e.source.AnswerCallback(ctx, update.Callback.ID, ack); err != nil {
				e.logger.Debug("answer callback failed", zap.Error(err))
			}
			if ack == "" {
				continue
			}
			// Сделка может ждать подтверждения десятки секунд -
			// не блокируем опрос команд
			data := update.Callback.Data
			go e.commands.HandleCallback(context.WithoutCancel(ctx), data)
		}
	}
}

func (e *Engine) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.alerts.Heartbeat(ctx, e.gate.SeenCount(), e.store.Count(), e.store.Stats(), time.Since(e.startedAt))
		case <-ctx.Done():
			return
		}
	}
}

// ============================================================
// Статус для HTTP API
// ============================================================

// Status - снимок состояния для /status
type Status struct {
	Uptime        string            `json:"uptime"`
	AutoTrade     bool              `json:"auto_trade"`
	SeenTokens    int               `json:"seen_tokens"`
	OpenPositions []models.Position `json:"open_positions"`
	MaxPositions  int               `json:"max_positions"`
	Stats         models.TradeStats `json:"stats"`
}

// StatusSnapshot возвращает текущее состояние движка
func (e *Engine) StatusSnapshot() Status {
	uptime := time.Since(e.startedAt).Round(time.Second)
	return Status{
		Uptime:        uptime.String(),
		AutoTrade:     e.cfg.AutoTrade,
		SeenTokens:    e.gate.SeenCount(),
		OpenPositions: e.store.List(),
		MaxPositions:  e.store.MaxPositions(),
		Stats:         e.store.Stats(),
	}
}
