package bot

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"sniper/internal/models"
)

// Seller - операция продажи позиции (реализуется Executor)
type Seller interface {
	Sell(ctx context.Context, mint string, fraction float64, reason string) (*models.ClosedPosition, error)
}

// MonitorConfig - параметры контроля позиций
type MonitorConfig struct {
	TakeProfitPercent float64
	StopLossPercent   float64 // trailing stop от максимума
	RetryFailedSells  bool    // повторять авто-продажу на следующем тике
}

// Monitor переоценивает открытые позиции и исполняет политику выхода
//
// Тик обрабатывает позиции последовательно (ограничение нагрузки на
// market gateway). Приоритет выхода фиксированный: take-profit
// раньше trailing stop. Ошибка получения цены пропускает позицию
// на этот тик, не валя цикл.
type Monitor struct {
	cfg    MonitorConfig
	store  *Store
	market MarketData
	seller Seller
	logger *zap.Logger
}

// NewMonitor создаёт монитор позиций
func NewMonitor(cfg MonitorConfig, store *Store, market MarketData, seller Seller, logger *zap.Logger) *Monitor {
	return &Monitor{
		cfg:    cfg,
		store:  store,
		market: market,
		seller: seller,
		logger: logger.Named("monitor"),
	}
}

// Tick - один проход по всем открытым позициям
//
// Вызывающий обязан не допускать перекрытия тиков (гард в engine):
// новый тик поверх незавершённой продажи - двойная продажа.
func (m *Monitor) Tick(ctx context.Context) {
	monitorTicks.Inc()

	for _, position := range m.store.List() {
		if ctx.Err() != nil {
			return
		}
		if position.Status != models.StatusOpen {
			continue
		}
		m.evaluate(ctx, position)
	}
}

// evaluate переоценивает одну позицию
func (m *Monitor) evaluate(ctx context.Context, position models.Position) {
	metrics, err := m.market.PairByMint(ctx, position.Mint)
	if err != nil || metrics.PriceUSD == nil || *metrics.PriceUSD <= 0 {
		m.logger.Warn("price unavailable, skipping position this tick",
			zap.String("mint", position.Mint),
			zap.Error(err))
		return
	}
	price := *metrics.PriceUSD

	// Максимум сперва персистится, потом по нему принимается решение:
	// иначе падение между решением и записью откатывает watermark
	if err := m.store.UpdatePrice(position.Mint, price); err != nil {
		// Позиция исчезла между List и UpdatePrice (ручная продажа)
		return
	}

	updated, err := m.store.Get(position.Mint)
	if err != nil {
		return
	}

	reason, triggered := m.exitReason(updated, price)
	if !triggered {
		return
	}

	if m.seller == nil {
		m.logger.Warn("exit triggered but trading disabled",
			zap.String("mint", position.Mint),
			zap.String("reason", reason))
		return
	}

	if updated.AutoExitDisabled {
		m.logger.Warn("exit triggered but auto-exit disabled, manual /sell required",
			zap.String("mint", position.Mint),
			zap.String("reason", reason))
		return
	}

	m.logger.Info("exit triggered",
		zap.String("mint", position.Mint),
		zap.String("reason", reason),
		zap.Float64("price", price),
		zap.Float64("entry", updated.EntryPrice),
		zap.Float64("highest", updated.HighestPrice))

	if _, err := m.seller.Sell(ctx, position.Mint, 1, reason); err != nil {
		if errors.Is(err, ErrSellInProgress) || errors.Is(err, ErrNotFound) {
			// Ручная продажа успела раньше
			return
		}

		m.logger.Error("automatic sell failed",
			zap.String("mint", position.Mint),
			zap.String("reason", reason),
			zap.Error(err))

		if !m.cfg.RetryFailedSells {
			m.store.DisableAutoExit(position.Mint)
		}
	}
}

// Допуск сравнения PnL с порогом take-profit. Деление в float64
// недобирает до ровного процента (+50% от 0.0001 считается как
// 49.99999999999998), без допуска точное попадание в порог не
// срабатывает никогда.
const pnlEpsilon = 1e-9

// exitReason применяет политику выхода в фиксированном порядке
func (m *Monitor) exitReason(p *models.Position, price float64) (string, bool) {
	// 1. Take-profit
	if p.EntryPrice > 0 {
		pnl := (price - p.EntryPrice) / p.EntryPrice * 100
		if pnl >= m.cfg.TakeProfitPercent-pnlEpsilon {
			return models.ReasonTakeProfit, true
		}
	}

	// 2. Trailing stop: порог тянется вверх за максимумом
	if price <= p.TrailingStopPrice(m.cfg.StopLossPercent) {
		return models.ReasonTrailingStop, true
	}

	return "", false
}
