package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"sniper/internal/models"
	"sniper/internal/venue"
	"sniper/pkg/retry"
)

// Резервная цена входа когда рынок ещё не знает о токене
// (покупка на первых секундах жизни пары)
const fallbackEntryPrice = 0.00001

// Signer подписывает сериализованные транзакции
type Signer interface {
	SignTransaction(tx []byte) ([]byte, error)
	PublicKey() string
}

// ChainClient отправляет транзакции и ждёт подтверждения
type ChainClient interface {
	Submit(ctx context.Context, signedTx []byte) (string, error)
	Confirm(ctx context.Context, signature string) error
}

// MarketData - источник рыночных метрик токена
type MarketData interface {
	PairByMint(ctx context.Context, mint string) (models.Metrics, error)
}

// ExecutionError - итог неудачного исполнения сделки
type ExecutionError struct {
	AllVenuesFailed bool
	Last            error
}

func (e *ExecutionError) Error() string {
	if e.AllVenuesFailed {
		return fmt.Sprintf("all venues failed: %v", e.Last)
	}
	return fmt.Sprintf("execution failed: %v", e.Last)
}

func (e *ExecutionError) Unwrap() error {
	return e.Last
}

// ExecutorConfig - параметры исполнения
type ExecutorConfig struct {
	BuySOL          float64
	SlippagePercent float64
	PriorityFeeSOL  float64

	Routes    []string // порядок fallback для покупки
	SellRoute string   // единственный маршрут продажи

	SubmitMaxAttempts int
	ConfirmTimeout    time.Duration
}

// Executor превращает намерение купить/продать в подтверждённую сделку
//
// Покупка: маршруты пробуются по порядку до первого построившего
// транзакцию (ошибка маршрута не ретраится - сразу следующий);
// исчерпание списка даёт ExecutionError{AllVenuesFailed}. Дальше
// подпись, отправка с бюджетом повторов (только transient ошибки)
// и ожидание подтверждения.
//
// Продажа идёт тем же путём через один настроенный маршрут.
type Executor struct {
	cfg      ExecutorConfig
	provider venue.Provider
	signer   Signer
	chain    ChainClient
	market   MarketData
	store    *Store
	alerts   *Dispatcher
	logger   *zap.Logger
}

// NewExecutor создаёт исполнитель сделок
func NewExecutor(
	cfg ExecutorConfig,
	provider venue.Provider,
	signer Signer,
	chain ChainClient,
	market MarketData,
	store *Store,
	alerts *Dispatcher,
	logger *zap.Logger,
) *Executor {
	return &Executor{
		cfg:      cfg,
		provider: provider,
		signer:   signer,
		chain:    chain,
		market:   market,
		store:    store,
		alerts:   alerts,
		logger:   logger.Named("executor"),
	}
}

// Buy покупает токен на amountSOL и открывает позицию
//
// Лимит позиций проверяется до исполнения: отправлять транзакцию
// которую негде учесть нельзя.
func (e *Executor) Buy(ctx context.Context, mint, symbol string, amountSOL float64) (*models.Position, error) {
	if amountSOL <= 0 {
		amountSOL = e.cfg.BuySOL
	}

	if _, err := e.store.Get(mint); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyOpen, mint)
	}
	if e.store.Count() >= e.store.MaxPositions() {
		return nil, fmt.Errorf("%w (%d)", ErrCapacityExceeded, e.store.MaxPositions())
	}

	tx, err := e.buildBuy(ctx, mint, amountSOL)
	if err != nil {
		tradesExecuted.WithLabelValues("buy", "venue_failed").Inc()
		e.alerts.FailureAlert(ctx, "buy", mint, err)
		return nil, err
	}

	signature, err := e.signAndSubmit(ctx, tx)
	if err != nil {
		tradesExecuted.WithLabelValues("buy", "submit_failed").Inc()
		e.alerts.FailureAlert(ctx, "buy", mint, err)
		return nil, &ExecutionError{Last: err}
	}

	entryPrice := e.currentPrice(ctx, mint, fallbackEntryPrice)

	position, err := e.store.Open(mint, symbol, amountSOL, entryPrice, signature)
	if err != nil {
		// Сделка прошла, а учесть позицию не вышло (гонка за лимит).
		// Кошелёк держит токены вне учёта - кричим оператору.
		e.logger.Error("confirmed buy could not be recorded",
			zap.String("mint", mint),
			zap.String("signature", signature),
			zap.Error(err))
		e.alerts.FailureAlert(ctx, "buy", mint, fmt.Errorf("trade confirmed but not recorded: %w", err))
		return nil, err
	}

	tradesExecuted.WithLabelValues("buy", "ok").Inc()
	e.logger.Info("buy confirmed",
		zap.String("mint", mint),
		zap.String("signature", signature),
		zap.Float64("amount_sol", amountSOL),
		zap.Float64("entry_price", entryPrice))

	e.alerts.TradeAlert(ctx, *position)
	return position, nil
}

// Sell продаёт долю позиции (fraction в (0, 1]) и закрывает её
//
// Количество принимается только как доля, не как абсолютное число
// токенов: trade API выражает продажу в процентах от баланса
// кошелька ("100%"), и абсолютное число пришлось бы пересчитывать
// через отдельный запрос баланса. Доля отображается в форму "N%".
//
// Позиция захватывается через BeginClose: конкурирующая продажа
// того же токена получает ErrSellInProgress. Неудача возвращает
// позицию в Open - решение о повторе за вызывающим.
func (e *Executor) Sell(ctx context.Context, mint string, fraction float64, reason string) (*models.ClosedPosition, error) {
	if fraction <= 0 || fraction > 1 {
		return nil, fmt.Errorf("sell fraction must be in (0, 1], got %v", fraction)
	}

	position, err := e.store.BeginClose(mint)
	if err != nil {
		return nil, err
	}

	closed, err := e.executeSell(ctx, position, fraction, reason)
	if err != nil {
		e.store.RevertClose(mint, false)
		tradesExecuted.WithLabelValues("sell", "failed").Inc()
		e.alerts.FailureAlert(ctx, "sell", mint, err)
		return nil, err
	}

	tradesExecuted.WithLabelValues("sell", "ok").Inc()
	e.alerts.CloseAlert(ctx, *closed)
	return closed, nil
}

func (e *Executor) executeSell(ctx context.Context, position *models.Position, fraction float64, reason string) (*models.ClosedPosition, error) {
	req := venue.SwapRequest{
		PublicKey:        e.signer.PublicKey(),
		Side:             venue.SideSell,
		Mint:             position.Mint,
		Amount:           fmt.Sprintf("%d%%", int(fraction*100)),
		DenominatedInSOL: false,
		SlippagePercent:  e.cfg.SlippagePercent,
		PriorityFeeSOL:   e.cfg.PriorityFeeSOL,
		Route:            e.cfg.SellRoute,
	}

	tx, err := e.provider.BuildSwap(ctx, req)
	if err != nil {
		return nil, err
	}

	signature, err := e.signAndSubmit(ctx, tx)
	if err != nil {
		return nil, &ExecutionError{Last: err}
	}

	exitPrice := e.currentPrice(ctx, position.Mint, position.CurrentPrice)

	closed, err := e.store.Close(position.Mint, exitPrice, reason)
	if err != nil {
		return nil, err
	}

	e.logger.Info("sell confirmed",
		zap.String("mint", position.Mint),
		zap.String("signature", signature),
		zap.String("reason", reason),
		zap.Float64("pnl_percent", closed.PnlPercent))

	return closed, nil
}

// buildBuy пробует маршруты по порядку до первой построенной транзакции
func (e *Executor) buildBuy(ctx context.Context, mint string, amountSOL float64) ([]byte, error) {
	var lastErr error

	for i, route := range e.cfg.Routes {
		req := venue.SwapRequest{
			PublicKey:        e.signer.PublicKey(),
			Side:             venue.SideBuy,
			Mint:             mint,
			Amount:           amountSOL,
			DenominatedInSOL: true,
			SlippagePercent:  e.cfg.SlippagePercent,
			PriorityFeeSOL:   e.cfg.PriorityFeeSOL,
			Route:            route,
		}

		tx, err := e.provider.BuildSwap(ctx, req)
		if err == nil {
			return tx, nil
		}
		lastErr = err

		e.logger.Warn("venue failed, trying next",
			zap.String("mint", mint),
			zap.String("route", route),
			zap.Error(err))

		if i < len(e.cfg.Routes)-1 {
			venueFallbacks.WithLabelValues(e.cfg.Routes[i+1]).Inc()
		}

		if ctx.Err() != nil {
			break
		}
	}

	return nil, &ExecutionError{AllVenuesFailed: true, Last: lastErr}
}

// signAndSubmit подписывает, отправляет с бюджетом повторов и ждёт подтверждения
func (e *Executor) signAndSubmit(ctx context.Context, tx []byte) (string, error) {
	signed, err := e.signer.SignTransaction(tx)
	if err != nil {
		return "", retry.Permanent(fmt.Errorf("sign transaction: %w", err))
	}

	submitCfg := retry.SubmissionConfig()
	submitCfg.MaxRetries = e.cfg.SubmitMaxAttempts
	submitCfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		submitRetries.Inc()
		e.logger.Warn("submit retry",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
	}

	signature, err := retry.DoWithResult(ctx, func() (string, error) {
		return e.chain.Submit(ctx, signed)
	}, submitCfg)
	if err != nil {
		return "", err
	}

	confirmCtx, cancel := context.WithTimeout(ctx, e.cfg.ConfirmTimeout)
	defer cancel()

	if err := e.chain.Confirm(confirmCtx, signature); err != nil {
		return "", err
	}

	return signature, nil
}

// currentPrice возвращает цену токена либо fallback если рынок молчит
func (e *Executor) currentPrice(ctx context.Context, mint string, fallback float64) float64 {
	metrics, err := e.market.PairByMint(ctx, mint)
	if err != nil || metrics.PriceUSD == nil || *metrics.PriceUSD <= 0 {
		if err != nil && !errors.Is(err, context.Canceled) {
			e.logger.Debug("price lookup failed, using fallback",
				zap.String("mint", mint),
				zap.Float64("fallback", fallback),
				zap.Error(err))
		}
		return fallback
	}
	return *metrics.PriceUSD
}
