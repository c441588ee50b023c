package bot

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"sniper/internal/models"
	"sniper/internal/store"
)

// seqMarket выдаёт цены по mint, продвигаясь по последовательности
// на каждый запрос
type seqMarket struct {
	prices map[string][]float64
	errs   map[string]error
	calls  []string
}

func (s *seqMarket) PairByMint(ctx context.Context, mint string) (models.Metrics, error) {
	s.calls = append(s.calls, mint)
	if err, ok := s.errs[mint]; ok {
		return models.Metrics{}, err
	}
	seq := s.prices[mint]
	if len(seq) == 0 {
		return models.Metrics{}, errors.New("no price")
	}
	price := seq[0]
	if len(seq) > 1 {
		s.prices[mint] = seq[1:]
	}
	return models.Metrics{PriceUSD: models.Float(price)}, nil
}

// fakeSeller имитирует исполнителя: успех закрывает позицию в store
type fakeSeller struct {
	store *Store
	fail  error
	sells []string // mint + причина
}

func (f *fakeSeller) Sell(ctx context.Context, mint string, fraction float64, reason string) (*models.ClosedPosition, error) {
	f.sells = append(f.sells, mint+":"+reason)

	p, err := f.store.BeginClose(mint)
	if err != nil {
		return nil, err
	}
	if f.fail != nil {
		f.store.RevertClose(mint, false)
		return nil, f.fail
	}
	return f.store.Close(mint, p.CurrentPrice, reason)
}

type monitorFixture struct {
	monitor *Monitor
	store   *Store
	market  *seqMarket
	seller  *fakeSeller
}

func newMonitorFixture(t *testing.T, retryFailedSells bool) *monitorFixture {
	t.Helper()

	snap := store.NewSnapshotStore(filepath.Join(t.TempDir(), "positions.json"))
	st := NewStore(5, snap, zap.NewNop())
	market := &seqMarket{prices: map[string][]float64{}, errs: map[string]error{}}
	seller := &fakeSeller{store: st}

	cfg := MonitorConfig{
		TakeProfitPercent: 50,
		StopLossPercent:   20,
		RetryFailedSells:  retryFailedSells,
	}

	return &monitorFixture{
		monitor: NewMonitor(cfg, st, market, seller, zap.NewNop()),
		store:   st,
		market:  market,
		seller:  seller,
	}
}

func (f *monitorFixture) open(t *testing.T, mint string, entry float64) {
	t.Helper()
	_, err := f.store.Open(mint, mint, 0.01, entry, "sig")
	require.NoError(t, err)
}

func TestTakeProfitScenario(t *testing.T) {
	// Вход $0.00010, TP 50%: рост [0.00010, 0.00012, 0.00015] -
	// выход на тике где цена >= +50%
	f := newMonitorFixture(t, true)
	f.open(t, "MintA", 0.00010)
	f.market.prices["MintA"] = []float64{0.00010, 0.00012, 0.00015}

	f.monitor.Tick(context.Background())
	assert.Empty(t, f.seller.sells)

	f.monitor.Tick(context.Background())
	assert.Empty(t, f.seller.sells)

	f.monitor.Tick(context.Background())
	require.Len(t, f.seller.sells, 1)
	assert.Equal(t, "MintA:"+models.ReasonTakeProfit, f.seller.sells[0])
	assert.Equal(t, 0, f.store.Count())
}

func TestTrailingStopScenario(t *testing.T) {
	// Вход $0.00010, SL 20%: [0.00010, 0.00020 (новый максимум),
	// 0.00015] - trailing stop 0.00016, цена 0.00015 <= 0.00016,
	// выход "trailing stop" несмотря на PnL +50%... но PnL +50%
	// сперва триггерит take-profit, поэтому TP здесь отключён
	// высоким порогом
	f := newMonitorFixture(t, true)
	f.monitor.cfg.TakeProfitPercent = 500
	f.open(t, "MintA", 0.00010)
	f.market.prices["MintA"] = []float64{0.00010, 0.00020, 0.00015}

	f.monitor.Tick(context.Background())
	f.monitor.Tick(context.Background())
	assert.Empty(t, f.seller.sells)

	f.monitor.Tick(context.Background())
	require.Len(t, f.seller.sells, 1)
	assert.Equal(t, "MintA:"+models.ReasonTrailingStop, f.seller.sells[0])
}

func TestTakeProfitHasPriorityOverTrailingStop(t *testing.T) {
	// Цена удовлетворяет обоим условиям - причина "take profit"
	f := newMonitorFixture(t, true)
	f.open(t, "MintA", 0.00010)

	// Максимум задран так что trailing stop тоже сработал бы
	require.NoError(t, f.store.UpdatePrice("MintA", 0.00100))
	f.market.prices["MintA"] = []float64{0.00016} // +60% от входа, но <= 0.0008

	f.monitor.Tick(context.Background())
	require.Len(t, f.seller.sells, 1)
	assert.Equal(t, "MintA:"+models.ReasonTakeProfit, f.seller.sells[0])
}

func TestTrailingStopNeverLoosens(t *testing.T) {
	// Монотонность: после максимума порог не опускается
	f := newMonitorFixture(t, true)
	f.monitor.cfg.TakeProfitPercent = 10000
	f.open(t, "MintA", 0.00010)

	prices := []float64{0.00012, 0.00020, 0.00018, 0.00019}
	f.market.prices["MintA"] = prices

	var lastStop float64
	for range prices {
		f.monitor.Tick(context.Background())
		if f.store.Count() == 0 {
			break
		}
		p, err := f.store.Get("MintA")
		require.NoError(t, err)
		stop := p.TrailingStopPrice(20)
		assert.GreaterOrEqual(t, stop, lastStop)
		lastStop = stop
	}
}

func TestGatewayFailureSkipsPositionForTick(t *testing.T) {
	f := newMonitorFixture(t, true)
	f.open(t, "MintA", 0.00010)
	f.open(t, "MintB", 0.00010)

	f.market.errs["MintA"] = errors.New("gateway down")
	f.market.prices["MintB"] = []float64{0.00020} // +100%, TP

	f.monitor.Tick(context.Background())

	// MintA пропущен, MintB обработан
	require.Len(t, f.seller.sells, 1)
	assert.Equal(t, "MintB:"+models.ReasonTakeProfit, f.seller.sells[0])

	p, err := f.store.Get("MintA")
	require.NoError(t, err)
	assert.Equal(t, 0.00010, p.CurrentPrice) // цена не трогалась
}

func TestFailedSellRetriesNextTickByDefault(t *testing.T) {
	f := newMonitorFixture(t, true)
	f.open(t, "MintA", 0.00010)
	f.market.prices["MintA"] = []float64{0.00020}

	f.seller.fail = errors.New("sell failed")
	f.monitor.Tick(context.Background())
	require.Len(t, f.seller.sells, 1)

	// Позиция вернулась в Open и повторяется на следующем тике
	p, err := f.store.Get("MintA")
	require.NoError(t, err)
	assert.Equal(t, models.StatusOpen, p.Status)
	assert.False(t, p.AutoExitDisabled)

	f.seller.fail = nil
	f.monitor.Tick(context.Background())
	assert.Len(t, f.seller.sells, 2)
	assert.Equal(t, 0, f.store.Count())
}

func TestFailedSellDisablesAutoExitWhenConfigured(t *testing.T) {
	f := newMonitorFixture(t, false)
	f.open(t, "MintA", 0.00010)
	f.market.prices["MintA"] = []float64{0.00020}

	f.seller.fail = errors.New("sell failed")
	f.monitor.Tick(context.Background())
	require.Len(t, f.seller.sells, 1)

	p, err := f.store.Get("MintA")
	require.NoError(t, err)
	assert.True(t, p.AutoExitDisabled)

	// Следующие тики не продают даже при выполненном условии выхода
	f.seller.fail = nil
	f.monitor.Tick(context.Background())
	assert.Len(t, f.seller.sells, 1)
	assert.Equal(t, 1, f.store.Count())
}

func TestPositionsProcessedSequentiallyInOrder(t *testing.T) {
	f := newMonitorFixture(t, true)
	for _, mint := range []string{"Mint1", "Mint2", "Mint3"} {
		f.open(t, mint, 0.0001)
		f.market.prices[mint] = []float64{0.0001}
	}

	f.monitor.Tick(context.Background())
	assert.Equal(t, []string{"Mint1", "Mint2", "Mint3"}, f.market.calls)
}
