package bot

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"sniper/internal/models"
	"sniper/internal/store"
)

func newTestStore(t *testing.T, maxPositions int) (*Store, *store.SnapshotStore) {
	t.Helper()
	snap := store.NewSnapshotStore(filepath.Join(t.TempDir(), "positions.json"))
	return NewStore(maxPositions, snap, zap.NewNop()), snap
}

func TestOpenDuplicateYieldsAlreadyOpen(t *testing.T) {
	s, _ := newTestStore(t, 3)

	_, err := s.Open("MintA", "AAA", 0.01, 0.0001, "sig1")
	require.NoError(t, err)

	_, err = s.Open("MintA", "AAA", 0.01, 0.0002, "sig2")
	assert.ErrorIs(t, err, ErrAlreadyOpen)
}

func TestOpenAtCapacityYieldsCapacityExceeded(t *testing.T) {
	s, _ := newTestStore(t, 2)

	_, err := s.Open("MintA", "A", 0.01, 1, "s1")
	require.NoError(t, err)
	_, err = s.Open("MintB", "B", 0.01, 1, "s2")
	require.NoError(t, err)

	_, err = s.Open("MintC", "C", 0.01, 1, "s3")
	assert.ErrorIs(t, err, ErrCapacityExceeded)

	// Закрытие освобождает слот
	_, err = s.Close("MintA", 1.5, models.ReasonManual)
	require.NoError(t, err)
	_, err = s.Open("MintC", "C", 0.01, 1, "s3")
	assert.NoError(t, err)
}

func TestOperationsAfterCloseYieldNotFound(t *testing.T) {
	s, _ := newTestStore(t, 3)

	_, err := s.Open("MintA", "A", 0.01, 1, "s1")
	require.NoError(t, err)

	_, err = s.Close("MintA", 2, models.ReasonManual)
	require.NoError(t, err)

	assert.ErrorIs(t, s.UpdatePrice("MintA", 3), ErrNotFound)

	_, err = s.Close("MintA", 3, models.ReasonManual)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Get("MintA")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListPreservesInsertionOrder(t *testing.T) {
	s, _ := newTestStore(t, 5)

	for _, mint := range []string{"Mint3", "Mint1", "Mint2"} {
		_, err := s.Open(mint, mint, 0.01, 1, "sig")
		require.NoError(t, err)
	}

	var mints []string
	for _, p := range s.List() {
		mints = append(mints, p.Mint)
	}
	assert.Equal(t, []string{"Mint3", "Mint1", "Mint2"}, mints)

	// Закрытие из середины сохраняет порядок остальных
	_, err := s.Close("Mint1", 1, models.ReasonManual)
	require.NoError(t, err)

	mints = nil
	for _, p := range s.List() {
		mints = append(mints, p.Mint)
	}
	assert.Equal(t, []string{"Mint3", "Mint2"}, mints)
}

func TestUpdatePriceTracksHighestMonotonically(t *testing.T) {
	s, _ := newTestStore(t, 3)

	_, err := s.Open("MintA", "A", 0.01, 0.0001, "s1")
	require.NoError(t, err)

	require.NoError(t, s.UpdatePrice("MintA", 0.0002))
	p, _ := s.Get("MintA")
	assert.Equal(t, 0.0002, p.HighestPrice)

	// Падение цены не опускает максимум
	require.NoError(t, s.UpdatePrice("MintA", 0.00015))
	p, _ = s.Get("MintA")
	assert.Equal(t, 0.00015, p.CurrentPrice)
	assert.Equal(t, 0.0002, p.HighestPrice)
}

func TestBeginCloseSerializesSells(t *testing.T) {
	s, _ := newTestStore(t, 3)

	_, err := s.Open("MintA", "A", 0.01, 1, "s1")
	require.NoError(t, err)

	claimed, err := s.BeginClose("MintA")
	require.NoError(t, err)
	assert.Equal(t, models.StatusClosing, claimed.Status)

	// Конкурирующая продажа отклоняется
	_, err = s.BeginClose("MintA")
	assert.ErrorIs(t, err, ErrSellInProgress)

	// Неудача возвращает в Open, продажа снова возможна
	s.RevertClose("MintA", false)
	_, err = s.BeginClose("MintA")
	assert.NoError(t, err)
}

func TestRevertCloseCanDisableAutoExit(t *testing.T) {
	s, _ := newTestStore(t, 3)

	_, err := s.Open("MintA", "A", 0.01, 1, "s1")
	require.NoError(t, err)

	_, err = s.BeginClose("MintA")
	require.NoError(t, err)

	s.RevertClose("MintA", true)

	p, err := s.Get("MintA")
	require.NoError(t, err)
	assert.Equal(t, models.StatusOpen, p.Status)
	assert.True(t, p.AutoExitDisabled)
}

func TestCloseComputesPnlAndStats(t *testing.T) {
	s, _ := newTestStore(t, 3)

	_, err := s.Open("MintA", "A", 0.02, 0.0001, "s1")
	require.NoError(t, err)

	closed, err := s.Close("MintA", 0.00015, models.ReasonTakeProfit)
	require.NoError(t, err)

	assert.InDelta(t, 50.0, closed.PnlPercent, 1e-9)
	assert.InDelta(t, 0.01, closed.PnlSOL, 1e-9)
	assert.Equal(t, models.ReasonTakeProfit, closed.Reason)

	stats := s.Stats()
	assert.Equal(t, 1, stats.TotalTrades)
	assert.Equal(t, 1, stats.Wins)
	assert.InDelta(t, 0.01, stats.TotalProfitSOL, 1e-9)

	// Убыточная сделка
	_, err = s.Open("MintB", "B", 0.01, 0.0002, "s2")
	require.NoError(t, err)
	closed, err = s.Close("MintB", 0.0001, models.ReasonTrailingStop)
	require.NoError(t, err)
	assert.InDelta(t, -50.0, closed.PnlPercent, 1e-9)

	stats = s.Stats()
	assert.Equal(t, 2, stats.TotalTrades)
	assert.Equal(t, 1, stats.Losses)
}

func TestMutationsFlushToSnapshot(t *testing.T) {
	s, snap := newTestStore(t, 3)

	_, err := s.Open("MintA", "A", 0.01, 0.0001, "s1")
	require.NoError(t, err)

	state, err := snap.Load()
	require.NoError(t, err)
	require.Contains(t, state.Positions, "MintA")

	// Новый максимум цены попадает в снапшот синхронно
	require.NoError(t, s.UpdatePrice("MintA", 0.0005))
	state, err = snap.Load()
	require.NoError(t, err)
	assert.Equal(t, 0.0005, state.Positions["MintA"].HighestPrice)

	_, err = s.Close("MintA", 0.0005, models.ReasonManual)
	require.NoError(t, err)
	state, err = snap.Load()
	require.NoError(t, err)
	assert.Empty(t, state.Positions)
	assert.Equal(t, 1, state.Stats.TotalTrades)
}

func TestRestoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "positions.json")
	snap := store.NewSnapshotStore(path)

	s1 := NewStore(3, snap, zap.NewNop())
	_, err := s1.Open("MintA", "A", 0.01, 0.0001, "s1")
	require.NoError(t, err)
	require.NoError(t, s1.UpdatePrice("MintA", 0.0003))

	// Новый процесс читает тот же файл
	state, err := snap.Load()
	require.NoError(t, err)

	s2 := NewStore(3, snap, zap.NewNop())
	s2.Restore(state)

	p, err := s2.Get("MintA")
	require.NoError(t, err)
	assert.Equal(t, 0.0001, p.EntryPrice)
	assert.Equal(t, 0.0003, p.HighestPrice)
	assert.Equal(t, models.StatusOpen, p.Status)
}

func TestRestoreRevertsStuckClosing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "positions.json")
	snap := store.NewSnapshotStore(path)

	s1 := NewStore(3, snap, zap.NewNop())
	_, err := s1.Open("MintA", "A", 0.01, 1, "s1")
	require.NoError(t, err)
	_, err = s1.BeginClose("MintA")
	require.NoError(t, err)

	// "Падение" посреди продажи: снапшот хранит CLOSING
	state, err := snap.Load()
	require.NoError(t, err)
	require.Equal(t, models.StatusClosing, state.Positions["MintA"].Status)

	s2 := NewStore(3, snap, zap.NewNop())
	s2.Restore(state)

	p, err := s2.Get("MintA")
	require.NoError(t, err)
	assert.Equal(t, models.StatusOpen, p.Status)
}
