package bot

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"sniper/internal/models"
	"sniper/internal/store"
)

// Store - авторитетная таблица открытых позиций
//
// Единственный владелец Position: монитор, исполнитель и командный
// обработчик мутируют позиции только через его методы. Каждая
// успешная мутация синхронно сбрасывается в durable снапшот.
//
// Сериализация продаж: продажа начинается с BeginClose (переход
// Open -> Closing), конкурирующая продажа того же токена получает
// ErrSellInProgress. Неудачная продажа возвращает позицию в Open
// через RevertClose.
type Store struct {
	mu        sync.Mutex
	positions map[string]*models.Position
	order     []string // mint в порядке открытия
	stats     models.TradeStats

	maxPositions int
	snapshot     *store.SnapshotStore
	logger       *zap.Logger
}

// NewStore создаёт хранилище с лимитом позиций и снапшотом
func NewStore(maxPositions int, snapshot *store.SnapshotStore, logger *zap.Logger) *Store {
	return &Store{
		positions:    make(map[string]*models.Position),
		maxPositions: maxPositions,
		snapshot:     snapshot,
		logger:       logger.Named("store"),
	}
}

// Restore загружает состояние из снапшота при старте
//
// Позиции застрявшие в Closing (процесс упал посреди продажи)
// возвращаются в Open: транзакция либо прошла, либо нет, монитор
// разберётся по текущей цене.
func (s *Store) Restore(state *store.State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, mint := range state.Order {
		p, ok := state.Positions[mint]
		if !ok {
			continue
		}
		if p.Status == models.StatusClosing {
			s.logger.Warn("position stuck in CLOSING, reverting to OPEN", zap.String("mint", mint))
			p.Status = models.StatusOpen
		}
		if p.Status != models.StatusOpen {
			continue
		}
		s.positions[mint] = p
		s.order = append(s.order, mint)
	}
	s.stats = state.Stats

	openPositions.Set(float64(len(s.positions)))
	s.logger.Info("state restored",
		zap.Int("open_positions", len(s.positions)),
		zap.Int("total_trades", s.stats.TotalTrades))
}

// Open регистрирует новую позицию
//
// Ошибки: ErrAlreadyOpen при повторном открытии того же токена
// (усреднение не поддерживается), ErrCapacityExceeded при достижении
// лимита одновременных позиций.
func (s *Store) Open(mint, symbol string, amountSOL, entryPrice float64, buySignature string) (*models.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.positions[mint]; ok {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyOpen, mint)
	}
	if len(s.positions) >= s.maxPositions {
		return nil, fmt.Errorf("%w (%d)", ErrCapacityExceeded, s.maxPositions)
	}

	p := &models.Position{
		Mint:         mint,
		Symbol:       symbol,
		AmountSOL:    amountSOL,
		EntryPrice:   entryPrice,
		CurrentPrice: entryPrice,
		HighestPrice: entryPrice,
		OpenedAt:     time.Now().UTC(),
		BuySignature: buySignature,
		Status:       models.StatusOpen,
	}
	s.positions[mint] = p
	s.order = append(s.order, mint)

	openPositions.Set(float64(len(s.positions)))
	s.flushLocked()

	return snapshotOf(p), nil
}

// UpdatePrice обновляет текущую цену позиции
//
// HighestPrice подтягивается монотонно вверх; flush выполняется
// только при новом максимуме - watermark двигает trailing stop и
// обязан пережить падение процесса, обычное движение цены
// восстановимо из рынка.
func (s *Store) UpdatePrice(mint string, price float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.positions[mint]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, mint)
	}

	p.CurrentPrice = price
	if price > p.HighestPrice {
		p.HighestPrice = price
		s.flushLocked()
	}

	return nil
}

// BeginClose переводит позицию Open -> Closing перед продажей
//
// Конкурирующая продажа (монитор против ручной команды) получает
// ErrSellInProgress. Возвращается копия позиции на момент захвата.
func (s *Store) BeginClose(mint string) (*models.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.positions[mint]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, mint)
	}
	if p.Status == models.StatusClosing {
		return nil, fmt.Errorf("%w: %s", ErrSellInProgress, mint)
	}
	if !CanTransition(p.Status, models.StatusClosing) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, mint)
	}

	p.Status = models.StatusClosing
	s.flushLocked()

	return snapshotOf(p), nil
}

// RevertClose возвращает позицию Closing -> Open после неудачной продажи
func (s *Store) RevertClose(mint string, disableAutoExit bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.positions[mint]
	if !ok || p.Status != models.StatusClosing {
		return
	}

	p.Status = models.StatusOpen
	if disableAutoExit {
		p.AutoExitDisabled = true
	}
	s.flushLocked()
}

// DisableAutoExit отключает автоматический выход для позиции.
// Вызывается монитором когда повтор неудачной продажи запрещён
// конфигурацией; позиция остаётся только под ручным управлением.
func (s *Store) DisableAutoExit(mint string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.positions[mint]
	if !ok || p.AutoExitDisabled {
		return
	}
	p.AutoExitDisabled = true
	s.flushLocked()
}

// Close закрывает позицию и обновляет статистику
//
// Допускается из Open и Closing (ручное закрытие без BeginClose не
// предусмотрено, но Close идемпотентно относительно статуса до
// закрытия). Повторный Close того же mint - ErrNotFound.
func (s *Store) Close(mint string, exitPrice float64, reason string) (*models.ClosedPosition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.positions[mint]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, mint)
	}

	p.CurrentPrice = exitPrice
	pnlPercent := p.PnlPercent()
	pnlSOL := p.AmountSOL * pnlPercent / 100

	closed := &models.ClosedPosition{
		Position:   *p,
		ExitPrice:  exitPrice,
		Reason:     reason,
		PnlPercent: pnlPercent,
		PnlSOL:     pnlSOL,
		ClosedAt:   time.Now().UTC(),
	}
	closed.Position.Status = models.StatusClosed

	delete(s.positions, mint)
	s.removeFromOrder(mint)
	s.stats.Record(pnlPercent, pnlSOL)

	openPositions.Set(float64(len(s.positions)))
	positionsClosed.WithLabelValues(reason).Inc()
	s.flushLocked()

	return closed, nil
}

// List возвращает копии открытых позиций в порядке открытия
func (s *Store) List() []models.Position {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]models.Position, 0, len(s.positions))
	for _, mint := range s.order {
		if p, ok := s.positions[mint]; ok {
			result = append(result, *p)
		}
	}
	return result
}

// Get возвращает копию позиции по mint
func (s *Store) Get(mint string) (*models.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.positions[mint]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, mint)
	}
	return snapshotOf(p), nil
}

// Count возвращает количество открытых позиций
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.positions)
}

// MaxPositions возвращает лимит одновременных позиций
func (s *Store) MaxPositions() int {
	return s.maxPositions
}

// Stats возвращает копию накопленной статистики
func (s *Store) Stats() models.TradeStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// flushLocked синхронно пишет снапшот. Вызывается под lock'ом.
//
// Ошибка записи логируется но не откатывает мутацию: in-memory
// состояние первично, потеря снапшота - деградация durability,
// не ошибка операции.
func (s *Store) flushLocked() {
	if s.snapshot == nil {
		return
	}

	state := &store.State{
		Positions: make(map[string]*models.Position, len(s.positions)),
		Order:     append([]string(nil), s.order...),
		Stats:     s.stats,
	}
	for mint, p := range s.positions {
		state.Positions[mint] = snapshotOf(p)
	}

	if err := s.snapshot.Save(state); err != nil {
		snapshotWrites.WithLabelValues("error").Inc()
		s.logger.Error("snapshot write failed", zap.Error(err))
		return
	}
	snapshotWrites.WithLabelValues("ok").Inc()
}

func (s *Store) removeFromOrder(mint string) {
	for i, m := range s.order {
		if m == mint {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

func snapshotOf(p *models.Position) *models.Position {
	cp := *p
	return &cp
}
