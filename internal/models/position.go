package models

import "time"

// Статусы позиции
const (
	StatusOpen    = "OPEN"    // позиция открыта, мониторится
	StatusClosing = "CLOSING" // идёт исполнение продажи
	StatusClosed  = "CLOSED"  // позиция закрыта
)

// Position - открытая позиция по токену.
//
// Ключ - mint адрес: не более одной открытой позиции на токен
// (без усреднения). Владелец - bot.Store; монитор и исполнитель
// мутируют позицию только через его API.
//
// Инварианты:
//   - HighestPrice >= CurrentPrice после каждого тика монитора
//   - HighestPrice >= EntryPrice НЕ гарантируется (цена может упасть сразу)
type Position struct {
	Mint         string    `json:"mint"`
	Symbol       string    `json:"symbol,omitempty"`
	AmountSOL    float64   `json:"amount_sol"`     // размер позиции в SOL
	EntryPrice   float64   `json:"entry_price"`    // USD за токен
	CurrentPrice float64   `json:"current_price"`  // обновляется монитором
	HighestPrice float64   `json:"highest_price"`  // максимум с открытия (trailing stop)
	OpenedAt     time.Time `json:"opened_at"`
	BuySignature string    `json:"buy_signature"`  // подпись транзакции покупки
	Status       string    `json:"status"`

	// AutoExitDisabled выставляется монитором когда автоматическая
	// продажа не удалась и повтор по тику отключён конфигурацией.
	// Такая позиция закрывается только ручной командой /sell.
	AutoExitDisabled bool `json:"auto_exit_disabled,omitempty"`
}

// PnlPercent возвращает нереализованный PnL в процентах от цены входа
func (p *Position) PnlPercent() float64 {
	if p.EntryPrice == 0 {
		return 0
	}
	return (p.CurrentPrice - p.EntryPrice) / p.EntryPrice * 100
}

// TrailingStopPrice возвращает цену срабатывания trailing stop.
// Порог подтягивается монотонно вверх вместе с HighestPrice и
// никогда не ослабляется.
func (p *Position) TrailingStopPrice(stopLossPercent float64) float64 {
	return p.HighestPrice * (1 - stopLossPercent/100)
}

// ClosedPosition - результат закрытия позиции
type ClosedPosition struct {
	Position   Position  `json:"position"`
	ExitPrice  float64   `json:"exit_price"`
	Reason     string    `json:"reason"` // "take profit", "trailing stop", "manual"
	PnlPercent float64   `json:"pnl_percent"`
	PnlSOL     float64   `json:"pnl_sol"`
	ClosedAt   time.Time `json:"closed_at"`
}

// Причины закрытия позиции
const (
	ReasonTakeProfit   = "take profit"
	ReasonTrailingStop = "trailing stop"
	ReasonManual       = "manual"
)
