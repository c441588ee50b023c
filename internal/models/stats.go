package models

// TradeStats - накопительная статистика торговли.
// Обновляется монотонно при каждом закрытии позиции и
// сохраняется в durable snapshot вместе с позициями.
type TradeStats struct {
	TotalTrades    int     `json:"total_trades"`
	Wins           int     `json:"wins"`
	Losses         int     `json:"losses"`
	TotalProfitSOL float64 `json:"total_profit_sol"` // реализованный PnL в SOL
}

// Record учитывает закрытую сделку: win при положительном PnL%, иначе loss
func (s *TradeStats) Record(pnlPercent, pnlSOL float64) {
	s.TotalTrades++
	if pnlPercent > 0 {
		s.Wins++
	} else {
		s.Losses++
	}
	s.TotalProfitSOL += pnlSOL
}

// WinRate возвращает долю выигрышных сделок в процентах
func (s TradeStats) WinRate() float64 {
	if s.TotalTrades == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.TotalTrades) * 100
}
