// Package venue - построение swap транзакций через торговые площадки.
package venue

import (
	"context"
	"fmt"
)

// Side - направление сделки
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// SwapRequest - параметры построения swap транзакции
type SwapRequest struct {
	PublicKey string // кошелёк (base58)
	Side      Side
	Mint      string // адрес токена

	// Amount: для buy - количество SOL, для sell - строка вида "100%"
	// (DenominatedInSOL управляет интерпретацией)
	Amount           interface{}
	DenominatedInSOL bool

	SlippagePercent float64
	PriorityFeeSOL  float64

	Route string // "auto", "pump", "raydium" и т.д.
}

// Provider строит неподписанную swap транзакцию для заданного маршрута
//
// Возвращаемые байты - сериализованная транзакция с пустыми слотами
// подписей, готовая для Wallet.SignTransaction.
type Provider interface {
	BuildSwap(ctx context.Context, req SwapRequest) ([]byte, error)
}

// Error - ошибка конкретного маршрута.
// Сохраняет маршрут для диагностики fallback цепочки.
type Error struct {
	Route string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("venue %s: %v", e.Route, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
