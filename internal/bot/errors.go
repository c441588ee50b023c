package bot

import "errors"

// Ошибки хранилища позиций и исполнителя
var (
	// ErrAlreadyOpen - по токену уже есть открытая позиция (без усреднения)
	ErrAlreadyOpen = errors.New("position already open for mint")

	// ErrCapacityExceeded - достигнут лимит одновременных позиций
	ErrCapacityExceeded = errors.New("max positions reached")

	// ErrNotFound - позиция по mint не найдена
	ErrNotFound = errors.New("position not found")

	// ErrSellInProgress - продажа позиции уже исполняется
	ErrSellInProgress = errors.New("sell already in progress")

	// ErrTradingDisabled - торговля выключена конфигурацией
	ErrTradingDisabled = errors.New("trading disabled")
)
