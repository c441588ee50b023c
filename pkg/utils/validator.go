package utils

import "github.com/mr-tron/base58"

// validator.go - валидация входных данных операторских команд

// Границы длины base58 представления 32-байтового адреса
const (
	minMintLength = 32
	maxMintLength = 44
)

// IsMintAddress проверяет, похожа ли строка на mint адрес токена.
//
// Адрес - base58 кодирование 32 байт: длина строки 32-44 символа,
// алфавит base58 (без 0, O, I, l). Используется для распознавания
// вставленного в чат адреса контракта.
func IsMintAddress(s string) bool {
	if len(s) < minMintLength || len(s) > maxMintLength {
		return false
	}
	decoded, err := base58.Decode(s)
	if err != nil {
		return false
	}
	return len(decoded) == 32
}
