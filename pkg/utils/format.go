package utils

import (
	"fmt"
	"math"
	"time"
)

// format.go - форматирование значений для алертов и команд
//
// Все функции чистые, значение "неизвестно" (nil) отображается
// явно, а не как ноль.

// FormatUSD форматирует сумму в доллары с сокращением K/M/B
//
// Примеры:
//   - FormatUSD(1234)       = "$1.2K"
//   - FormatUSD(2500000)    = "$2.50M"
//   - FormatUSD(0.42)       = "$0.42"
func FormatUSD(amount float64) string {
	abs := math.Abs(amount)
	switch {
	case abs >= 1e9:
		return fmt.Sprintf("$%.2fB", amount/1e9)
	case abs >= 1e6:
		return fmt.Sprintf("$%.2fM", amount/1e6)
	case abs >= 1e3:
		return fmt.Sprintf("$%.1fK", amount/1e3)
	default:
		return fmt.Sprintf("$%.2f", amount)
	}
}

// FormatUSDPtr форматирует nullable сумму, nil -> "?"
func FormatUSDPtr(amount *float64) string {
	if amount == nil {
		return "?"
	}
	return FormatUSD(*amount)
}

// FormatPercent форматирует процент со знаком: "+8.3%", "-12.0%"
func FormatPercent(value float64) string {
	sign := ""
	if value >= 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.1f%%", sign, value)
}

// FormatPercentPtr форматирует nullable процент, nil -> "?"
func FormatPercentPtr(value *float64) string {
	if value == nil {
		return "?"
	}
	return FormatPercent(*value)
}

// FormatCount форматирует счётчик с сокращением K/M
//
// Примеры: FormatCount(953) = "953", FormatCount(12400) = "12.4K"
func FormatCount(n int) string {
	switch {
	case n >= 1e6:
		return fmt.Sprintf("%.1fM", float64(n)/1e6)
	case n >= 1e3:
		return fmt.Sprintf("%.1fK", float64(n)/1e3)
	default:
		return fmt.Sprintf("%d", n)
	}
}

// FormatAge возвращает возраст от t до now: "45s", "12m", "3h", "2d"
func FormatAge(t, now time.Time) string {
	d := now.Sub(t)
	if d < 0 {
		d = 0
	}
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

// Abbrev сокращает mint адрес до "ABCDEF...UVWXYZ" для читаемости
func Abbrev(mint string, n int) string {
	if len(mint) <= 2*n {
		return mint
	}
	return mint[:n] + "..." + mint[len(mint)-n:]
}
