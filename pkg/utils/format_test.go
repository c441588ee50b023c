package utils

import (
	"testing"
	"time"
)

// ============================================================
// Тесты FormatUSD / FormatPercent / FormatCount
// ============================================================

func TestFormatUSD(t *testing.T) {
	tests := []struct {
		name     string
		amount   float64
		expected string
	}{
		// Базовые кейсы
		{"cents", 0.42, "$0.42"},
		{"units", 953, "$953.00"},
		{"thousands", 1234, "$1.2K"},
		{"millions", 2500000, "$2.50M"},
		{"billions", 3100000000, "$3.10B"},

		// Граничные случаи
		{"zero", 0, "$0.00"},
		{"exactly 1K", 1000, "$1.0K"},
		{"exactly 1M", 1000000, "$1.00M"},
		{"negative thousands", -5000, "$-5.0K"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FormatUSD(tt.amount)
			if result != tt.expected {
				t.Errorf("FormatUSD(%v) = %q, want %q", tt.amount, result, tt.expected)
			}
		})
	}
}

func TestFormatUSDPtr(t *testing.T) {
	if got := FormatUSDPtr(nil); got != "?" {
		t.Errorf("FormatUSDPtr(nil) = %q, want %q", got, "?")
	}
	v := 1500.0
	if got := FormatUSDPtr(&v); got != "$1.5K" {
		t.Errorf("FormatUSDPtr(&1500) = %q, want %q", got, "$1.5K")
	}
}

func TestFormatPercent(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		expected string
	}{
		{"positive", 8.34, "+8.3%"},
		{"negative", -12.01, "-12.0%"},
		{"zero gets plus", 0, "+0.0%"},
		{"large", 150, "+150.0%"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FormatPercent(tt.value)
			if result != tt.expected {
				t.Errorf("FormatPercent(%v) = %q, want %q", tt.value, result, tt.expected)
			}
		})
	}

	if got := FormatPercentPtr(nil); got != "?" {
		t.Errorf("FormatPercentPtr(nil) = %q, want %q", got, "?")
	}
}

func TestFormatCount(t *testing.T) {
	tests := []struct {
		name     string
		n        int
		expected string
	}{
		{"small", 953, "953"},
		{"thousands", 12400, "12.4K"},
		{"millions", 2500000, "2.5M"},
		{"zero", 0, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FormatCount(tt.n)
			if result != tt.expected {
				t.Errorf("FormatCount(%d) = %q, want %q", tt.n, result, tt.expected)
			}
		})
	}
}

// ============================================================
// Тесты FormatAge / Abbrev
// ============================================================

func TestFormatAge(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		age      time.Duration
		expected string
	}{
		{"seconds", 45 * time.Second, "45s"},
		{"minutes", 12 * time.Minute, "12m"},
		{"hours", 3 * time.Hour, "3h"},
		{"days", 49 * time.Hour, "2d"},
		{"future clamps to zero", -time.Minute, "0s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FormatAge(now.Add(-tt.age), now)
			if result != tt.expected {
				t.Errorf("FormatAge(now-%v) = %q, want %q", tt.age, result, tt.expected)
			}
		})
	}
}

func TestAbbrev(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		n        int
		expected string
	}{
		{"long mint", "So11111111111111111111111111111111111111112", 6, "So1111...111112"},
		{"short stays whole", "abcdef", 4, "abcdef"},
		{"exact boundary", "abcdefgh", 4, "abcdefgh"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Abbrev(tt.input, tt.n)
			if result != tt.expected {
				t.Errorf("Abbrev(%q, %d) = %q, want %q", tt.input, tt.n, result, tt.expected)
			}
		})
	}
}
