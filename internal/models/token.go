package models

import "time"

// Source - источник обнаружения токена
type Source string

const (
	SourceFeed Source = "FEED" // push-поток новых токенов (pump.fun)
	SourceScan Source = "SCAN" // периодическое сканирование рынка (hot movers)
)

// Metrics - снимок рыночных метрик токена
//
// Все поля nullable: nil означает "значение неизвестно".
// DexScreener возвращает разреженные объекты, и отсутствие метрики
// не является свидетельством её нулевого значения. Фильтр качества
// обязан различать "нет данных" и "ноль" (см. bot.Thresholds).
type Metrics struct {
	PriceUSD      *float64   `json:"price_usd,omitempty"`
	MarketCapUSD  *float64   `json:"market_cap_usd,omitempty"`
	LiquidityUSD  *float64   `json:"liquidity_usd,omitempty"`
	Volume24hUSD  *float64   `json:"volume_24h_usd,omitempty"`
	PriceChange1h *float64   `json:"price_change_1h,omitempty"` // проценты
	PriceChange5m *float64   `json:"price_change_5m,omitempty"` // проценты
	Holders       *int       `json:"holders,omitempty"`
	PairCreatedAt *time.Time `json:"pair_created_at,omitempty"`
	Venue         string     `json:"venue,omitempty"` // DEX с наибольшей ликвидностью
}

// Merge дополняет метрики значениями из other, не затирая известные поля.
// Используется при обогащении события feed данными из market gateway.
func (m Metrics) Merge(other Metrics) Metrics {
	if m.PriceUSD == nil {
		m.PriceUSD = other.PriceUSD
	}
	if m.MarketCapUSD == nil {
		m.MarketCapUSD = other.MarketCapUSD
	}
	if m.LiquidityUSD == nil {
		m.LiquidityUSD = other.LiquidityUSD
	}
	if m.Volume24hUSD == nil {
		m.Volume24hUSD = other.Volume24hUSD
	}
	if m.PriceChange1h == nil {
		m.PriceChange1h = other.PriceChange1h
	}
	if m.PriceChange5m == nil {
		m.PriceChange5m = other.PriceChange5m
	}
	if m.Holders == nil {
		m.Holders = other.Holders
	}
	if m.PairCreatedAt == nil {
		m.PairCreatedAt = other.PairCreatedAt
	}
	if m.Venue == "" {
		m.Venue = other.Venue
	}
	return m
}

// DiscoveredToken - только что обнаруженный токен.
// Эфемерный: живёт от обнаружения до решения об алерте, не персистится.
type DiscoveredToken struct {
	Mint    string  // адрес токена (base58)
	Symbol  string
	Name    string
	Source  Source
	Metrics Metrics
}

// Float возвращает указатель на значение (для построения Metrics)
func Float(v float64) *float64 { return &v }

// Int возвращает указатель на значение (для построения Metrics)
func Int(v int) *int { return &v }
