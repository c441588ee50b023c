package bot

import (
	"sniper/internal/models"
)

// Thresholds - числовые пороги фильтра качества
//
// Нулевой порог отключает соответствующую проверку.
type Thresholds struct {
	MinMarketCap float64
	MaxMarketCap float64
	MinLiquidity float64
	MinVolume24h float64
	MinChange1h  float64
	MinHolders   int
}

// Filter - stateless предикат качества токена
//
// Семантика неизвестных значений: nil метрика (и ноль - DexScreener
// не различает "нет данных" и "ноль") проходит минимальные проверки,
// потому что отсутствие данных не доказывает провал. Максимальные
// проверки наоборот срабатывают только по явно известному значению.
//
// Feed и scan используют разные наборы порогов: у свежего токена из
// feed нет истории объёма, требовать её бессмысленно.
type Filter struct {
	feed Thresholds
	scan Thresholds
}

// NewFilter создаёт фильтр с порогами для каждого источника
func NewFilter(feed, scan Thresholds) *Filter {
	return &Filter{feed: feed, scan: scan}
}

// Verdict - решение фильтра с причиной отказа для метрик и логов
type Verdict struct {
	Accepted bool
	Reason   string // пустая при Accepted
}

// Evaluate принимает решение по токену. Чистая функция: одинаковые
// метрики всегда дают одинаковый вердикт.
func (f *Filter) Evaluate(token models.DiscoveredToken) Verdict {
	th := f.scan
	if token.Source == models.SourceFeed {
		th = f.feed
	}

	m := token.Metrics

	if failsMin(m.MarketCapUSD, th.MinMarketCap) {
		return Verdict{Reason: "market_cap_low"}
	}
	if failsMax(m.MarketCapUSD, th.MaxMarketCap) {
		return Verdict{Reason: "market_cap_high"}
	}
	if failsMin(m.LiquidityUSD, th.MinLiquidity) {
		return Verdict{Reason: "liquidity_low"}
	}
	if failsMin(m.Volume24hUSD, th.MinVolume24h) {
		return Verdict{Reason: "volume_low"}
	}
	if failsMin(m.PriceChange1h, th.MinChange1h) {
		return Verdict{Reason: "change_1h_low"}
	}
	if failsMinInt(m.Holders, th.MinHolders) {
		return Verdict{Reason: "holders_low"}
	}

	return Verdict{Accepted: true}
}

// failsMin: известное значение ниже порога. nil и 0 - "неизвестно",
// минимальную проверку не проваливают.
func failsMin(v *float64, min float64) bool {
	if min <= 0 || v == nil || *v == 0 {
		return false
	}
	return *v < min
}

// failsMax: только явно известное значение выше порога
func failsMax(v *float64, max float64) bool {
	if max <= 0 || v == nil || *v == 0 {
		return false
	}
	return *v > max
}

func failsMinInt(v *int, min int) bool {
	if min <= 0 || v == nil || *v == 0 {
		return false
	}
	return *v < min
}
