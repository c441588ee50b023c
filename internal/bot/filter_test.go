package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"sniper/internal/models"
)

func testFilter() *Filter {
	return NewFilter(
		Thresholds{MinMarketCap: 5000, MinHolders: 10, MinLiquidity: 3000},
		Thresholds{
			MinMarketCap: 5000,
			MaxMarketCap: 3000000,
			MinLiquidity: 3000,
			MinVolume24h: 2000,
			MinChange1h:  8,
		},
	)
}

func scanToken(m models.Metrics) models.DiscoveredToken {
	return models.DiscoveredToken{Mint: "MintX", Source: models.SourceScan, Metrics: m}
}

func TestFilterScanThresholds(t *testing.T) {
	f := testFilter()

	tests := []struct {
		name       string
		metrics    models.Metrics
		accepted   bool
		wantReason string
	}{
		{
			name: "all metrics pass",
			metrics: models.Metrics{
				MarketCapUSD:  models.Float(100000),
				LiquidityUSD:  models.Float(10000),
				Volume24hUSD:  models.Float(5000),
				PriceChange1h: models.Float(12),
			},
			accepted: true,
		},
		{
			name: "market cap below min",
			metrics: models.Metrics{
				MarketCapUSD:  models.Float(1000),
				LiquidityUSD:  models.Float(10000),
				Volume24hUSD:  models.Float(5000),
				PriceChange1h: models.Float(12),
			},
			wantReason: "market_cap_low",
		},
		{
			name: "market cap above max",
			metrics: models.Metrics{
				MarketCapUSD:  models.Float(5000000),
				LiquidityUSD:  models.Float(10000),
				Volume24hUSD:  models.Float(5000),
				PriceChange1h: models.Float(12),
			},
			wantReason: "market_cap_high",
		},
		{
			name: "liquidity below min",
			metrics: models.Metrics{
				MarketCapUSD:  models.Float(100000),
				LiquidityUSD:  models.Float(500),
				Volume24hUSD:  models.Float(5000),
				PriceChange1h: models.Float(12),
			},
			wantReason: "liquidity_low",
		},
		{
			name: "volume below min",
			metrics: models.Metrics{
				MarketCapUSD:  models.Float(100000),
				LiquidityUSD:  models.Float(10000),
				Volume24hUSD:  models.Float(100),
				PriceChange1h: models.Float(12),
			},
			wantReason: "volume_low",
		},
		{
			name: "change 1h below min",
			metrics: models.Metrics{
				MarketCapUSD:  models.Float(100000),
				LiquidityUSD:  models.Float(10000),
				Volume24hUSD:  models.Float(5000),
				PriceChange1h: models.Float(2),
			},
			wantReason: "change_1h_low",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := f.Evaluate(scanToken(tt.metrics))
			assert.Equal(t, tt.accepted, v.Accepted)
			assert.Equal(t, tt.wantReason, v.Reason)
		})
	}
}

func TestFilterUnknownNeverFailsMinimum(t *testing.T) {
	f := testFilter()

	tests := []struct {
		name    string
		metrics models.Metrics
	}{
		{"all absent", models.Metrics{}},
		{"explicit zeros treated as unknown", models.Metrics{
			MarketCapUSD:  models.Float(0),
			LiquidityUSD:  models.Float(0),
			Volume24hUSD:  models.Float(0),
			PriceChange1h: models.Float(0),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := f.Evaluate(scanToken(tt.metrics))
			assert.True(t, v.Accepted, "absence is not evidence of failure")
		})
	}
}

func TestFilterMaximumFiresOnlyWhenKnown(t *testing.T) {
	f := testFilter()

	// Неизвестный market cap не проваливает максимум
	v := f.Evaluate(scanToken(models.Metrics{}))
	assert.True(t, v.Accepted)

	// Известный выше максимума - проваливает
	v = f.Evaluate(scanToken(models.Metrics{MarketCapUSD: models.Float(9000000)}))
	assert.False(t, v.Accepted)
	assert.Equal(t, "market_cap_high", v.Reason)
}

func TestFilterFeedUsesOwnThresholds(t *testing.T) {
	f := testFilter()

	// Для feed нет требований к объёму и росту за час
	token := models.DiscoveredToken{
		Mint:   "MintF",
		Source: models.SourceFeed,
		Metrics: models.Metrics{
			MarketCapUSD: models.Float(10000),
			Holders:      models.Int(25),
		},
	}
	assert.True(t, f.Evaluate(token).Accepted)

	// Но холдеров мало - отказ
	token.Metrics.Holders = models.Int(3)
	v := f.Evaluate(token)
	assert.False(t, v.Accepted)
	assert.Equal(t, "holders_low", v.Reason)
}

func TestFilterIsPure(t *testing.T) {
	f := testFilter()
	token := scanToken(models.Metrics{MarketCapUSD: models.Float(100000)})

	first := f.Evaluate(token)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, f.Evaluate(token))
	}
}
