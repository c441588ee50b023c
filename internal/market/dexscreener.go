// Package market реализует gateway к рыночным данным (DexScreener).
package market

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"sniper/internal/models"
	"sniper/pkg/httpclient"
	"sniper/pkg/ratelimit"
)

// ErrPairNotFound - для mint не найдено ни одной пары на Solana
var ErrPairNotFound = errors.New("pair not found")

// Поисковые запросы для сканирования hot movers
var moverSearchTerms = []string{"pump", "solana", "raydium"}

// DexScreener - клиент публичного API DexScreener
//
// Rate limit API ~300 запросов в минуту, держим 5 req/sec с burst
// на один проход сканирования.
type DexScreener struct {
	baseURL string
	client  *httpclient.Client
	limiter *ratelimit.RateLimiter
	logger  *zap.Logger
}

// NewDexScreener создаёт клиент с базовым URL (без завершающего /)
func NewDexScreener(baseURL string, client *httpclient.Client, logger *zap.Logger) *DexScreener {
	return &DexScreener{
		baseURL: baseURL,
		client:  client,
		limiter: ratelimit.NewRateLimiter(5, 10),
		logger:  logger.Named("dexscreener"),
	}
}

// Ответ DexScreener: и /latest/dex/tokens/, и /latest/dex/search
// возвращают массив пар в одинаковом формате
type pairsResponse struct {
	Pairs []pairInfo `json:"pairs"`
}

type pairInfo struct {
	ChainID   string `json:"chainId"`
	DexID     string `json:"dexId"`
	PriceUSD  string `json:"priceUsd"` // строка в API
	BaseToken struct {
		Address string `json:"address"`
		Symbol  string `json:"symbol"`
		Name    string `json:"name"`
	} `json:"baseToken"`
	Liquidity *struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
	Volume *struct {
		H24 float64 `json:"h24"`
	} `json:"volume"`
	PriceChange *struct {
		M5 *float64 `json:"m5"`
		H1 *float64 `json:"h1"`
	} `json:"priceChange"`
	MarketCap     *float64 `json:"marketCap"`
	FDV           *float64 `json:"fdv"`
	PairCreatedAt int64    `json:"pairCreatedAt"` // unix millis, 0 если нет
}

// PairByMint возвращает метрики лучшей пары токена
//
// "Лучшая" - пара на Solana с наибольшей ликвидностью: у свежих
// токенов бывает несколько пулов, мелкие дают шумовую цену.
func (d *DexScreener) PairByMint(ctx context.Context, mint string) (models.Metrics, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return models.Metrics{}, err
	}

	var resp pairsResponse
	reqURL := fmt.Sprintf("%s/latest/dex/tokens/%s", d.baseURL, url.PathEscape(mint))
	if err := d.client.GetJSON(ctx, reqURL, &resp); err != nil {
		return models.Metrics{}, fmt.Errorf("dexscreener tokens request: %w", err)
	}

	pairs := solanaPairs(resp.Pairs)
	if len(pairs) == 0 {
		return models.Metrics{}, ErrPairNotFound
	}

	best := bestByLiquidity(pairs)
	return toMetrics(best), nil
}

// SearchMovers сканирует рынок по фиксированным запросам и возвращает
// кандидатов, дедуплицированных по mint
//
// Запросы идут последовательно, ошибка одного запроса не валит скан
// целиком - возвращаем что собрали.
func (d *DexScreener) SearchMovers(ctx context.Context) ([]models.DiscoveredToken, error) {
	seen := make(map[string]bool)
	var tokens []models.DiscoveredToken
	var lastErr error

	for _, term := range moverSearchTerms {
		if err := d.limiter.Wait(ctx); err != nil {
			return tokens, err
		}

		var resp pairsResponse
		reqURL := fmt.Sprintf("%s/latest/dex/search?q=%s", d.baseURL, url.QueryEscape(term))
		if err := d.client.GetJSON(ctx, reqURL, &resp); err != nil {
			d.logger.Warn("search request failed",
				zap.String("term", term),
				zap.Error(err))
			lastErr = err
			continue
		}

		for _, pair := range solanaPairs(resp.Pairs) {
			mint := pair.BaseToken.Address
			if mint == "" || seen[mint] {
				continue
			}
			seen[mint] = true

			tokens = append(tokens, models.DiscoveredToken{
				Mint:    mint,
				Symbol:  pair.BaseToken.Symbol,
				Name:    pair.BaseToken.Name,
				Source:  models.SourceScan,
				Metrics: toMetrics(pair),
			})
		}
	}

	if len(tokens) == 0 && lastErr != nil {
		return nil, fmt.Errorf("dexscreener search: %w", lastErr)
	}

	return tokens, nil
}

// solanaPairs отбрасывает пары с других чейнов
func solanaPairs(pairs []pairInfo) []pairInfo {
	var result []pairInfo
	for _, p := range pairs {
		if p.ChainID == "solana" {
			result = append(result, p)
		}
	}
	return result
}

// bestByLiquidity возвращает пару с наибольшей ликвидностью.
// Пары без данных о ликвидности считаются нулевыми.
func bestByLiquidity(pairs []pairInfo) pairInfo {
	sorted := make([]pairInfo, len(pairs))
	copy(sorted, pairs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return liquidityOf(sorted[i]) > liquidityOf(sorted[j])
	})
	return sorted[0]
}

func liquidityOf(p pairInfo) float64 {
	if p.Liquidity == nil {
		return 0
	}
	return p.Liquidity.USD
}

// toMetrics конвертирует пару в метрики, сохраняя "неизвестность":
// отсутствующие в ответе поля остаются nil
func toMetrics(p pairInfo) models.Metrics {
	var m models.Metrics

	if p.PriceUSD != "" {
		if price, err := strconv.ParseFloat(p.PriceUSD, 64); err == nil {
			m.PriceUSD = &price
		}
	}

	// marketCap предпочтительнее FDV, но у новых токенов часто есть только FDV
	if p.MarketCap != nil {
		m.MarketCapUSD = p.MarketCap
	} else if p.FDV != nil {
		m.MarketCapUSD = p.FDV
	}

	if p.Liquidity != nil {
		m.LiquidityUSD = &p.Liquidity.USD
	}
	if p.Volume != nil {
		m.Volume24hUSD = &p.Volume.H24
	}
	if p.PriceChange != nil {
		m.PriceChange1h = p.PriceChange.H1
		m.PriceChange5m = p.PriceChange.M5
	}
	if p.PairCreatedAt > 0 {
		created := time.UnixMilli(p.PairCreatedAt).UTC()
		m.PairCreatedAt = &created
	}

	m.Venue = p.DexID
	return m
}
