package market

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"sniper/pkg/httpclient"
)

func newTestClient(t *testing.T, handler http.Handler) (*DexScreener, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewDexScreener(srv.URL, httpclient.New(httpclient.DefaultConfig()), zap.NewNop()), srv
}

func TestPairByMintPicksMostLiquidSolanaPair(t *testing.T) {
	body := `{"pairs":[
		{"chainId":"ethereum","dexId":"uniswap","priceUsd":"9.99",
		 "baseToken":{"address":"MintX","symbol":"TKN","name":"Token"},
		 "liquidity":{"usd":900000}},
		{"chainId":"solana","dexId":"pumpswap","priceUsd":"0.00001",
		 "baseToken":{"address":"MintX","symbol":"TKN","name":"Token"},
		 "liquidity":{"usd":1500},"volume":{"h24":800}},
		{"chainId":"solana","dexId":"raydium","priceUsd":"0.00002",
		 "baseToken":{"address":"MintX","symbol":"TKN","name":"Token"},
		 "liquidity":{"usd":42000},"volume":{"h24":12000},
		 "priceChange":{"h1":12.5,"m5":-1.2},"marketCap":250000,
		 "pairCreatedAt":1722500000000}
	]}`

	gateway, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/latest/dex/tokens/MintX")
		w.Write([]byte(body))
	}))

	m, err := gateway.PairByMint(context.Background(), "MintX")
	require.NoError(t, err)

	require.NotNil(t, m.PriceUSD)
	assert.Equal(t, 0.00002, *m.PriceUSD)
	require.NotNil(t, m.LiquidityUSD)
	assert.Equal(t, 42000.0, *m.LiquidityUSD)
	require.NotNil(t, m.Volume24hUSD)
	assert.Equal(t, 12000.0, *m.Volume24hUSD)
	require.NotNil(t, m.PriceChange1h)
	assert.Equal(t, 12.5, *m.PriceChange1h)
	require.NotNil(t, m.MarketCapUSD)
	assert.Equal(t, 250000.0, *m.MarketCapUSD)
	require.NotNil(t, m.PairCreatedAt)
	assert.Equal(t, "raydium", m.Venue)
}

func TestPairByMintAbsentFieldsStayNil(t *testing.T) {
	body := `{"pairs":[
		{"chainId":"solana","dexId":"pumpswap","priceUsd":"0.00001",
		 "baseToken":{"address":"MintY","symbol":"NEW","name":"Fresh"}}
	]}`

	gateway, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))

	m, err := gateway.PairByMint(context.Background(), "MintY")
	require.NoError(t, err)

	require.NotNil(t, m.PriceUSD)
	assert.Nil(t, m.MarketCapUSD)
	assert.Nil(t, m.LiquidityUSD)
	assert.Nil(t, m.Volume24hUSD)
	assert.Nil(t, m.PriceChange1h)
	assert.Nil(t, m.PairCreatedAt)
}

func TestPairByMintFallsBackToFDV(t *testing.T) {
	body := `{"pairs":[
		{"chainId":"solana","dexId":"pumpswap","priceUsd":"0.00001",
		 "baseToken":{"address":"MintZ","symbol":"F","name":"F"},"fdv":77000}
	]}`

	gateway, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))

	m, err := gateway.PairByMint(context.Background(), "MintZ")
	require.NoError(t, err)
	require.NotNil(t, m.MarketCapUSD)
	assert.Equal(t, 77000.0, *m.MarketCapUSD)
}

func TestPairByMintNoSolanaPairs(t *testing.T) {
	body := `{"pairs":[
		{"chainId":"bsc","dexId":"pancake","priceUsd":"1.0",
		 "baseToken":{"address":"MintQ","symbol":"Q","name":"Q"}}
	]}`

	gateway, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))

	_, err := gateway.PairByMint(context.Background(), "MintQ")
	assert.ErrorIs(t, err, ErrPairNotFound)
}

func TestSearchMoversDeduplicatesByMint(t *testing.T) {
	// Один и тот же токен приходит по разным поисковым запросам
	body := `{"pairs":[
		{"chainId":"solana","dexId":"raydium","priceUsd":"0.5",
		 "baseToken":{"address":"MintDup","symbol":"DUP","name":"Dup"},
		 "liquidity":{"usd":10000}},
		{"chainId":"solana","dexId":"raydium","priceUsd":"0.1",
		 "baseToken":{"address":"MintOther","symbol":"OTH","name":"Other"},
		 "liquidity":{"usd":5000}}
	]}`

	var calls int
	gateway, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/latest/dex/search", r.URL.Path)
		w.Write([]byte(body))
	}))

	tokens, err := gateway.SearchMovers(context.Background())
	require.NoError(t, err)

	assert.Equal(t, len(moverSearchTerms), calls)
	assert.Len(t, tokens, 2) // дубликаты между запросами схлопнулись

	mints := map[string]bool{}
	for _, tok := range tokens {
		mints[tok.Mint] = true
	}
	assert.True(t, mints["MintDup"])
	assert.True(t, mints["MintOther"])
}

func TestSearchMoversPartialFailureReturnsCollected(t *testing.T) {
	var calls int
	gateway, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"pairs":[
			{"chainId":"solana","dexId":"raydium","priceUsd":"0.1",
			 "baseToken":{"address":"MintOK","symbol":"OK","name":"Ok"}}
		]}`))
	}))

	tokens, err := gateway.SearchMovers(context.Background())
	require.NoError(t, err)
	assert.Len(t, tokens, 1)
	assert.Equal(t, "MintOK", tokens[0].Mint)
}

func TestSearchMoversAllFailuresReturnsError(t *testing.T) {
	gateway, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := gateway.SearchMovers(context.Background())
	assert.Error(t, err)
}
