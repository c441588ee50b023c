package venue

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"sniper/pkg/httpclient"
)

// PumpPortal - построитель транзакций через pumpportal trade-local API
//
// API принимает параметры сделки и возвращает сериализованную
// неподписанную транзакцию. Параметр pool выбирает маршрут
// исполнения: auto / pump / raydium / pump-amm и т.д.
type PumpPortal struct {
	tradeURL string
	http     *httpclient.Client
	logger   *zap.Logger
}

// NewPumpPortal создаёт провайдер для указанного trade-local URL
func NewPumpPortal(tradeURL string, http *httpclient.Client, logger *zap.Logger) *PumpPortal {
	return &PumpPortal{
		tradeURL: tradeURL,
		http:     http,
		logger:   logger.Named("pumpportal"),
	}
}

type tradeLocalRequest struct {
	PublicKey        string      `json:"publicKey"`
	Action           string      `json:"action"`
	Mint             string      `json:"mint"`
	Amount           interface{} `json:"amount"`
	DenominatedInSol string      `json:"denominatedInSol"` // API ждёт строку "true"/"false"
	Slippage         float64     `json:"slippage"`
	PriorityFee      float64     `json:"priorityFee"`
	Pool             string      `json:"pool"`
}

// BuildSwap запрашивает транзакцию у trade-local API
func (p *PumpPortal) BuildSwap(ctx context.Context, req SwapRequest) ([]byte, error) {
	apiReq := tradeLocalRequest{
		PublicKey:        req.PublicKey,
		Action:           string(req.Side),
		Mint:             req.Mint,
		Amount:           req.Amount,
		DenominatedInSol: boolString(req.DenominatedInSOL),
		Slippage:         req.SlippagePercent,
		PriorityFee:      req.PriorityFeeSOL,
		Pool:             req.Route,
	}

	tx, err := p.http.PostRaw(ctx, p.tradeURL, apiReq)
	if err != nil {
		return nil, &Error{Route: req.Route, Err: err}
	}
	if len(tx) == 0 {
		return nil, &Error{Route: req.Route, Err: fmt.Errorf("empty transaction in response")}
	}

	p.logger.Debug("swap transaction built",
		zap.String("route", req.Route),
		zap.String("mint", req.Mint),
		zap.String("side", string(req.Side)),
		zap.Int("tx_bytes", len(tx)))

	return tx, nil
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
