package chain

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"sniper/pkg/httpclient"
	"sniper/pkg/retry"
)

// Ошибки RPC клиента
var (
	ErrConfirmTimeout = errors.New("transaction confirmation timeout")
	ErrTxFailed       = errors.New("transaction failed on chain")
)

// интервал опроса статуса транзакции
const confirmPollInterval = 2 * time.Second

// Client - JSON-RPC клиент Solana узла
//
// Покрывает ровно две операции движка: отправка подписанной
// транзакции и ожидание подтверждения.
type Client struct {
	endpoint string
	http     *httpclient.Client
	logger   *zap.Logger
}

// NewClient создаёт клиент для указанного RPC endpoint
func NewClient(endpoint string, http *httpclient.Client, logger *zap.Logger) *Client {
	return &Client{
		endpoint: endpoint,
		http:     http,
		logger:   logger.Named("rpc"),
	}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Temporary классифицирует RPC ошибку для retry логики.
// Перегрузка узла и устаревший blockhash - временные, ошибки
// симуляции (нехватка средств, slippage) - нет.
func (e *rpcError) Temporary() bool {
	msg := strings.ToLower(e.Message)
	switch {
	case strings.Contains(msg, "blockhash not found"):
		return true
	case strings.Contains(msg, "node is behind"):
		return true
	case strings.Contains(msg, "too many requests"):
		return true
	case e.Code == -32005: // node is unhealthy
		return true
	default:
		return false
	}
}

type submitResponse struct {
	Result string    `json:"result"`
	Error  *rpcError `json:"error"`
}

// Submit отправляет подписанную транзакцию в сеть
//
// Возвращает подпись транзакции (идентификатор для Confirm).
// Сетевые ошибки оборачиваются в Temporary для retry на уровне
// исполнителя, ошибки симуляции остаются постоянными.
func (c *Client) Submit(ctx context.Context, signedTx []byte) (string, error) {
	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "sendTransaction",
		Params: []interface{}{
			base64.StdEncoding.EncodeToString(signedTx),
			map[string]interface{}{
				"encoding":            "base64",
				"skipPreflight":       false,
				"preflightCommitment": "confirmed",
			},
		},
	}

	var resp submitResponse
	if err := c.http.PostJSON(ctx, c.endpoint, req, &resp); err != nil {
		// Транспортная ошибка: узел недоступен, retry уместен
		return "", retry.Temporary(fmt.Errorf("sendTransaction: %w", err))
	}
	if resp.Error != nil {
		return "", fmt.Errorf("sendTransaction: %w", resp.Error)
	}
	if resp.Result == "" {
		return "", retry.Temporary(errors.New("sendTransaction: empty signature in response"))
	}

	return resp.Result, nil
}

type statusResponse struct {
	Result struct {
		Value []*signatureStatus `json:"value"`
	} `json:"result"`
	Error *rpcError `json:"error"`
}

type signatureStatus struct {
	ConfirmationStatus string      `json:"confirmationStatus"`
	Err                interface{} `json:"err"`
}

// Confirm ждёт подтверждения транзакции опросом статуса
//
// Возвращает nil когда статус достиг confirmed или finalized.
// Таймаут задаётся контекстом вызывающего; по его истечении
// возвращается ErrConfirmTimeout.
func (c *Client) Confirm(ctx context.Context, signature string) error {
	ticker := time.NewTicker(confirmPollInterval)
	defer ticker.Stop()

	for {
		status, err := c.signatureStatus(ctx, signature)
		if err != nil {
			// Транзиентная ошибка опроса не отменяет ожидание
			c.logger.Debug("status poll failed", zap.String("signature", signature), zap.Error(err))
		} else if status != nil {
			if status.Err != nil {
				return fmt.Errorf("%w: %v", ErrTxFailed, status.Err)
			}
			if status.ConfirmationStatus == "confirmed" || status.ConfirmationStatus == "finalized" {
				return nil
			}
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return fmt.Errorf("%w: %s", ErrConfirmTimeout, signature)
		}
	}
}

func (c *Client) signatureStatus(ctx context.Context, signature string) (*signatureStatus, error) {
	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "getSignatureStatuses",
		Params: []interface{}{
			[]string{signature},
			map[string]interface{}{"searchTransactionHistory": false},
		},
	}

	var resp statusResponse
	if err := c.http.PostJSON(ctx, c.endpoint, req, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	if len(resp.Result.Value) == 0 {
		return nil, nil
	}
	return resp.Result.Value[0], nil
}
