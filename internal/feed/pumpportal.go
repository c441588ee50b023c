// Package feed - push-поток новых токенов через pumpportal WebSocket.
package feed

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"sniper/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Приблизительный курс SOL/USD для оценки market cap из событий feed.
// Событие несёт marketCapSol; точные метрики придут позже из
// market gateway, здесь нужна только грубая оценка для фильтра.
const solPriceEstimateUSD = 140

// ReconnectConfig - параметры переподключения WebSocket
type ReconnectConfig struct {
	InitialDelay time.Duration // стартовая задержка (default: 2s)
	MaxDelay     time.Duration // потолок задержки (default: 16s)
	Multiplier   float64       // рост задержки (default: 2.0)
}

// DefaultReconnectConfig возвращает конфигурацию по умолчанию:
// задержки 2s, 4s, 8s, 16s, 16s...
func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		InitialDelay: 2 * time.Second,
		MaxDelay:     16 * time.Second,
		Multiplier:   2.0,
	}
}

// PumpPortal - подписка на события создания новых токенов
//
// Жизненный цикл: Run подключается, подписывается и декодирует
// события в канал до отмены контекста. Разрыв соединения ведёт к
// переподключению с экспоненциальным backoff, события в этот период
// теряются (восстановление истории не предусмотрено API).
type PumpPortal struct {
	url       string
	reconnect ReconnectConfig
	logger    *zap.Logger

	tokens chan models.DiscoveredToken
}

// NewPumpPortal создаёт клиент feed
//
// Ёмкость канала 256: если потребитель не успевает, новые события
// отбрасываются с warning, блокировать чтение WS нельзя.
func NewPumpPortal(url string, reconnect ReconnectConfig, logger *zap.Logger) *PumpPortal {
	return &PumpPortal{
		url:       url,
		reconnect: reconnect,
		logger:    logger.Named("feed"),
		tokens:    make(chan models.DiscoveredToken, 256),
	}
}

// Tokens возвращает канал обнаруженных токенов
func (p *PumpPortal) Tokens() <-chan models.DiscoveredToken {
	return p.tokens
}

// Run читает поток до отмены контекста, переподключаясь при разрывах
func (p *PumpPortal) Run(ctx context.Context) {
	delay := p.reconnect.InitialDelay

	for {
		err := p.readLoop(ctx)
		if ctx.Err() != nil {
			p.logger.Info("feed stopped")
			return
		}

		p.logger.Warn("connection lost, reconnecting",
			zap.Duration("delay", delay),
			zap.Error(err))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}

		delay = time.Duration(float64(delay) * p.reconnect.Multiplier)
		if delay > p.reconnect.MaxDelay {
			delay = p.reconnect.MaxDelay
		}
	}
}

// readLoop - одно подключение: dial, подписка, чтение до ошибки
func (p *PumpPortal) readLoop(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, p.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Закрываем соединение при отмене контекста чтобы разблокировать ReadMessage
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	if err := conn.WriteJSON(map[string]string{"method": "subscribeNewToken"}); err != nil {
		return err
	}

	p.logger.Info("subscribed to new token stream", zap.String("url", p.url))

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		token, ok := p.decode(data)
		if !ok {
			continue
		}

		select {
		case p.tokens <- token:
		default:
			p.logger.Warn("token channel full, dropping event", zap.String("mint", token.Mint))
		}
	}
}

// Событие создания токена. Формат не версионирован, имена полей
// встречаются в нескольких вариантах.
type newTokenEvent struct {
	Mint         string  `json:"mint"`
	TokenMint    string  `json:"tokenMint"`
	Address      string  `json:"address"`
	Symbol       string  `json:"symbol"`
	Ticker       string  `json:"ticker"`
	Name         string  `json:"name"`
	MarketCapSol float64 `json:"marketCapSol"`
	HolderCount  *int    `json:"holder_count"`
}

// decode превращает событие в DiscoveredToken.
// События без mint (служебные сообщения, ack подписки) пропускаются.
func (p *PumpPortal) decode(data []byte) (models.DiscoveredToken, bool) {
	var event newTokenEvent
	if err := json.Unmarshal(data, &event); err != nil {
		p.logger.Debug("undecodable event", zap.Error(err))
		return models.DiscoveredToken{}, false
	}

	mint := event.Mint
	if mint == "" {
		mint = event.TokenMint
	}
	if mint == "" {
		mint = event.Address
	}
	if mint == "" {
		return models.DiscoveredToken{}, false
	}

	symbol := event.Symbol
	if symbol == "" {
		symbol = event.Ticker
	}

	var metrics models.Metrics
	if event.MarketCapSol > 0 {
		metrics.MarketCapUSD = models.Float(event.MarketCapSol * solPriceEstimateUSD)
	}
	metrics.Holders = event.HolderCount

	return models.DiscoveredToken{
		Mint:    mint,
		Symbol:  symbol,
		Name:    event.Name,
		Source:  models.SourceFeed,
		Metrics: metrics,
	}, true
}
