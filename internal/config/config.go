package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"sniper/pkg/crypto"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Server    ServerConfig
	Telegram  TelegramConfig
	Wallet    WalletConfig
	Trading   TradingConfig
	Discovery DiscoveryConfig
	Monitor   MonitorConfig
	Snapshot  SnapshotConfig
	Logging   LoggingConfig
}

// ServerConfig - настройки HTTP сервера (healthz, status, metrics)
type ServerConfig struct {
	Port int
	Host string
}

// TelegramConfig - настройки канала алертов и команд
type TelegramConfig struct {
	Token        string
	ChatID       int64         // единственный авторизованный чат
	PollInterval time.Duration // интервал long-poll обновлений
}

// WalletConfig - ключ кошелька для подписи транзакций
//
// Ключ задаётся одним из двух способов:
//   - WALLET_PRIVATE_KEY: base58 секретный ключ открытым текстом
//   - WALLET_KEY_ENCRYPTED + ENCRYPTION_KEY: AES-256-GCM шифротекст
type WalletConfig struct {
	PrivateKey string // base58, уже расшифрованный
}

// TradingConfig - параметры исполнения сделок
type TradingConfig struct {
	Enabled   bool
	AutoTrade bool // автоматическая покупка прошедших фильтр токенов

	RPCEndpoint string
	TradeURL    string // pumpportal trade-local endpoint

	BuySOL          float64
	SlippagePercent float64
	PriorityFeeSOL  float64

	VenueRoutes []string // порядок fallback для покупки
	SellRoute   string

	SubmitMaxAttempts int
	ConfirmTimeout    time.Duration

	MaxPositions int
}

// DiscoveryConfig - источники обнаружения и пороги фильтра
type DiscoveryConfig struct {
	FeedWSURL      string // pumpportal WebSocket
	DexScreenerURL string

	// Пороги для токенов из feed (свежие, метрик почти нет)
	FeedMinMarketCap float64
	FeedMinHolders   int

	// Пороги для токенов из периодического скана
	ScanMinVolume24h float64
	ScanMinChange1h  float64
	ScanMinMarketCap float64
	ScanMaxMarketCap float64

	MinLiquidity float64

	AlertCooldown    time.Duration
	ScanInterval     time.Duration
	MaxAlertsPerScan int
	EnrichDelay      time.Duration // пауза перед запросом метрик нового токена

	HeartbeatInterval time.Duration
}

// MonitorConfig - контроль открытых позиций
type MonitorConfig struct {
	Interval          time.Duration
	TakeProfitPercent float64
	StopLossPercent   float64 // trailing stop от максимума
	RetryFailedSells  bool    // повторять авто-продажу после неудачи
}

// SnapshotConfig - durable снапшот позиций
type SnapshotConfig struct {
	Path string
}

// LoggingConfig - настройки логирования
type LoggingConfig struct {
	Level  string
	Format string
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: getEnvAsInt("SERVER_PORT", 8080),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Telegram: TelegramConfig{
			Token:        getEnv("TELEGRAM_TOKEN", ""),
			ChatID:       getEnvAsInt64("TELEGRAM_CHAT_ID", 0),
			PollInterval: getEnvAsDuration("COMMAND_POLL_INTERVAL", 3*time.Second),
		},
		Trading: TradingConfig{
			Enabled:   getEnvAsBool("TRADING_ENABLED", false),
			AutoTrade: getEnvAsBool("AUTO_TRADE", false),

			RPCEndpoint: getEnv("RPC_ENDPOINT", "https://api.mainnet-beta.solana.com"),
			TradeURL:    getEnv("PUMPPORTAL_TRADE_URL", "https://pumpportal.fun/api/trade-local"),

			BuySOL:          getEnvAsFloat("BUY_AMOUNT_SOL", 0.01),
			SlippagePercent: getEnvAsFloat("SLIPPAGE_PERCENT", 15),
			PriorityFeeSOL:  getEnvAsFloat("PRIORITY_FEE_SOL", 0.0001),

			VenueRoutes: getEnvAsList("VENUE_ROUTES", []string{"auto", "pump", "raydium"}),
			SellRoute:   getEnv("SELL_ROUTE", "auto"),

			SubmitMaxAttempts: getEnvAsInt("SUBMIT_MAX_ATTEMPTS", 3),
			ConfirmTimeout:    getEnvAsDuration("CONFIRM_TIMEOUT", 60*time.Second),

			MaxPositions: getEnvAsInt("MAX_POSITIONS", 3),
		},
		Discovery: DiscoveryConfig{
			FeedWSURL:      getEnv("PUMPPORTAL_WS_URL", "wss://pumpportal.fun/api/data"),
			DexScreenerURL: getEnv("DEXSCREENER_URL", "https://api.dexscreener.com"),

			FeedMinMarketCap: getEnvAsFloat("FEED_MIN_MARKET_CAP", 5000),
			FeedMinHolders:   getEnvAsInt("FEED_MIN_HOLDERS", 10),

			ScanMinVolume24h: getEnvAsFloat("SCAN_MIN_VOLUME_24H", 2000),
			ScanMinChange1h:  getEnvAsFloat("SCAN_MIN_CHANGE_1H", 8),
			ScanMinMarketCap: getEnvAsFloat("SCAN_MIN_MARKET_CAP", 5000),
			ScanMaxMarketCap: getEnvAsFloat("SCAN_MAX_MARKET_CAP", 3000000),

			MinLiquidity: getEnvAsFloat("MIN_LIQUIDITY", 3000),

			AlertCooldown:    getEnvAsDuration("ALERT_COOLDOWN", 30*time.Minute),
			ScanInterval:     getEnvAsDuration("SCAN_INTERVAL", 45*time.Second),
			MaxAlertsPerScan: getEnvAsInt("MAX_ALERTS_PER_SCAN", 3),
			EnrichDelay:      getEnvAsDuration("DISCOVERY_ENRICH_DELAY", 3*time.Second),

			HeartbeatInterval: getEnvAsDuration("HEARTBEAT_INTERVAL", 5*time.Minute),
		},
		Monitor: MonitorConfig{
			Interval:          getEnvAsDuration("MONITOR_INTERVAL", 30*time.Second),
			TakeProfitPercent: getEnvAsFloat("TAKE_PROFIT_PERCENT", 50),
			StopLossPercent:   getEnvAsFloat("STOP_LOSS_PERCENT", 20),
			RetryFailedSells:  getEnvAsBool("MONITOR_RETRY_FAILED_SELLS", true),
		},
		Snapshot: SnapshotConfig{
			Path: getEnv("SNAPSHOT_PATH", "positions.json"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	// Ключ кошелька: расшифровка если задан шифротекст
	if err := cfg.loadWalletKey(); err != nil {
		return nil, err
	}

	// Валидация критичных параметров
	if err := cfg.validateSecurity(); err != nil {
		return nil, err
	}

	// Валидация числовых диапазонов
	if err := cfg.validateRanges(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadWalletKey читает ключ кошелька из окружения
func (c *Config) loadWalletKey() error {
	plain := getEnv("WALLET_PRIVATE_KEY", "")
	encrypted := getEnv("WALLET_KEY_ENCRYPTED", "")

	if plain != "" && encrypted != "" {
		return fmt.Errorf("set either WALLET_PRIVATE_KEY or WALLET_KEY_ENCRYPTED, not both")
	}

	if encrypted != "" {
		encKey := getEnv("ENCRYPTION_KEY", "")
		if err := crypto.ValidateKey([]byte(encKey)); err != nil {
			return fmt.Errorf("ENCRYPTION_KEY is required to decrypt WALLET_KEY_ENCRYPTED: %w", err)
		}
		decrypted, err := crypto.DecryptWithKeyString(encrypted, encKey)
		if err != nil {
			return fmt.Errorf("decrypt WALLET_KEY_ENCRYPTED: %w", err)
		}
		c.Wallet.PrivateKey = decrypted
		return nil
	}

	c.Wallet.PrivateKey = plain
	return nil
}

// validateSecurity проверяет параметры безопасности
func (c *Config) validateSecurity() error {
	// Telegram токен обязателен: без него нет ни алертов, ни команд
	if c.Telegram.Token == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is required")
	}

	if c.Telegram.ChatID == 0 {
		return fmt.Errorf("TELEGRAM_CHAT_ID is required (authorized chat)")
	}

	// Ключ кошелька обязателен только при включенной торговле
	if c.Trading.Enabled && c.Wallet.PrivateKey == "" {
		return fmt.Errorf("wallet key is required when TRADING_ENABLED=true (set WALLET_PRIVATE_KEY or WALLET_KEY_ENCRYPTED)")
	}

	return nil
}

// validateRanges проверяет числовые диапазоны параметров
func (c *Config) validateRanges() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Trading.BuySOL <= 0 {
		return fmt.Errorf("BUY_AMOUNT_SOL must be positive, got %v", c.Trading.BuySOL)
	}

	if c.Trading.SlippagePercent <= 0 || c.Trading.SlippagePercent > 100 {
		return fmt.Errorf("SLIPPAGE_PERCENT must be in (0, 100], got %v", c.Trading.SlippagePercent)
	}

	if c.Trading.SubmitMaxAttempts < 1 || c.Trading.SubmitMaxAttempts > 10 {
		return fmt.Errorf("SUBMIT_MAX_ATTEMPTS must be between 1 and 10, got %d", c.Trading.SubmitMaxAttempts)
	}

	if c.Trading.ConfirmTimeout <= 0 {
		return fmt.Errorf("CONFIRM_TIMEOUT must be positive, got %v", c.Trading.ConfirmTimeout)
	}

	if c.Trading.MaxPositions < 1 {
		return fmt.Errorf("MAX_POSITIONS must be at least 1, got %d", c.Trading.MaxPositions)
	}

	if len(c.Trading.VenueRoutes) == 0 {
		return fmt.Errorf("VENUE_ROUTES must list at least one route")
	}

	if c.Monitor.Interval <= 0 {
		return fmt.Errorf("MONITOR_INTERVAL must be positive, got %v", c.Monitor.Interval)
	}

	if c.Monitor.TakeProfitPercent <= 0 {
		return fmt.Errorf("TAKE_PROFIT_PERCENT must be positive, got %v", c.Monitor.TakeProfitPercent)
	}

	if c.Monitor.StopLossPercent <= 0 || c.Monitor.StopLossPercent >= 100 {
		return fmt.Errorf("STOP_LOSS_PERCENT must be in (0, 100), got %v", c.Monitor.StopLossPercent)
	}

	if c.Discovery.AlertCooldown <= 0 {
		return fmt.Errorf("ALERT_COOLDOWN must be positive, got %v", c.Discovery.AlertCooldown)
	}

	if c.Discovery.ScanInterval <= 0 {
		return fmt.Errorf("SCAN_INTERVAL must be positive, got %v", c.Discovery.ScanInterval)
	}

	if c.Discovery.ScanMinMarketCap > c.Discovery.ScanMaxMarketCap {
		return fmt.Errorf("SCAN_MIN_MARKET_CAP (%v) exceeds SCAN_MAX_MARKET_CAP (%v)",
			c.Discovery.ScanMinMarketCap, c.Discovery.ScanMaxMarketCap)
	}

	if c.Snapshot.Path == "" {
		return fmt.Errorf("SNAPSHOT_PATH must not be empty")
	}

	return nil
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
