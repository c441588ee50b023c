package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"sniper/internal/api"
	"sniper/internal/bot"
	"sniper/internal/chain"
	"sniper/internal/config"
	"sniper/internal/feed"
	"sniper/internal/market"
	"sniper/internal/models"
	"sniper/internal/store"
	"sniper/internal/telegram"
	"sniper/internal/venue"
	"sniper/pkg/httpclient"
	"sniper/pkg/utils"
)

func main() {
	// .env опционален (production конфигурируется окружением)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := utils.InitLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting token sniper",
		zap.Bool("trading_enabled", cfg.Trading.Enabled),
		zap.Bool("auto_trade", cfg.Trading.AutoTrade),
		zap.String("snapshot", cfg.Snapshot.Path))

	httpClient := httpclient.New(httpclient.DefaultConfig())
	defer httpClient.Close()

	// Durable состояние позиций
	snapshot := store.NewSnapshotStore(cfg.Snapshot.Path)
	state, err := snapshot.Load()
	if err != nil {
		logger.Fatal("snapshot load failed", zap.Error(err))
	}

	positions := bot.NewStore(cfg.Trading.MaxPositions, snapshot, logger)
	positions.Restore(state)

	// Коллабораторы
	tg := telegram.New(cfg.Telegram.Token, httpClient, logger)
	channel := &alertChannel{client: tg, chatID: cfg.Telegram.ChatID}
	alerts := bot.NewDispatcher(channel, cfg.Trading.BuySOL, cfg.Discovery.MinLiquidity, logger)

	dexscreener := market.NewDexScreener(cfg.Discovery.DexScreenerURL, httpClient, logger)

	// Исполнитель собирается только при включенной торговле:
	// без ключа кошелька подписывать нечем
	var trader bot.Trader
	if cfg.Trading.Enabled {
		wallet, err := chain.NewWallet(cfg.Wallet.PrivateKey)
		if err != nil {
			logger.Fatal("wallet init failed", zap.Error(err))
		}
		logger.Info("wallet loaded", zap.String("public_key", wallet.PublicKey()))

		rpc := chain.NewClient(cfg.Trading.RPCEndpoint, httpClient, logger)
		provider := venue.NewPumpPortal(cfg.Trading.TradeURL, httpClient, logger)

		trader = bot.NewExecutor(bot.ExecutorConfig{
			BuySOL:            cfg.Trading.BuySOL,
			SlippagePercent:   cfg.Trading.SlippagePercent,
			PriorityFeeSOL:    cfg.Trading.PriorityFeeSOL,
			Routes:            cfg.Trading.VenueRoutes,
			SellRoute:         cfg.Trading.SellRoute,
			SubmitMaxAttempts: cfg.Trading.SubmitMaxAttempts,
			ConfirmTimeout:    cfg.Trading.ConfirmTimeout,
		}, provider, wallet, rpc, dexscreener, positions, alerts, logger)
	}

	gate := bot.NewGate(cfg.Discovery.AlertCooldown)
	filter := bot.NewFilter(
		bot.Thresholds{
			MinMarketCap: cfg.Discovery.FeedMinMarketCap,
			MinHolders:   cfg.Discovery.FeedMinHolders,
			MinLiquidity: cfg.Discovery.MinLiquidity,
		},
		bot.Thresholds{
			MinMarketCap: cfg.Discovery.ScanMinMarketCap,
			MaxMarketCap: cfg.Discovery.ScanMaxMarketCap,
			MinLiquidity: cfg.Discovery.MinLiquidity,
			MinVolume24h: cfg.Discovery.ScanMinVolume24h,
			MinChange1h:  cfg.Discovery.ScanMinChange1h,
		},
	)

	monitor := bot.NewMonitor(bot.MonitorConfig{
		TakeProfitPercent: cfg.Monitor.TakeProfitPercent,
		StopLossPercent:   cfg.Monitor.StopLossPercent,
		RetryFailedSells:  cfg.Monitor.RetryFailedSells,
	}, positions, dexscreener, trader, logger)

	commands := bot.NewCommands(bot.CommandsConfig{
		TradingEnabled:    cfg.Trading.Enabled,
		AutoTrade:         cfg.Trading.AutoTrade,
		BuySOL:            cfg.Trading.BuySOL,
		TakeProfitPercent: cfg.Monitor.TakeProfitPercent,
		StopLossPercent:   cfg.Monitor.StopLossPercent,
		LowLiquidityUSD:   cfg.Discovery.MinLiquidity,
	}, positions, trader, dexscreener, channel, gate, logger)

	tokenFeed := feed.NewPumpPortal(cfg.Discovery.FeedWSURL, feed.DefaultReconnectConfig(), logger)

	engine := bot.NewEngine(bot.EngineConfig{
		AutoTrade:         cfg.Trading.AutoTrade,
		AuthorizedChatID:  cfg.Telegram.ChatID,
		ScanInterval:      cfg.Discovery.ScanInterval,
		MonitorInterval:   cfg.Monitor.Interval,
		PollInterval:      cfg.Telegram.PollInterval,
		HeartbeatInterval: cfg.Discovery.HeartbeatInterval,
		EnrichDelay:       cfg.Discovery.EnrichDelay,
		MaxAlertsPerScan:  cfg.Discovery.MaxAlertsPerScan,
	}, gate, filter, alerts, positions, monitor, trader, dexscreener, dexscreener, commands, tg, tokenFeed.Tokens(), logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go tokenFeed.Run(ctx)
	go engine.Run(ctx)

	// Служебный HTTP сервер
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(engine, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	alerts.Notice(ctx, "🚀 Бот запущен")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	alerts.Notice(context.Background(), "🛑 Бот остановлен")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", zap.Error(err))
	}
}

// alertChannel привязывает Telegram клиент к авторизованному чату
type alertChannel struct {
	client *telegram.Client
	chatID int64
}

func (a *alertChannel) Send(ctx context.Context, text string, keyboard models.Keyboard) error {
	return a.client.Send(ctx, a.chatID, text, keyboard)
}
