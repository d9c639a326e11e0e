// cmd/engine/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/holoworlds/tradingmonitor/internal/config"
	"github.com/holoworlds/tradingmonitor/internal/engine"
	"github.com/holoworlds/tradingmonitor/internal/exchange"
	"github.com/holoworlds/tradingmonitor/internal/model"
	"github.com/holoworlds/tradingmonitor/internal/storage/postgres"
	"github.com/holoworlds/tradingmonitor/internal/store"
	"github.com/holoworlds/tradingmonitor/internal/supervisor"
	"github.com/holoworlds/tradingmonitor/internal/webhook"
	"github.com/holoworlds/tradingmonitor/pkg/logger"
)

var (
	version   = "1.0.0"
	buildTime = "неизвестно"
)

func main() {
	var (
		envPath     = flag.String("config", ".env", "Путь к файлу конфигурации")
		showVersion = flag.Bool("version", false, "Показать версию")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("📈 tradingmonitor engine v%s (сборка %s)\n", version, buildTime)
		return
	}

	cfg := config.Load(*envPath)

	logDir := filepath.Dir(cfg.LogFile)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		fmt.Printf("❌ не удалось создать директорию логов %s: %v\n", logDir, err)
		os.Exit(1)
	}
	if err := logger.InitGlobal(cfg.LogFile, cfg.LogLevel, cfg.DebugMode); err != nil {
		fmt.Printf("⚠️ не удалось инициализировать файловый логгер: %v, переход на консоль\n", err)
		if err := logger.InitGlobal("", cfg.LogLevel, cfg.DebugMode); err != nil {
			fmt.Printf("❌ не удалось инициализировать логгер: %v\n", err)
			os.Exit(1)
		}
	}
	defer logger.Close()

	logger.Info("🚀 запуск tradingmonitor engine v%s (окружение %s)", version, cfg.Environment)

	redisClient := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Addr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := redisClient.Ping(pingCtx).Result(); err != nil {
		logger.Error("❌ не удалось подключиться к Redis: %v", err)
		os.Exit(1)
	}
	logger.Info("✅ подключение к Redis установлено (%s)", cfg.Redis.Addr())

	candleStore, err := store.NewCandleStore(redisClient)
	if err != nil {
		logger.Error("❌ не удалось инициализировать candle store: %v", err)
		os.Exit(1)
	}
	logStore, err := store.NewLogStore(redisClient)
	if err != nil {
		logger.Error("❌ не удалось инициализировать log store: %v", err)
		os.Exit(1)
	}
	strategyStore, err := store.NewStrategyStore(redisClient, cfg.Supervisor.SnapshotsFile)
	if err != nil {
		logger.Error("❌ не удалось инициализировать strategy store: %v", err)
		os.Exit(1)
	}

	// persistentRepo stays a genuinely nil interface (not a typed-nil
	// *StrategyRepository boxed into it, which would panic on first Save)
	// whenever Postgres never comes up — Supervisor.Restore then falls
	// straight back to whatever the Redis cache alone remembers.
	var persistentRepo interface {
		Save(model.StrategySnapshot) error
		Delete(id string) error
		LoadAll() []model.StrategySnapshot
	}
	var orderLogRepo *postgres.OrderLogRepository
	if cfg.Database.Enabled {
		db, err := postgres.Connect(cfg.Database)
		if err != nil {
			logger.Warn("⚠️ postgres недоступен, продолжаем на одном Redis-кэше: %v", err)
		} else {
			strategyRepo := postgres.NewStrategyRepository(db)
			persistentRepo = strategyRepo
			orderLogRepo = postgres.NewOrderLogRepository(db)
		}
	}

	adapter := exchange.NewAdapter(cfg.Exchange.RestBaseURL, cfg.Exchange.WSBaseURL,
		cfg.Exchange.RequestTimeout, cfg.Exchange.RateLimitGap)

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	dataEngine := engine.NewDataEngine(rootCtx, adapter, candleStore, cfg.Engine)

	orderSinks := []func(model.Order){
		func(order model.Order) { logStore.Append(order) },
	}
	if orderLogRepo != nil {
		orderSinks = append(orderSinks, func(order model.Order) {
			if err := orderLogRepo.Insert(order.StrategyName, order); err != nil {
				logger.Warn("⚠️ не удалось записать ордер в аудит-лог: %v", err)
			}
		})
	}
	dispatcher := webhook.NewDispatcher(cfg.Webhook.URL, orderSinks...)

	sup := supervisor.New(dataEngine, dispatcher, strategyStore, persistentRepo, cfg.Supervisor)
	sup.Restore()
	sup.Start()

	logger.Info("✅ движок запущен, супервизор поднял %d стратегий", len(sup.SnapshotAll()))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("📶 получен сигнал %v, останавливаемся", sig)

	sup.Stop()
	dataEngine.Shutdown()
	rootCancel()

	logger.Info("✅ tradingmonitor engine остановлен")
}
