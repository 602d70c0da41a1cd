package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rl1809/campus-market/internal/adapter/handler"
	"github.com/rl1809/campus-market/internal/adapter/notify"
	"github.com/rl1809/campus-market/internal/adapter/storage"
	"github.com/rl1809/campus-market/internal/config"
	"github.com/rl1809/campus-market/internal/core/service"
	"github.com/rl1809/campus-market/internal/port"
	"github.com/rl1809/campus-market/pkg/logging"
	"github.com/rl1809/campus-market/pkg/metrics"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.Environment)
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// MySQL
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		logger.Fatal("failed to open mysql", zap.Error(err))
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		logger.Fatal("failed to ping mysql", zap.Error(err))
	}
	logger.Info("connected to mysql")

	// Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect redis", zap.Error(err))
	}
	logger.Info("connected to redis")

	// Adapters
	mysqlAdapter := storage.NewMySQLAdapter(db)
	redisAdapter := storage.NewRedisAdapter(rdb)

	// Notification pipeline
	var notifier port.Notifier
	var kafkaNotifier *notify.KafkaNotifier
	if cfg.UseKafka {
		kafkaNotifier = notify.NewKafkaNotifier(cfg.KafkaBrokers, cfg.KafkaTopic)
		notifier = kafkaNotifier
		logger.Info("kafka notifications enabled",
			zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	} else {
		notifier = &notify.LogNotifier{Logger: logger}
	}

	dispatcher := notify.NewDispatcher(notifier, logger, cfg.NotifyQueueSize)
	dispatcher.Start(cfg.NotifyWorkers)
	logger.Info("started notification workers", zap.Int("workers", cfg.NotifyWorkers))

	// Services
	listingService := service.NewListingService(mysqlAdapter, logger)
	cartService := service.NewCartService(mysqlAdapter, redisAdapter, logger)
	checkoutService := service.NewCheckoutService(
		mysqlAdapter, redisAdapter, redisAdapter, dispatcher, logger,
		cfg.CheckoutAttempts, time.Duration(cfg.DeliveryWindowDays)*24*time.Hour,
	)
	statusService := service.NewStatusService(mysqlAdapter, dispatcher, logger)
	queryService := service.NewQueryService(mysqlAdapter)

	// HTTP server
	serverMetrics := metrics.NewServerMetrics("checkout")
	httpHandler := handler.NewHTTPHandler(
		listingService, cartService, checkoutService, statusService, queryService, serverMetrics)

	mux := http.NewServeMux()
	httpHandler.Register(mux)
	mux.Handle("GET /metrics", metrics.Handler())

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: mux,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("port", cfg.Port))
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	logger.Info("HTTP server stopped")

	dispatcher.Close()
	if kafkaNotifier != nil {
		kafkaNotifier.Close()
	}
	logger.Info("notification workers stopped")

	rdb.Close()
	db.Close()
	logger.Info("connections closed")
}
