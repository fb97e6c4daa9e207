package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rajivgeraev/scentswap-api/internal/config"
	"github.com/rajivgeraev/scentswap-api/internal/db"
	"github.com/rajivgeraev/scentswap-api/internal/logger"
	"github.com/rajivgeraev/scentswap-api/internal/mongodb"
	"github.com/rajivgeraev/scentswap-api/internal/notify"
	"github.com/rajivgeraev/scentswap-api/internal/payments"
	"github.com/rajivgeraev/scentswap-api/internal/store"
	"github.com/rajivgeraev/scentswap-api/internal/store/memory"
)

// loadConfig загружает и проверяет конфигурацию, затем поднимает логгер
func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("некорректная конфигурация: %w", err)
	}

	log, err := logger.New(logger.Config{Development: cfg.IsDevelopment(), Level: logLevel})
	if err != nil {
		return nil, nil, fmt.Errorf("ошибка инициализации логгера: %w", err)
	}
	return cfg, log, nil
}

func retryConfig(cfg *config.Config) store.RetryConfig {
	retry := store.DefaultRetryConfig()
	retry.MaxAttempts = cfg.SwapConfig.TxMaxAttempts
	return retry
}

// openStore подключает хранилище по STORE_DRIVER
func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (store.Store, error) {
	retry := retryConfig(cfg)

	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		if err := db.InitDB(cfg, log); err != nil {
			return nil, err
		}
		return db.NewStore(db.Pool, retry), nil

	case config.StoreDriverMongo:
		st, err := mongodb.Connect(ctx, cfg.MongoConfig.URI, cfg.MongoConfig.Database, retry, log)
		if err != nil {
			return nil, err
		}
		return st, nil

	case config.StoreDriverMemory:
		log.Warn("Используется хранилище в памяти, данные не сохранятся после перезапуска")
		return memory.New(memory.WithRetry(retry)), nil
	}
	return nil, fmt.Errorf("неизвестный STORE_DRIVER: %q", cfg.StoreDriver)
}

// openNotifier возвращает транспорт уведомлений и функцию его закрытия
func openNotifier(ctx context.Context, cfg *config.Config, log *zap.Logger) (notify.Notifier, func() error, error) {
	nc := cfg.NotifyConfig

	var (
		next    notify.Notifier
		closeFn = func() error { return nil }
	)
	switch nc.Driver {
	case config.NotifyDriverLog:
		return notify.NewLogNotifier(log), closeFn, nil

	case config.NotifyDriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     nc.RedisAddr,
			Password: nc.RedisPassword,
			DB:       nc.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("ошибка подключения к Redis: %w", err)
		}
		next, closeFn = notify.NewRedisNotifier(client, nc.RedisStream), client.Close
		log.Info("✅ Уведомления через Redis Stream", zap.String("stream", nc.RedisStream))

	case config.NotifyDriverKafka:
		k := notify.NewKafkaNotifier(notify.NewKafkaWriter(nc.KafkaBrokers, nc.KafkaTopic))
		next, closeFn = k, k.Close
		log.Info("✅ Уведомления через Kafka", zap.Strings("brokers", nc.KafkaBrokers), zap.String("topic", nc.KafkaTopic))

	default:
		return nil, nil, fmt.Errorf("неизвестный NOTIFY_DRIVER: %q", nc.Driver)
	}

	return notify.NewBreaker(next, notify.DefaultBreakerConfig(), log), closeFn, nil
}

// balanceChecker выбирает проверку платёжного аккаунта
func balanceChecker(cfg *config.Config, log *zap.Logger) payments.BalanceChecker {
	if cfg.StripeSecretKey == "" {
		log.Warn("STRIPE_SECRET_KEY не задан, аккаунты с подключёнными выплатами удалить нельзя")
		return payments.NoAccounts{}
	}
	return payments.NewStripeChecker(cfg.StripeSecretKey, log)
}
