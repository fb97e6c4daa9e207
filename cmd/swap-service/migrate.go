package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rajivgeraev/scentswap-api/internal/config"
	"github.com/rajivgeraev/scentswap-api/internal/db"
	"github.com/rajivgeraev/scentswap-api/internal/mongodb"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Создать таблицы Postgres или индексы MongoDB",
		Long: `Подготавливает хранилище, выбранное через STORE_DRIVER.

Для postgres применяется встроенная схема, для mongo создаются
коллекции и индексы. Команда идемпотентна.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate()
		},
	}
}

func runMigrate() error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		if err := db.InitDB(cfg, log); err != nil {
			return err
		}
		defer db.CloseDB()
		if err := db.Migrate(ctx, db.Pool); err != nil {
			return err
		}

	case config.StoreDriverMongo:
		st, err := mongodb.Connect(ctx, cfg.MongoConfig.URI, cfg.MongoConfig.Database, retryConfig(cfg), log)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close(context.Background()) }()
		if err := st.EnsureIndexes(ctx); err != nil {
			return err
		}

	case config.StoreDriverMemory:
		log.Info("Хранилище в памяти не требует миграций")
		return nil

	default:
		return fmt.Errorf("неизвестный STORE_DRIVER: %q", cfg.StoreDriver)
	}

	log.Info("✅ Миграция выполнена", zap.String("store", cfg.StoreDriver))
	return nil
}
