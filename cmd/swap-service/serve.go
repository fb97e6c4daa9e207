package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rajivgeraev/scentswap-api/internal/config"
	"github.com/rajivgeraev/scentswap-api/internal/observability"
	"github.com/rajivgeraev/scentswap-api/internal/services/account"
	"github.com/rajivgeraev/scentswap-api/internal/services/auth"
	"github.com/rajivgeraev/scentswap-api/internal/services/chat"
	"github.com/rajivgeraev/scentswap-api/internal/services/listing"
	swapservice "github.com/rajivgeraev/scentswap-api/internal/services/swap"
	"github.com/rajivgeraev/scentswap-api/internal/swap"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Запустить HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Загружаем конфигурацию
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	shutdownTracing, err := observability.InitTracing(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn("Ошибка остановки трассировки", zap.Error(err))
		}
	}()

	// Инициализируем хранилище
	st, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Error("❌ Ошибка при инициализации хранилища", zap.Error(err))
		return err
	}
	defer func() {
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = st.Close(cctx)
	}()

	notifier, closeNotifier, err := openNotifier(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = closeNotifier() }()

	engine := swap.New(st,
		swap.WithNotifier(notifier),
		swap.WithPayments(balanceChecker(cfg, log)),
		swap.WithLogger(log.Named("swap")),
		swap.WithMonthlyLimit(cfg.SwapConfig.MonthlySwapLimit),
		swap.WithDeletionCooldown(cfg.SwapConfig.DeletionCooldown),
	)

	app := newApp(cfg, log)

	// Регистрируем маршруты
	auth.NewAuthService(cfg, st, log).SetupRoutes(app)
	swapservice.NewSwapService(cfg, engine, log).SetupRoutes(app)
	chat.NewChatService(cfg, engine, log).SetupRoutes(app)
	account.NewAccountService(cfg, engine, log).SetupRoutes(app)
	listing.NewListingService(cfg, st, log).SetupRoutes(app)

	errCh := make(chan error, 1)
	go func() {
		log.Info("✅ ScentSwap API запущен", zap.String("port", cfg.Port), zap.String("store", cfg.StoreDriver))
		errCh <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Остановка сервера")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(sctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

// newApp создаёт экземпляр Fiber с общими middleware
func newApp(cfg *config.Config, log *zap.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "ScentSwap API",
		ErrorHandler: errorHandler(log),
	})

	// Добавляем middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowCredentials: false,
	}))

	app.Get("/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "env": cfg.AppEnv})
	})
	return app
}

// errorHandler обрабатывает ошибки Fiber
func errorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError

		// Проверяем, является ли ошибка из Fiber
		var e *fiber.Error
		if errors.As(err, &e) {
			code = e.Code
		}
		if code >= fiber.StatusInternalServerError {
			log.Error("Необработанная ошибка", zap.String("path", c.Path()), zap.Error(err))
		}

		// Отправляем ошибку в JSON
		return c.Status(code).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}
}
