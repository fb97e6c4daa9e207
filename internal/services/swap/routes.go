package swap

import (
	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/scentswap-api/internal/middleware"
)

// SetupRoutes настраивает маршруты для API обменов
func (s *SwapService) SetupRoutes(app *fiber.App) {
	// Группа для API обменов
	api := app.Group("/api/swaps")

	// Защищенные маршруты (требуют авторизации)
	api.Use(middleware.AuthMiddleware(s.jwtService))

	// Создание ограничено по частоте на пользователя.
	// Fiber v3 вызывает дополнительные обработчики до основного.
	api.Post("/", s.CreateSwapRequest, s.limiter.Handler())
	api.Get("/", s.GetMySwaps)
	api.Get("/:id", s.GetSwap)

	// Переходы состояния
	api.Post("/:id/accept", s.AcceptSwap)
	api.Post("/:id/confirm-address", s.ConfirmAddress)
	api.Post("/:id/confirm-shipment", s.ConfirmShipment)
	api.Post("/:id/cancel", s.CancelSwap)
}
