package auth

import (
	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/scentswap-api/internal/middleware"
)

// SetupRoutes регистрирует маршруты в Fiber
func (s *AuthService) SetupRoutes(app *fiber.App) {
	app.Post("/api/auth/telegram", s.TelegramAuthHandler)

	// Защищенные маршруты
	protected := app.Group("/api/auth/me")
	protected.Use(middleware.AuthMiddleware(s.jwtService))

	// Профиль текущего пользователя по токену
	protected.Get("/", s.Me)
}
