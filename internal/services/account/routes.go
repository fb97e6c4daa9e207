package account

import (
	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/scentswap-api/internal/middleware"
)

// SetupRoutes настраивает маршруты управления аккаунтом
func (s *AccountService) SetupRoutes(app *fiber.App) {
	api := app.Group("/api/account")
	api.Use(middleware.AuthMiddleware(s.jwtService))

	api.Get("/deletion-check", s.DeletionCheck)
	api.Delete("/", s.DeleteAccount)
}
