package chat

import (
	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/scentswap-api/internal/middleware"
)

// SetupRoutes настраивает маршруты для переписки по обмену
func (s *ChatService) SetupRoutes(app *fiber.App) {
	// Группа для сообщений обмена
	api := app.Group("/api/swaps/:id/messages")

	// Защищенные маршруты (требуют авторизации)
	api.Use(middleware.AuthMiddleware(s.jwtService))

	// Маршрут для получения сообщений
	api.Get("/", s.GetChatMessages)

	// Маршрут для отправки сообщения
	api.Post("/", s.SendMessage)

	// Отметка о прочтении
	api.Post("/:messageId/read", s.MarkRead)
}
