package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/scentswap-api/internal/apperr"
	"github.com/rajivgeraev/scentswap-api/internal/utils"
)

const localUserID = "userID"

// AuthMiddleware создаёт middleware для проверки JWT
func AuthMiddleware(jwtService *utils.JWTService) fiber.Handler {
	return func(c fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return unauthorized(c, "Отсутствует заголовок авторизации")
		}

		// Проверяем Bearer токен
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return unauthorized(c, "Неверный формат заголовка авторизации")
		}

		userID, err := jwtService.ExtractUserID(parts[1])
		if err != nil {
			return unauthorized(c, "Недействительный или просроченный токен")
		}

		// Добавляем userID в контекст
		c.Locals(localUserID, userID)

		return c.Next()
	}
}

// UserID возвращает uid, положенный AuthMiddleware
func UserID(c fiber.Ctx) string {
	uid, _ := c.Locals(localUserID).(string)
	return uid
}

func unauthorized(c fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"success": false,
		"error":   apperr.KindUnauthenticated,
		"message": msg,
	})
}
