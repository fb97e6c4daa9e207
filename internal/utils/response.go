package utils

import (
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	"github.com/rajivgeraev/scentswap-api/internal/apperr"
)

// StatusOverrides переопределяет HTTP-код для класса ошибки на конкретном эндпоинте
type StatusOverrides map[apperr.Kind]int

var defaultStatus = map[apperr.Kind]int{
	apperr.KindInvalidRequest:      fiber.StatusBadRequest,
	apperr.KindUnauthenticated:     fiber.StatusUnauthorized,
	apperr.KindNotFound:            fiber.StatusNotFound,
	apperr.KindForbidden:           fiber.StatusForbidden,
	apperr.KindInvalidState:        fiber.StatusConflict,
	apperr.KindConflict:            fiber.StatusConflict,
	apperr.KindUpstreamUnavailable: fiber.StatusServiceUnavailable,
	apperr.KindInternal:            fiber.StatusInternalServerError,
}

// StatusFor возвращает HTTP-код для класса ошибки
func StatusFor(kind apperr.Kind, overrides StatusOverrides) int {
	if code, ok := overrides[kind]; ok {
		return code
	}
	if code, ok := defaultStatus[kind]; ok {
		return code
	}
	return fiber.StatusInternalServerError
}

// Fail отвечает {"success": false, "error": kind, "message": ...}.
// Ошибки хранилища и внутренние ошибки пишутся в лог.
func Fail(c fiber.Ctx, log *zap.Logger, err error, overrides StatusOverrides) error {
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal || kind == apperr.KindUpstreamUnavailable {
		log.Error("Ошибка обработки запроса",
			zap.String("method", c.Method()), zap.String("path", c.Path()), zap.Error(err))
	}

	body := fiber.Map{
		"success": false,
		"error":   kind,
		"message": apperr.PublicMessage(err),
	}
	if e, ok := apperr.As(err); ok && e.Reason != "" {
		body["reason"] = e.Reason
	}
	return c.Status(StatusFor(kind, overrides)).JSON(body)
}

// BadRequest – короткий ответ для невалидного тела запроса
func BadRequest(c fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"success": false,
		"error":   apperr.KindInvalidRequest,
		"message": msg,
	})
}
