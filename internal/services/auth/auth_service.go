package auth

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	initdata "github.com/telegram-mini-apps/init-data-golang"
	"go.uber.org/zap"

	"github.com/rajivgeraev/scentswap-api/internal/config"
	"github.com/rajivgeraev/scentswap-api/internal/db"
	"github.com/rajivgeraev/scentswap-api/internal/middleware"
	"github.com/rajivgeraev/scentswap-api/internal/models"
	"github.com/rajivgeraev/scentswap-api/internal/store"
	"github.com/rajivgeraev/scentswap-api/internal/utils"
)

// initDataTTL – сколько живут данные запуска Mini App
const initDataTTL = 24 * time.Hour

// AuthService – структура для обработки авторизации
type AuthService struct {
	cfg        *config.Config
	store      store.Store
	jwtService *utils.JWTService
	log        *zap.Logger
}

// NewAuthService – конструктор AuthService
func NewAuthService(cfg *config.Config, s store.Store, log *zap.Logger) *AuthService {
	return &AuthService{
		cfg:        cfg,
		store:      s,
		jwtService: utils.NewJWTService(cfg.JWTSecret),
		log:        log,
	}
}

// TelegramAuthHandler проверяет initData, обновляет профиль и возвращает JWT
func (s *AuthService) TelegramAuthHandler(c fiber.Ctx) error {
	var payload struct {
		InitData string `json:"init_data"`
	}
	if err := c.Bind().Body(&payload); err != nil || payload.InitData == "" {
		return utils.BadRequest(c, "Неверный формат данных")
	}

	// Проверяем initData
	if err := initdata.Validate(payload.InitData, s.cfg.TelegramBotToken, initDataTTL); err != nil {
		s.log.Debug("Невалидные данные Telegram", zap.Error(err))
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"error":   "unauthenticated",
			"message": "Недействительные данные Telegram",
		})
	}

	// Парсим данные
	data, err := initdata.Parse(payload.InitData)
	if err != nil || data.User.ID == 0 {
		return utils.BadRequest(c, "Не удалось разобрать initData")
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	user, err := s.upsertProfile(ctx, data.User)
	if err != nil {
		s.log.Error("Ошибка сохранения профиля", zap.Int64("telegram_id", data.User.ID), zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"success": false,
			"error":   "upstream_unavailable",
			"message": "Не удалось сохранить профиль",
		})
	}

	// Генерируем JWT
	jwtToken, err := s.jwtService.GenerateToken(user.UID)
	if err != nil {
		s.log.Error("Ошибка генерации JWT", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "internal",
			"message": "Не удалось выпустить токен",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"token":   jwtToken,
		"user":    user,
	})
}

// Me возвращает профиль владельца токена
func (s *AuthService) Me(c fiber.Ctx) error {
	ctx, cancel := db.GetContext()
	defer cancel()

	uid := middleware.UserID(c)
	var user *models.UserProfile
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		user, err = tx.GetUser(ctx, uid)
		return err
	})
	if errors.Is(err, store.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"error":   "not_found",
			"message": "Профиль не найден",
		})
	}
	if err != nil {
		s.log.Error("Ошибка чтения профиля", zap.String("uid", uid), zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"success": false,
			"error":   "upstream_unavailable",
			"message": "Не удалось получить профиль",
		})
	}

	return c.JSON(fiber.Map{"success": true, "user": user})
}

// upsertProfile создаёт профиль при первом входе и обновляет публичные поля при следующих.
// Счётчики обменов и квота не трогаются.
func (s *AuthService) upsertProfile(ctx context.Context, tg initdata.User) (*models.UserProfile, error) {
	uid := strconv.FormatInt(tg.ID, 10)

	var user *models.UserProfile
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		now := time.Now().UTC()

		u, err := tx.GetUser(ctx, uid)
		switch {
		case errors.Is(err, store.ErrNotFound):
			u = &models.UserProfile{UID: uid, CreatedAt: now}
		case err != nil:
			return err
		}

		u.Username = tg.Username
		u.FirstName = tg.FirstName
		u.LastName = tg.LastName
		u.AvatarURL = tg.PhotoURL
		u.IsPremium = tg.IsPremium
		u.UpdatedAt = now

		if err := tx.PutUser(ctx, u); err != nil {
			return err
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}
