package account

import (
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	"github.com/rajivgeraev/scentswap-api/internal/config"
	"github.com/rajivgeraev/scentswap-api/internal/db"
	"github.com/rajivgeraev/scentswap-api/internal/middleware"
	"github.com/rajivgeraev/scentswap-api/internal/swap"
	"github.com/rajivgeraev/scentswap-api/internal/utils"
)

// AccountService обслуживает удаление аккаунта
type AccountService struct {
	cfg        *config.Config
	engine     *swap.Engine
	jwtService *utils.JWTService
	log        *zap.Logger
}

// NewAccountService создает новый экземпляр AccountService
func NewAccountService(cfg *config.Config, e *swap.Engine, log *zap.Logger) *AccountService {
	return &AccountService{
		cfg:        cfg,
		engine:     e,
		jwtService: utils.NewJWTService(cfg.JWTSecret),
		log:        log,
	}
}

// DeletionCheck сообщает, можно ли удалить аккаунт, и если нет, то почему
func (s *AccountService) DeletionCheck(c fiber.Ctx) error {
	ctx, cancel := db.GetContext()
	defer cancel()

	check, err := s.engine.CheckAccountDeletion(ctx, middleware.UserID(c))
	if err != nil {
		return utils.Fail(c, s.log, err, nil)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"allowed": check.Allowed,
		"reason":  check.Reason,
		"message": check.Message,
	})
}

// DeleteAccount удаляет аккаунт текущего пользователя
func (s *AccountService) DeleteAccount(c fiber.Ctx) error {
	ctx, cancel := db.GetContext()
	defer cancel()

	res, err := s.engine.DeleteAccount(ctx, middleware.UserID(c))
	if err != nil {
		return utils.Fail(c, s.log, err, nil)
	}

	return c.JSON(fiber.Map{
		"success":          true,
		"swaps_anonymized": res.SwapsAnonymized,
		"messages_deleted": res.MessagesDeleted,
		"quota_refunds":    res.QuotaRefunds,
	})
}
