package swap

import (
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	"github.com/rajivgeraev/scentswap-api/internal/apperr"
	"github.com/rajivgeraev/scentswap-api/internal/config"
	"github.com/rajivgeraev/scentswap-api/internal/db"
	"github.com/rajivgeraev/scentswap-api/internal/middleware"
	"github.com/rajivgeraev/scentswap-api/internal/models"
	engine "github.com/rajivgeraev/scentswap-api/internal/swap"
	"github.com/rajivgeraev/scentswap-api/internal/utils"
)

// Коды ответов для эндпоинтов подтверждения: ошибки состояния отдаются как 500 с success:false
var confirmStatus = utils.StatusOverrides{
	apperr.KindInvalidState: fiber.StatusInternalServerError,
	apperr.KindNotFound:     fiber.StatusInternalServerError,
}

// При создании нарушение предусловий – это неверные параметры
var createStatus = utils.StatusOverrides{
	apperr.KindInvalidState: fiber.StatusBadRequest,
}

// SwapService представляет сервис для работы с обменами
type SwapService struct {
	cfg        *config.Config
	engine     *engine.Engine
	jwtService *utils.JWTService
	limiter    *middleware.UserRateLimiter
	log        *zap.Logger
}

// NewSwapService создает новый экземпляр SwapService
func NewSwapService(cfg *config.Config, e *engine.Engine, log *zap.Logger) *SwapService {
	return &SwapService{
		cfg:        cfg,
		engine:     e,
		jwtService: utils.NewJWTService(cfg.JWTSecret),
		limiter:    middleware.NewUserRateLimiter(cfg.RateLimitPerMin),
		log:        log,
	}
}

// CreateSwapRequest создает новое предложение обмена
func (s *SwapService) CreateSwapRequest(c fiber.Ctx) error {
	var requestData struct {
		OfferedListingID   string `json:"offered_listing_id"`
		RequestedListingID string `json:"requested_listing_id"`
		RequestedFromUID   string `json:"requested_from_uid"`
		Message            string `json:"message"`
	}
	if err := c.Bind().Body(&requestData); err != nil {
		s.log.Debug("Ошибка декодирования тела запроса", zap.Error(err))
		return utils.BadRequest(c, "Неверный формат данных")
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	res, err := s.engine.CreateSwapRequest(ctx, engine.CreateInput{
		CallerUID:          middleware.UserID(c),
		OfferedListingID:   requestData.OfferedListingID,
		RequestedListingID: requestData.RequestedListingID,
		RequestedFromUID:   requestData.RequestedFromUID,
		Note:               requestData.Message,
	})
	if err != nil {
		return utils.Fail(c, s.log, err, createStatus)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":         true,
		"swap_request_id": res.SwapRequestID,
		"message_id":      res.MessageID,
	})
}

// GetMySwaps возвращает обмены пользователя
func (s *SwapService) GetMySwaps(c fiber.Ctx) error {
	ctx, cancel := db.GetContext()
	defer cancel()

	swaps, err := s.engine.ListMySwaps(ctx, middleware.UserID(c), models.SwapStatus(c.Query("status")))
	if err != nil {
		return utils.Fail(c, s.log, err, nil)
	}
	return c.JSON(fiber.Map{"success": true, "swaps": swaps})
}

// GetSwap возвращает один обмен
func (s *SwapService) GetSwap(c fiber.Ctx) error {
	ctx, cancel := db.GetContext()
	defer cancel()

	swap, err := s.engine.GetSwap(ctx, c.Params("id"), middleware.UserID(c))
	if err != nil {
		return utils.Fail(c, s.log, err, nil)
	}
	return c.JSON(fiber.Map{"success": true, "swap": swap})
}

// AcceptSwap принимает предложение обмена
func (s *SwapService) AcceptSwap(c fiber.Ctx) error {
	ctx, cancel := db.GetContext()
	defer cancel()

	res, err := s.engine.AcceptSwap(ctx, c.Params("id"), middleware.UserID(c))
	if err != nil {
		return utils.Fail(c, s.log, err, nil)
	}
	return c.JSON(fiber.Map{
		"success":    true,
		"status":     res.Status,
		"message_id": res.MessageID,
	})
}

// ConfirmAddress подтверждает адрес доставки
func (s *SwapService) ConfirmAddress(c fiber.Ctx) error {
	var requestData struct {
		UserUID   string `json:"user_uid"`
		Address   string `json:"address"`
		UserRole  string `json:"user_role"`
		MessageID string `json:"message_id"`
	}
	if err := c.Bind().Body(&requestData); err != nil {
		return utils.BadRequest(c, "Неверный формат данных")
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	res, err := s.engine.ConfirmAddress(ctx, engine.AddressInput{
		SwapRequestID: c.Params("id"),
		CallerUID:     middleware.UserID(c),
		UserUID:       requestData.UserUID,
		Address:       requestData.Address,
		UserRole:      models.ParticipantRole(requestData.UserRole),
		MessageID:     requestData.MessageID,
	})
	if err != nil {
		return utils.Fail(c, s.log, err, confirmStatus)
	}

	return c.JSON(fiber.Map{
		"success":        true,
		"both_confirmed": res.BothConfirmed,
		"new_status":     res.NewStatus,
		"confirmations":  res.Confirmations,
	})
}

// ConfirmShipment подтверждает отправку
func (s *SwapService) ConfirmShipment(c fiber.Ctx) error {
	var requestData struct {
		UserUID        string `json:"user_uid"`
		TrackingNumber string `json:"tracking_number"`
		MessageID      string `json:"message_id"`
	}
	if err := c.Bind().Body(&requestData); err != nil {
		return utils.BadRequest(c, "Неверный формат данных")
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	res, err := s.engine.ConfirmShipment(ctx, engine.ShipmentInput{
		SwapRequestID:  c.Params("id"),
		CallerUID:      middleware.UserID(c),
		UserUID:        requestData.UserUID,
		TrackingNumber: requestData.TrackingNumber,
		MessageID:      requestData.MessageID,
	})
	if err != nil {
		return utils.Fail(c, s.log, err, confirmStatus)
	}

	return c.JSON(fiber.Map{
		"success":          true,
		"both_shipped":     res.BothShipped,
		"new_status":       res.NewStatus,
		"shipments":        res.Shipments,
		"tracking_numbers": res.TrackingNumbers,
	})
}

// CancelSwap отменяет обмен
func (s *SwapService) CancelSwap(c fiber.Ctx) error {
	ctx, cancel := db.GetContext()
	defer cancel()

	res, err := s.engine.Cancel(ctx, c.Params("id"), middleware.UserID(c))
	if err != nil {
		return utils.Fail(c, s.log, err, nil)
	}
	return c.JSON(fiber.Map{"success": true, "cancelled": res.Cancelled, "status": res.Status})
}
