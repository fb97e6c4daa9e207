package chat

import (
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	"github.com/rajivgeraev/scentswap-api/internal/config"
	"github.com/rajivgeraev/scentswap-api/internal/db"
	"github.com/rajivgeraev/scentswap-api/internal/middleware"
	"github.com/rajivgeraev/scentswap-api/internal/swap"
	"github.com/rajivgeraev/scentswap-api/internal/utils"
)

// ChatService представляет сервис переписки внутри обмена
type ChatService struct {
	cfg        *config.Config
	engine     *swap.Engine
	jwtService *utils.JWTService
	log        *zap.Logger
}

// NewChatService создает новый экземпляр ChatService
func NewChatService(cfg *config.Config, e *swap.Engine, log *zap.Logger) *ChatService {
	return &ChatService{
		cfg:        cfg,
		engine:     e,
		jwtService: utils.NewJWTService(cfg.JWTSecret),
		log:        log,
	}
}

// GetChatMessages возвращает сообщения обмена и отмечает их прочитанными
func (s *ChatService) GetChatMessages(c fiber.Ctx) error {
	ctx, cancel := db.GetContext()
	defer cancel()

	page, err := s.engine.ListMessages(ctx, c.Params("id"), middleware.UserID(c))
	if err != nil {
		return utils.Fail(c, s.log, err, nil)
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"messages": page.Messages,
		"count":    len(page.Messages),
		"unread":   page.Unread,
	})
}

// SendMessage отправляет сообщение в переписку обмена
func (s *ChatService) SendMessage(c fiber.Ctx) error {
	var requestData struct {
		Text string `json:"text"`
	}
	if err := c.Bind().Body(&requestData); err != nil {
		return utils.BadRequest(c, "Неверный формат данных")
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	msg, err := s.engine.SendMessage(ctx, c.Params("id"), middleware.UserID(c), requestData.Text)
	if err != nil {
		return utils.Fail(c, s.log, err, nil)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": msg,
	})
}

// MarkRead отмечает сообщение прочитанным
func (s *ChatService) MarkRead(c fiber.Ctx) error {
	ctx, cancel := db.GetContext()
	defer cancel()

	msg, err := s.engine.MarkRead(ctx, c.Params("id"), c.Params("messageId"), middleware.UserID(c))
	if err != nil {
		return utils.Fail(c, s.log, err, nil)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": msg,
	})
}
