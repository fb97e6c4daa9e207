package listing

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rajivgeraev/scentswap-api/internal/apperr"
	"github.com/rajivgeraev/scentswap-api/internal/config"
	"github.com/rajivgeraev/scentswap-api/internal/db"
	"github.com/rajivgeraev/scentswap-api/internal/middleware"
	"github.com/rajivgeraev/scentswap-api/internal/models"
	"github.com/rajivgeraev/scentswap-api/internal/store"
	"github.com/rajivgeraev/scentswap-api/internal/utils"
)

// ListingStatusArchived – снятое с публикации объявление. Удалять объявления
// нельзя: на них ссылаются снимки в документах обменов.
const ListingStatusArchived = "archived"

// ListingService представляет сервис для работы с объявлениями
type ListingService struct {
	cfg        *config.Config
	store      store.Store
	jwtService *utils.JWTService
	log        *zap.Logger
	now        func() time.Time
}

// NewListingService создает новый экземпляр ListingService
func NewListingService(cfg *config.Config, s store.Store, log *zap.Logger) *ListingService {
	return &ListingService{
		cfg:        cfg,
		store:      s,
		jwtService: utils.NewJWTService(cfg.JWTSecret),
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

type listingInput struct {
	Title      string             `json:"title"`
	Brand      string             `json:"brand"`
	Fragrance  string             `json:"fragrance"`
	AmountLeft string             `json:"amount_left"`
	ImageURL   string             `json:"image_url"`
	Type       models.ListingType `json:"type"`
}

func (in *listingInput) validate() error {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return apperr.InvalidRequest("Название обязательно")
	}
	if in.Type == "" {
		in.Type = models.ListingTypeSwap
	}
	if in.Type != models.ListingTypeSwap && in.Type != models.ListingTypeSell {
		return apperr.InvalidRequest("Неизвестный тип объявления")
	}
	return nil
}

// CreateListing создает новое объявление
func (s *ListingService) CreateListing(c fiber.Ctx) error {
	var input listingInput
	if err := c.Bind().Body(&input); err != nil {
		return utils.BadRequest(c, "Неверный формат данных")
	}
	if err := input.validate(); err != nil {
		return utils.Fail(c, s.log, err, nil)
	}

	now := s.now()
	listing := &models.Listing{
		ID:         uuid.NewString(),
		OwnerUID:   middleware.UserID(c),
		Title:      input.Title,
		Brand:      input.Brand,
		Fragrance:  input.Fragrance,
		AmountLeft: input.AmountLeft,
		ImageURL:   input.ImageURL,
		Type:       input.Type,
		Status:     models.ListingStatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	if err := s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.PutListing(ctx, listing)
	}); err != nil {
		return utils.Fail(c, s.log, apperr.Wrap(apperr.KindUpstreamUnavailable, "Ошибка сохранения объявления", err), nil)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"listing": listing,
	})
}

// GetListing возвращает объявление по ID
func (s *ListingService) GetListing(c fiber.Ctx) error {
	ctx, cancel := db.GetContext()
	defer cancel()

	var listing *models.Listing
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		listing, err = tx.GetListing(ctx, c.Params("id"))
		return err
	})
	if err != nil {
		return utils.Fail(c, s.log, storeError(err), nil)
	}

	return c.JSON(fiber.Map{"success": true, "listing": listing})
}

// UpdateListing обновляет поля своего активного объявления
func (s *ListingService) UpdateListing(c fiber.Ctx) error {
	var input listingInput
	if err := c.Bind().Body(&input); err != nil {
		return utils.BadRequest(c, "Неверный формат данных")
	}
	if err := input.validate(); err != nil {
		return utils.Fail(c, s.log, err, nil)
	}

	listing, err := s.modifyOwn(c, func(l *models.Listing) error {
		if !l.IsActive() {
			return apperr.InvalidState("Объявление снято с публикации")
		}
		l.Title = input.Title
		l.Brand = input.Brand
		l.Fragrance = input.Fragrance
		l.AmountLeft = input.AmountLeft
		l.ImageURL = input.ImageURL
		l.Type = input.Type
		return nil
	})
	if err != nil {
		return utils.Fail(c, s.log, err, nil)
	}

	return c.JSON(fiber.Map{"success": true, "listing": listing})
}

// DeleteListing снимает объявление с публикации
func (s *ListingService) DeleteListing(c fiber.Ctx) error {
	listing, err := s.modifyOwn(c, func(l *models.Listing) error {
		l.Status = ListingStatusArchived
		return nil
	})
	if err != nil {
		return utils.Fail(c, s.log, err, nil)
	}

	return c.JSON(fiber.Map{"success": true, "listing": listing})
}

// modifyOwn читает объявление, проверяет владельца и сохраняет изменения fn
func (s *ListingService) modifyOwn(c fiber.Ctx, fn func(l *models.Listing) error) (*models.Listing, error) {
	ctx, cancel := db.GetContext()
	defer cancel()

	uid := middleware.UserID(c)
	id := c.Params("id")

	var listing *models.Listing
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		l, err := tx.GetListing(ctx, id)
		if err != nil {
			return err
		}
		if l.OwnerUID != uid {
			return apperr.Forbidden("У вас нет доступа к этому объявлению")
		}
		if err := fn(l); err != nil {
			return err
		}
		l.UpdatedAt = s.now()
		if err := tx.PutListing(ctx, l); err != nil {
			return err
		}
		listing = l
		return nil
	})
	if err != nil {
		return nil, storeError(err)
	}
	return listing, nil
}

func storeError(err error) error {
	if _, ok := apperr.As(err); ok {
		return err
	}
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound("Объявление не найдено")
	}
	return apperr.Wrap(apperr.KindUpstreamUnavailable, "Ошибка базы данных", err)
}
