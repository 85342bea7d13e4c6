package handler

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/learnhub-api/internal/dto"
	"github.com/noah-isme/learnhub-api/internal/service"
	"github.com/noah-isme/learnhub-api/internal/utils"
)

// GamificationHandler exposes gamification question endpoints.
type GamificationHandler struct {
	service service.GamificationService
	logger  zerolog.Logger
}

// NewGamificationHandler constructs a gamification handler.
func NewGamificationHandler(service service.GamificationService, logger zerolog.Logger) *GamificationHandler {
	return &GamificationHandler{
		service: service,
		logger:  logger.With().Str("component", "gamification_handler").Logger(),
	}
}

// Register wires gamification routes. guards run before the write routes only.
func (h *GamificationHandler) Register(router fiber.Router, guards ...fiber.Handler) {
	router.Get("/paginated", h.paginate)
	router.Get("/search", h.search)
	router.Post("", guarded(guards, h.create)...)
	router.Patch("/:id/status", guarded(guards, h.toggleStatus)...)
}

func (h *GamificationHandler) paginate(c *fiber.Ctx) error {
	var query dto.GamificationPageQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	page, err := h.service.Paginate(c.UserContext(), query)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.OK(c, page, "Game questions fetched successfully", fiber.Map{
		"groups":  len(page.Groups),
		"hasMore": page.LastVisible != nil,
	})
}

func (h *GamificationHandler) search(c *fiber.Ctx) error {
	var query dto.GamificationSearchQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	results, err := h.service.Search(c.UserContext(), query)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "Search results retrieved successfully", results)
}

func (h *GamificationHandler) create(c *fiber.Ctx) error {
	var payload dto.GamificationCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	payload.UserID = actingUser(c, payload.UserID)

	resp, err := h.service.Create(c.UserContext(), payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "Game question created successfully", resp)
}

func (h *GamificationHandler) toggleStatus(c *fiber.Ctx) error {
	var payload dto.GamificationStatusRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	resp, err := h.service.ToggleStatus(c.UserContext(), strings.TrimSpace(c.Params("id")), payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "Game question "+strings.ToLower(strings.TrimSpace(payload.Status))+"d successfully", resp)
}

func (h *GamificationHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case isValidationError(err):
		return utils.Fail(c, fiber.StatusBadRequest, "invalid payload", validationDetails(err))
	case errors.Is(err, service.ErrInvalidCursor):
		return utils.SendError(c, fiber.StatusBadRequest, "invalid lastVisible cursor")
	case errors.Is(err, service.ErrGamificationInvalid):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrGamificationExists):
		return utils.SendError(c, fiber.StatusConflict, "Game question already exists")
	case errors.Is(err, service.ErrGamificationNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "Game question not found")
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("gamification request failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
