package handler

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/learnhub-api/internal/service"
	"github.com/noah-isme/learnhub-api/internal/utils"
	"github.com/noah-isme/learnhub-api/pkg/paystack"
)

// PaymentHandler turns verified payments into enrollments.
type PaymentHandler struct {
	enrollments service.EnrollmentService
	logger      zerolog.Logger
}

// NewPaymentHandler constructs a payment handler.
func NewPaymentHandler(enrollments service.EnrollmentService, logger zerolog.Logger) *PaymentHandler {
	return &PaymentHandler{
		enrollments: enrollments,
		logger:      logger.With().Str("component", "payment_handler").Logger(),
	}
}

// Register wires payment routes.
func (h *PaymentHandler) Register(router fiber.Router) {
	router.Get("/verify/:reference", h.verify)
}

func (h *PaymentHandler) verify(c *fiber.Ctx) error {
	reference := strings.TrimSpace(c.Params("reference"))
	resp, err := h.enrollments.EnrollFromPayment(c.UserContext(), reference)
	if err != nil {
		switch {
		case errors.Is(err, paystack.ErrEmptyReference):
			return utils.SendError(c, fiber.StatusBadRequest, "payment reference is required")
		case errors.Is(err, service.ErrPaymentNotVerified):
			return utils.SendError(c, fiber.StatusPaymentRequired, "Payment verification failed")
		case errors.Is(err, service.ErrPaymentUnavailable):
			return utils.SendError(c, fiber.StatusServiceUnavailable, "payment verification unavailable")
		default:
			requestLogger(h.logger, c).Error().Err(err).Str("reference", reference).Msg("failed to enroll from payment")
			return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
		}
	}
	return utils.SendSuccess(c, "Payment verified and courses enrolled", resp)
}
