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

// CertificateHandler exposes certificate issuance and lookup endpoints.
type CertificateHandler struct {
	service service.CertificateService
	logger  zerolog.Logger
}

// NewCertificateHandler constructs a certificate handler.
func NewCertificateHandler(service service.CertificateService, logger zerolog.Logger) *CertificateHandler {
	return &CertificateHandler{
		service: service,
		logger:  logger.With().Str("component", "certificate_handler").Logger(),
	}
}

// Register wires certificate routes. guards run before the administrative
// routes only; verification stays public.
func (h *CertificateHandler) Register(router fiber.Router, guards ...fiber.Handler) {
	router.Get("/verify/:code", h.verify)
	router.Post("/issueCertificates", guarded(guards, h.issue)...)
	router.Post("/resendCertificate", guarded(guards, h.resend)...)
	router.Get("/getAllCertificates", guarded(guards, h.list)...)
}

func (h *CertificateHandler) issue(c *fiber.Ctx) error {
	var payload dto.IssueCertificatesRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "studentId must be an array")
	}
	payload.UserID = actingUser(c, payload.UserID)

	results, err := h.service.IssueCertificates(c.UserContext(), payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "Certificate generation process completed", results)
}

func (h *CertificateHandler) resend(c *fiber.Ctx) error {
	var payload dto.ResendCertificateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	payload.UserID = actingUser(c, payload.UserID)

	resp, err := h.service.ResendCertificate(c.UserContext(), payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "Certificate Resend Successfully", resp)
}

func (h *CertificateHandler) list(c *fiber.Ctx) error {
	items, err := h.service.ListAllCertificates(c.UserContext())
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.OK(c, items, "Certificates retrieved successfully", fiber.Map{"count": len(items)})
}

func (h *CertificateHandler) verify(c *fiber.Ctx) error {
	resp, err := h.service.VerifyCertificate(c.UserContext(), strings.TrimSpace(c.Params("code")))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "Certificate is valid", resp)
}

func (h *CertificateHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case isValidationError(err):
		return utils.Fail(c, fiber.StatusBadRequest, "invalid payload", validationDetails(err))
	case errors.Is(err, service.ErrStudentNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "User not found")
	case errors.Is(err, service.ErrCertificateNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "Certificate not found")
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("certificate request failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
