package handler

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/learnhub-api/internal/middleware"
)

func userIDFromContext(c *fiber.Ctx) string {
	if v, ok := c.Locals("user_id").(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// actingUser returns the authenticated subject, falling back to the body's
// user_id only when the request carries no identity.
func actingUser(c *fiber.Ctx, claimed string) string {
	if subject := userIDFromContext(c); subject != "" {
		return subject
	}
	return strings.TrimSpace(claimed)
}

func isStaff(c *fiber.Ctx) bool {
	role, _ := c.Locals("user_role").(string)
	switch strings.ToLower(strings.TrimSpace(role)) {
	case middleware.RoleAdmin, middleware.RoleInstructor:
		return true
	}
	return false
}

// bindStudent resolves which student a request acts on. Staff may name any
// student; other callers always act as themselves, and naming someone else
// is rejected.
func bindStudent(c *fiber.Ctx, requested string) (string, bool) {
	requested = strings.TrimSpace(requested)
	if isStaff(c) {
		return requested, true
	}
	subject := userIDFromContext(c)
	if requested == "" || requested == subject {
		return subject, true
	}
	return "", false
}

func guarded(guards []fiber.Handler, handler fiber.Handler) []fiber.Handler {
	chain := make([]fiber.Handler, 0, len(guards)+1)
	chain = append(chain, guards...)
	return append(chain, handler)
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}

// validationDetails maps each failing field to the tag it violated.
func validationDetails(err error) map[string]string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil
	}
	details := make(map[string]string, len(validationErrors))
	for _, fieldErr := range validationErrors {
		details[fieldErr.Field()] = fieldErr.Tag()
	}
	return details
}
