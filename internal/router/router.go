package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/learnhub-api/internal/config"
	"github.com/noah-isme/learnhub-api/internal/handler"
	"github.com/noah-isme/learnhub-api/internal/middleware"
	"github.com/noah-isme/learnhub-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	EnrollmentHandler   *handler.EnrollmentHandler
	CertificateHandler  *handler.CertificateHandler
	GamificationHandler *handler.GamificationHandler
	PaymentHandler      *handler.PaymentHandler
	JWTMiddleware       fiber.Handler
	HealthProbes        []handler.HealthProbe
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	// Common v1 group for health & headers
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes...))
	app.Get("/metrics", observability.MetricsHandler())

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}
	authenticated := middleware.RequireUser()
	staffOnly := middleware.RequireStaff()
	verifyLimit := middleware.RateLimit("verify", cfg.VerifyRateLimit, time.Minute)

	v2 := app.Group("/api/v2")

	if deps.EnrollmentHandler != nil {
		courses := v2.Group("/courses", jwtMiddleware, authenticated)
		deps.EnrollmentHandler.Register(courses)
	}

	if deps.CertificateHandler != nil {
		v2.Use("/certificates/verify", verifyLimit)
		certificates := v2.Group("/certificates")
		deps.CertificateHandler.Register(certificates, jwtMiddleware, authenticated, staffOnly)
	}

	if deps.GamificationHandler != nil {
		gamification := v2.Group("/gamification", jwtMiddleware, authenticated)
		deps.GamificationHandler.Register(gamification, staffOnly)
	}

	if deps.PaymentHandler != nil {
		paymentLimit := middleware.RateLimit("payment", cfg.VerifyRateLimit, time.Minute)
		payments := v2.Group("/payments", jwtMiddleware, authenticated, paymentLimit)
		deps.PaymentHandler.Register(payments)
	}
}
