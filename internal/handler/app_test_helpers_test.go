package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/learnhub-api/internal/certificate"
	"github.com/noah-isme/learnhub-api/internal/config"
	"github.com/noah-isme/learnhub-api/internal/handler"
	"github.com/noah-isme/learnhub-api/internal/middleware"
	"github.com/noah-isme/learnhub-api/internal/models"
	"github.com/noah-isme/learnhub-api/internal/repository"
	"github.com/noah-isme/learnhub-api/internal/router"
	"github.com/noah-isme/learnhub-api/internal/service"
	"github.com/noah-isme/learnhub-api/pkg/paystack"
)

type memoryStorage struct{}

func (memoryStorage) Store(_ context.Context, objectPath string, _ []byte, _ string) (string, error) {
	return "https://files.test/" + objectPath, nil
}

type memoryMailer struct{}

func (memoryMailer) Send(context.Context, string, string, string) error {
	return nil
}

type fixedPayments struct {
	verification paystack.Verification
}

func (f fixedPayments) Verify(_ context.Context, reference string) (paystack.Verification, error) {
	if reference == "" {
		return paystack.Verification{}, paystack.ErrEmptyReference
	}
	v := f.verification
	v.Reference = reference
	return v, nil
}

// testAuth stands in for JWT validation: the caller identity comes from headers.
func testAuth(c *fiber.Ctx) error {
	if id := c.Get("X-Test-User"); id != "" {
		c.Locals("user_id", id)
	}
	if role := c.Get("X-Test-Role"); role != "" {
		c.Locals("user_role", role)
	}
	return c.Next()
}

func setupApp(t *testing.T, payments service.PaymentVerifier) (*fiber.App, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(
		&models.Student{},
		&models.Course{},
		&models.CourseContent{},
		&models.Enrollment{},
		&models.Certificate{},
		&models.GamificationEntry{},
	))

	validate := validator.New()
	logger := zerolog.New(io.Discard)

	students := repository.NewStudentRepository(db)
	courses := repository.NewCourseRepository(db)
	enrollments := repository.NewEnrollmentRepository(db)
	certificates := repository.NewCertificateRepository(db)
	games := repository.NewGamificationRepository(db)

	enrollmentService := service.NewEnrollmentService(enrollments, courses, payments, nil, validate, logger)
	progressService := service.NewProgressService(enrollments, nil, validate, logger)
	certificateService := service.NewCertificateService(service.CertificateDependencies{
		Students:     students,
		Courses:      courses,
		Enrollments:  enrollments,
		Certificates: certificates,
		Renderer:     certificate.NewPDFRenderer("Learnhub"),
		Storage:      memoryStorage{},
		Mailer:       memoryMailer{},
	}, service.CertificateConfig{UploadTimeout: 5 * time.Second}, validate, logger)
	gamificationService := service.NewGamificationService(games, courses, validate, logger)

	app := fiber.New()
	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, config.Config{AppName: "Test", JWTSecret: "secret", VerifyRateLimit: 100}, router.Dependencies{
		EnrollmentHandler:   handler.NewEnrollmentHandler(enrollmentService, progressService, logger),
		CertificateHandler:  handler.NewCertificateHandler(certificateService, logger),
		GamificationHandler: handler.NewGamificationHandler(gamificationService, logger),
		PaymentHandler:      handler.NewPaymentHandler(enrollmentService, logger),
		JWTMiddleware:       testAuth,
	})
	return app, db
}

func seedCourse(t *testing.T, db *gorm.DB, id string, lessons int) {
	t.Helper()
	course := models.Course{ID: id, Title: "Course " + id, Thumbnail: "https://img.test/" + id}
	for i := 0; i < lessons; i++ {
		course.Contents = append(course.Contents, models.CourseContent{Kind: models.ContentKindLesson, Position: i + 1})
	}
	require.NoError(t, db.Create(&course).Error)
}

func seedStudent(t *testing.T, db *gorm.DB, id string) {
	t.Helper()
	require.NoError(t, db.Create(&models.Student{ID: id, Name: "Student " + id, Email: id + "@example.com"}).Error)
}

type envelope struct {
	Success bool              `json:"success"`
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Meta    map[string]any    `json:"meta"`
	Details map[string]string `json:"details"`
}

// doJSON acts as "<role>-1".
func doJSON(t *testing.T, app *fiber.App, method, path, role string, body interface{}) (*http.Response, envelope, []byte) {
	t.Helper()
	user := ""
	if role != "" {
		user = role + "-1"
	}
	return doJSONAs(t, app, method, path, user, role, body)
}

func doJSONAs(t *testing.T, app *fiber.App, method, path, user, role string, body interface{}) (*http.Response, envelope, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	if role != "" {
		req.Header.Set("X-Test-Role", role)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()

	var env envelope
	require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	return resp, env, raw
}
