package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestObservabilityLogsRequest(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	app := fiber.New()
	app.Use(CorrelationID())
	app.Use(Observability(logger))
	app.Get("/api/v2/courses/progress/:student_id", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNotFound)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v2/courses/progress/stu-1", nil)
	req.Header.Set("X-Correlation-ID", "corr-1")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "warn", entry["level"])
	require.Equal(t, "/api/v2/courses/progress/:student_id", entry["route"])
	require.Equal(t, "corr-1", entry["correlation_id"])
	require.EqualValues(t, 404, entry["status"])
}

func TestObservabilitySkipsMetricsScrape(t *testing.T) {
	var buf bytes.Buffer
	app := fiber.New()
	app.Use(Observability(zerolog.New(&buf)))
	app.Get("/metrics", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	_, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	require.Zero(t, buf.Len())
}

func TestLatencyBucket(t *testing.T) {
	require.Equal(t, "<=50ms", latencyBucket(10*time.Millisecond))
	require.Equal(t, "<=1s", latencyBucket(700*time.Millisecond))
	require.Equal(t, ">5s", latencyBucket(6*time.Second))
}
