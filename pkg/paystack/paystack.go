// Package paystack verifies completed transactions with the Paystack API.
package paystack

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// DefaultBaseURL is the public Paystack API endpoint.
const DefaultBaseURL = "https://api.paystack.co"

// ErrEmptyReference is returned when Verify is called without a reference.
var ErrEmptyReference = errors.New("transaction reference is required")

// Config configures the client.
type Config struct {
	BaseURL   string
	SecretKey string
	Timeout   time.Duration
}

// Verification is the subset of a verified transaction the platform needs.
type Verification struct {
	Reference string
	Succeeded bool
	Email     string
	StudentID string
	CourseIDs []string
}

type verifyResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Status    string `json:"status"`
		Reference string `json:"reference"`
		Customer  struct {
			Email string `json:"email"`
		} `json:"customer"`
		Metadata struct {
			UserID string   `json:"user_id"`
			CartID []string `json:"cart_id"`
		} `json:"metadata"`
	} `json:"data"`
}

// Client talks to the Paystack transaction API.
type Client struct {
	http   *resty.Client
	logger zerolog.Logger
}

// New constructs a Paystack client.
func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, fmt.Errorf("paystack secret key must be provided")
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(cfg.SecretKey).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &Client{
		http:   httpClient,
		logger: logger.With().Str("component", "paystack").Logger(),
	}, nil
}

// Verify looks up a transaction by reference. A transaction that exists but
// did not succeed is returned with Succeeded=false and no error.
func (c *Client) Verify(ctx context.Context, reference string) (Verification, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return Verification{}, ErrEmptyReference
	}

	var payload verifyResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("reference", reference).
		SetResult(&payload).
		Get("/transaction/verify/{reference}")
	if err != nil {
		return Verification{}, fmt.Errorf("paystack verify request failed: %w", err)
	}
	if resp.IsError() {
		c.logger.Warn().Int("status", resp.StatusCode()).Str("reference", reference).Msg("paystack verify returned error status")
		return Verification{Reference: reference}, nil
	}

	verification := Verification{
		Reference: reference,
		Succeeded: payload.Status && strings.EqualFold(payload.Data.Status, "success"),
		Email:     payload.Data.Customer.Email,
		StudentID: payload.Data.Metadata.UserID,
		CourseIDs: payload.Data.Metadata.CartID,
	}
	return verification, nil
}
