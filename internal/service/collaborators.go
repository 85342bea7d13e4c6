package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/noah-isme/learnhub-api/internal/certificate"
	"github.com/noah-isme/learnhub-api/pkg/paystack"
)

// BlobStorage persists binary artifacts and returns a retrievable URL.
type BlobStorage interface {
	Store(ctx context.Context, objectPath string, data []byte, contentType string) (string, error)
}

// Mailer delivers plain-text mail. Delivery is best-effort.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// PaymentVerifier confirms a payment reference with the gateway.
type PaymentVerifier interface {
	Verify(ctx context.Context, reference string) (paystack.Verification, error)
}

// EventPublisher fans out domain events.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload interface{}) error
}

// CertificateRenderer produces the certificate artifact.
type CertificateRenderer interface {
	Render(ctx context.Context, data certificate.Data) ([]byte, error)
}

func publishEvent(ctx context.Context, publisher EventPublisher, logger zerolog.Logger, eventType string, payload interface{}) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, eventType, payload); err != nil {
		logger.Warn().Err(err).Str("event", eventType).Msg("failed to publish event")
	}
}
