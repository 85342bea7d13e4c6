// Package events fans domain events out to NATS subjects and Redis channels.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Event types emitted by the course core.
const (
	TypeEnrollmentCreated = "enrollment.created"
	TypeCourseCompleted   = "course.completed"
	TypeCertificateIssued = "certificate.issued"
)

// Event is the envelope written to every transport.
type Event struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	Source     string      `json:"source"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    interface{} `json:"payload"`
}

// Publisher writes events to whichever transports are configured. With no
// transports it only logs at debug level.
type Publisher struct {
	nats          *nats.Conn
	subjectPrefix string
	redis         *redis.Client
	channelPrefix string
	nodeID        string
	logger        zerolog.Logger
	now           func() time.Time
}

// NewPublisher builds a publisher. channelBase such as "learnhub:events"
// becomes the Redis channel prefix and, with dots, the NATS subject prefix.
func NewPublisher(natsConn *nats.Conn, redisClient *redis.Client, channelBase string, logger zerolog.Logger) *Publisher {
	base := strings.TrimSpace(channelBase)
	if base == "" {
		base = "learnhub:events"
	}
	return &Publisher{
		nats:          natsConn,
		subjectPrefix: strings.ReplaceAll(base, ":", "."),
		redis:         redisClient,
		channelPrefix: base,
		nodeID:        uuid.NewString(),
		logger:        logger.With().Str("component", "event_publisher").Logger(),
		now:           time.Now,
	}
}

// Subject returns the NATS subject used for eventType.
func (p *Publisher) Subject(eventType string) string {
	return p.subjectPrefix + "." + eventType
}

// Channel returns the Redis channel used for eventType.
func (p *Publisher) Channel(eventType string) string {
	return p.channelPrefix + ":" + eventType
}

// Publish serialises the event and sends it to every transport, returning
// the joined transport errors.
func (p *Publisher) Publish(ctx context.Context, eventType string, payload interface{}) error {
	event := Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Source:     p.nodeID,
		OccurredAt: p.now().UTC(),
		Payload:    payload,
	}

	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	var errs []error
	if p.nats != nil {
		if err := p.nats.Publish(p.Subject(eventType), body); err != nil {
			errs = append(errs, err)
		}
	}
	if p.redis != nil {
		if err := p.redis.Publish(ctx, p.Channel(eventType), body).Err(); err != nil {
			errs = append(errs, err)
		}
	}

	if p.nats == nil && p.redis == nil {
		p.logger.Debug().Str("type", eventType).Msg("event dropped, no transport configured")
	}

	return errors.Join(errs...)
}
