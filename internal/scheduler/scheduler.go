// Package scheduler runs the periodic certificate issuance sweep.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/noah-isme/learnhub-api/internal/dto"
)

// Sweeper issues certificates for completed enrollments that lack one.
type Sweeper interface {
	SweepCompleted(ctx context.Context, issuerID string) (dto.CertificateSweepResult, error)
}

// CertificateScheduler triggers Sweeper on a cron schedule. Overlapping runs
// are skipped.
type CertificateScheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	issuer  string
	timeout time.Duration
	logger  zerolog.Logger
	running sync.Mutex
}

// NewCertificateScheduler validates schedule (standard five-field cron syntax or
// descriptors like "@hourly") and registers the sweep.
func NewCertificateScheduler(schedule string, sweeper Sweeper, issuer string, timeout time.Duration, logger zerolog.Logger) (*CertificateScheduler, error) {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	if issuer == "" {
		issuer = "system"
	}

	s := &CertificateScheduler{
		cron:    cron.New(cron.WithLocation(time.UTC)),
		sweeper: sweeper,
		issuer:  issuer,
		timeout: timeout,
		logger:  logger.With().Str("component", "certificate_scheduler").Logger(),
	}

	if _, err := s.cron.AddFunc(schedule, func() { s.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start begins scheduling in the background.
func (s *CertificateScheduler) Start() {
	s.cron.Start()
	s.logger.Info().Msg("certificate sweep scheduler started")
}

// Stop halts scheduling and waits for a running sweep to finish or ctx to expire.
func (s *CertificateScheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn().Msg("certificate sweep still running at shutdown")
	}
}

// RunOnce performs one sweep. It returns false when another sweep is still running.
func (s *CertificateScheduler) RunOnce(ctx context.Context) bool {
	if !s.running.TryLock() {
		s.logger.Debug().Msg("previous certificate sweep still running, skipping")
		return false
	}
	defer s.running.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	summary, err := s.sweeper.SweepCompleted(ctx, s.issuer)
	if err != nil {
		s.logger.Error().Err(err).Msg("certificate sweep failed")
		return true
	}

	s.logger.Info().
		Int("courses", summary.Courses).
		Int("issued", summary.Issued).
		Int("failed", summary.Failed).
		Dur("duration", time.Since(start)).
		Msg("certificate sweep completed")
	return true
}
