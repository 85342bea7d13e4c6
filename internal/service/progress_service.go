package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/learnhub-api/internal/dto"
	"github.com/noah-isme/learnhub-api/internal/events"
	"github.com/noah-isme/learnhub-api/internal/models"
	"github.com/noah-isme/learnhub-api/internal/observability"
	"github.com/noah-isme/learnhub-api/internal/repository"
)

// ProgressService tracks learner progress through enrolled courses.
type ProgressService interface {
	UpdateProgress(ctx context.Context, req dto.UpdateProgressRequest) (dto.UpdateProgressResponse, error)
	GetProgress(ctx context.Context, studentID, courseID string) (dto.EnrollmentResponse, error)
}

// maxProgressAttempts bounds the read-merge-write retries on a stale enrollment.
const maxProgressAttempts = 3

type progressService struct {
	enrollments repository.EnrollmentRepository
	events      EventPublisher
	validator   *validator.Validate
	logger      zerolog.Logger
	now         func() time.Time
	tracer      trace.Tracer
}

// NewProgressService constructs the progress tracker.
func NewProgressService(enrollments repository.EnrollmentRepository, publisher EventPublisher, validate *validator.Validate, logger zerolog.Logger) ProgressService {
	return &progressService{
		enrollments: enrollments,
		events:      publisher,
		validator:   validate,
		logger:      logger.With().Str("component", "progress_service").Logger(),
		now:         time.Now,
		tracer:      otel.Tracer("github.com/noah-isme/learnhub-api/internal/service/progress"),
	}
}

func (s *progressService) UpdateProgress(ctx context.Context, req dto.UpdateProgressRequest) (dto.UpdateProgressResponse, error) {
	ctx, span := s.tracer.Start(ctx, "progress.update")
	defer span.End()

	req.StudentID = strings.TrimSpace(req.StudentID)
	req.CourseID = strings.TrimSpace(req.CourseID)
	if err := s.validator.Struct(req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		return dto.UpdateProgressResponse{}, err
	}
	span.SetAttributes(
		attribute.String("progress.student_id", req.StudentID),
		attribute.String("progress.course_id", req.CourseID),
	)

	var (
		enrollment models.Enrollment
		progress   models.Progress
		status     string
		updatedAt  time.Time
	)
	for attempt := 1; ; attempt++ {
		var err error
		enrollment, progress, err = s.mergeProgress(ctx, req)
		if err != nil {
			if !errors.Is(err, ErrEnrollmentNotFound) && !errors.Is(err, ErrProgressOutOfRange) {
				span.RecordError(err)
			}
			return dto.UpdateProgressResponse{}, err
		}
		status = progress.Status()
		updatedAt = s.now().UTC()

		err = s.enrollments.UpdateProgress(ctx, enrollment.ID, enrollment.Version, progress, status, updatedAt)
		if err == nil {
			break
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.UpdateProgressResponse{}, ErrEnrollmentNotFound
		}
		if errors.Is(err, repository.ErrStale) && attempt < maxProgressAttempts {
			s.logger.Debug().Str("enrollment_id", enrollment.ID).Int("attempt", attempt).Msg("progress changed concurrently, retrying")
			continue
		}
		if errors.Is(err, repository.ErrStale) {
			err = ErrProgressConflict
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist progress")
		return dto.UpdateProgressResponse{}, fmt.Errorf("update progress: %w", err)
	}

	observability.ProgressUpdates().WithLabelValues(status).Inc()
	span.SetAttributes(attribute.Int("progress.percentage", progress.Percentage))

	if enrollment.Status != models.EnrollmentStatusCompleted && status == models.EnrollmentStatusCompleted {
		s.logger.Info().
			Str("student_id", req.StudentID).
			Str("course_id", req.CourseID).
			Msg("course completed")
		publishEvent(ctx, s.events, s.logger, events.TypeCourseCompleted, map[string]string{
			"enrollment_id": enrollment.ID,
			"student_id":    req.StudentID,
			"course_id":     req.CourseID,
		})
	}

	return dto.UpdateProgressResponse{
		StudentID:   req.StudentID,
		CourseID:    req.CourseID,
		Status:      status,
		Progress:    dto.NewProgressResponse(progress),
		DateUpdated: updatedAt,
	}, nil
}

func (s *progressService) GetProgress(ctx context.Context, studentID, courseID string) (dto.EnrollmentResponse, error) {
	ctx, span := s.tracer.Start(ctx, "progress.get")
	defer span.End()

	enrollment, err := s.enrollments.GetByStudentAndCourse(ctx, strings.TrimSpace(studentID), strings.TrimSpace(courseID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.EnrollmentResponse{}, ErrEnrollmentNotFound
		}
		span.RecordError(err)
		return dto.EnrollmentResponse{}, fmt.Errorf("load enrollment: %w", err)
	}
	return dto.NewEnrollmentResponse(enrollment), nil
}

// mergeProgress reads the enrollment and applies the request's counters on top
// of the stored ones.
func (s *progressService) mergeProgress(ctx context.Context, req dto.UpdateProgressRequest) (models.Enrollment, models.Progress, error) {
	enrollment, err := s.enrollments.GetByStudentAndCourse(ctx, req.StudentID, req.CourseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Enrollment{}, models.Progress{}, ErrEnrollmentNotFound
		}
		return models.Enrollment{}, models.Progress{}, fmt.Errorf("load enrollment: %w", err)
	}

	progress := enrollment.Progress
	if err := mergeCounter(&progress.LessonsCompleted, req.LessonsCompleted, progress.TotalLessons, "lessons_completed"); err != nil {
		return models.Enrollment{}, models.Progress{}, err
	}
	if err := mergeCounter(&progress.QuizzesCompleted, req.QuizzesCompleted, progress.TotalQuizzes, "quizzes_completed"); err != nil {
		return models.Enrollment{}, models.Progress{}, err
	}
	if err := mergeCounter(&progress.AssignmentsCompleted, req.AssignmentsCompleted, progress.TotalAssignments, "assignments_completed"); err != nil {
		return models.Enrollment{}, models.Progress{}, err
	}
	progress.Recalculate()
	return enrollment, progress, nil
}

// mergeCounter applies an explicitly present value. Absent values leave the
// stored counter untouched.
func mergeCounter(target *int, value *int, total int, field string) error {
	if value == nil {
		return nil
	}
	if *value < 0 || *value > total {
		return fmt.Errorf("%w: %s must be between 0 and %d", ErrProgressOutOfRange, field, total)
	}
	*target = *value
	return nil
}
