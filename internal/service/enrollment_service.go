package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
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

// EnrollmentService manages course enrollments.
type EnrollmentService interface {
	Enroll(ctx context.Context, req dto.EnrollRequest) (dto.EnrollmentResponse, error)
	ListEnrollments(ctx context.Context, studentID string) ([]dto.EnrollmentResponse, error)
	ListEnrolledStudents(ctx context.Context, courseID string) ([]dto.EnrollmentResponse, error)
	ListCoursesWithProgress(ctx context.Context, studentID string) ([]dto.CourseProgressResponse, error)
	EnrollFromPayment(ctx context.Context, reference string) (dto.PaymentEnrollmentResponse, error)
}

type enrollmentService struct {
	enrollments repository.EnrollmentRepository
	courses     repository.CourseRepository
	payments    PaymentVerifier
	events      EventPublisher
	validator   *validator.Validate
	logger      zerolog.Logger
	now         func() time.Time
	tracer      trace.Tracer
}

// NewEnrollmentService constructs the enrollment service. payments and
// publisher may be nil.
func NewEnrollmentService(enrollments repository.EnrollmentRepository, courses repository.CourseRepository, payments PaymentVerifier, publisher EventPublisher, validate *validator.Validate, logger zerolog.Logger) EnrollmentService {
	return &enrollmentService{
		enrollments: enrollments,
		courses:     courses,
		payments:    payments,
		events:      publisher,
		validator:   validate,
		logger:      logger.With().Str("component", "enrollment_service").Logger(),
		now:         time.Now,
		tracer:      otel.Tracer("github.com/noah-isme/learnhub-api/internal/service/enrollment"),
	}
}

func (s *enrollmentService) Enroll(ctx context.Context, req dto.EnrollRequest) (dto.EnrollmentResponse, error) {
	ctx, span := s.tracer.Start(ctx, "enrollment.enroll")
	defer span.End()

	req.StudentID = strings.TrimSpace(req.StudentID)
	req.CourseID = strings.TrimSpace(req.CourseID)
	if err := s.validator.Struct(req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		return dto.EnrollmentResponse{}, err
	}
	span.SetAttributes(
		attribute.String("enrollment.student_id", req.StudentID),
		attribute.String("enrollment.course_id", req.CourseID),
	)

	enrollment, err := s.enroll(ctx, req.StudentID, req.CourseID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "enroll failed")
		return dto.EnrollmentResponse{}, err
	}

	return dto.NewEnrollmentResponse(enrollment), nil
}

func (s *enrollmentService) enroll(ctx context.Context, studentID, courseID string) (models.Enrollment, error) {
	course, err := s.courses.GetByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.Enrollments().WithLabelValues("course_not_found").Inc()
			return models.Enrollment{}, ErrCourseNotFound
		}
		return models.Enrollment{}, fmt.Errorf("load course: %w", err)
	}

	now := s.now().UTC()
	enrollment := models.Enrollment{
		ID:             uuid.NewString(),
		StudentID:      studentID,
		CourseID:       course.ID,
		ProgramID:      course.ProgramID,
		EnrollmentDate: now,
		Status:         models.EnrollmentStatusActive,
		Progress: models.Progress{
			TotalLessons:     course.LessonCount(),
			TotalQuizzes:     course.QuizCount(),
			TotalAssignments: course.AssignmentCount(),
		},
		DateUpdated: now,
	}

	if err := s.enrollments.CreateIfAbsent(ctx, &enrollment); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			observability.Enrollments().WithLabelValues("duplicate").Inc()
			return models.Enrollment{}, ErrAlreadyEnrolled
		}
		return models.Enrollment{}, fmt.Errorf("create enrollment: %w", err)
	}

	observability.Enrollments().WithLabelValues("created").Inc()
	s.logger.Info().
		Str("student_id", studentID).
		Str("course_id", course.ID).
		Int("total_items", enrollment.Progress.Total()).
		Msg("student enrolled")

	publishEvent(ctx, s.events, s.logger, events.TypeEnrollmentCreated, map[string]string{
		"enrollment_id": enrollment.ID,
		"student_id":    studentID,
		"course_id":     course.ID,
		"program_id":    course.ProgramID,
	})

	return enrollment, nil
}

func (s *enrollmentService) ListEnrollments(ctx context.Context, studentID string) ([]dto.EnrollmentResponse, error) {
	ctx, span := s.tracer.Start(ctx, "enrollment.list_by_student")
	defer span.End()

	enrollments, err := s.enrollments.ListByStudent(ctx, strings.TrimSpace(studentID))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	return dto.NewEnrollmentResponseSlice(enrollments), nil
}

func (s *enrollmentService) ListEnrolledStudents(ctx context.Context, courseID string) ([]dto.EnrollmentResponse, error) {
	ctx, span := s.tracer.Start(ctx, "enrollment.list_by_course")
	defer span.End()

	enrollments, err := s.enrollments.ListByCourse(ctx, strings.TrimSpace(courseID))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("list enrolled students: %w", err)
	}
	return dto.NewEnrollmentResponseSlice(enrollments), nil
}

// ListCoursesWithProgress joins the student's enrollments with course
// display data. Enrollments whose course vanished are skipped.
func (s *enrollmentService) ListCoursesWithProgress(ctx context.Context, studentID string) ([]dto.CourseProgressResponse, error) {
	ctx, span := s.tracer.Start(ctx, "enrollment.list_courses_with_progress")
	defer span.End()

	enrollments, err := s.enrollments.ListByStudent(ctx, strings.TrimSpace(studentID))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("list enrollments: %w", err)
	}

	courseIDs := make([]string, 0, len(enrollments))
	for _, enrollment := range enrollments {
		courseIDs = append(courseIDs, enrollment.CourseID)
	}
	courses, err := s.courses.GetByIDs(ctx, courseIDs)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("load courses: %w", err)
	}

	out := make([]dto.CourseProgressResponse, 0, len(enrollments))
	for _, enrollment := range enrollments {
		course, ok := courses[enrollment.CourseID]
		if !ok {
			s.logger.Debug().Str("course_id", enrollment.CourseID).Msg("skipping enrollment for missing course")
			continue
		}
		out = append(out, dto.CourseProgressResponse{
			EnrollmentResponse: dto.NewEnrollmentResponse(enrollment),
			CourseTitle:        course.Title,
			CourseThumbnail:    course.Thumbnail,
		})
	}
	return out, nil
}

// EnrollFromPayment verifies the payment reference and enrolls the paying
// student in every purchased course. Replaying a reference is harmless:
// existing enrollments are reported under AlreadyEnrolled.
func (s *enrollmentService) EnrollFromPayment(ctx context.Context, reference string) (dto.PaymentEnrollmentResponse, error) {
	ctx, span := s.tracer.Start(ctx, "enrollment.enroll_from_payment")
	defer span.End()

	if s.payments == nil {
		return dto.PaymentEnrollmentResponse{}, ErrPaymentUnavailable
	}

	reference = strings.TrimSpace(reference)
	span.SetAttributes(attribute.String("payment.reference", reference))

	verification, err := s.payments.Verify(ctx, reference)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "verify payment")
		return dto.PaymentEnrollmentResponse{}, fmt.Errorf("verify payment: %w", err)
	}
	if !verification.Succeeded {
		return dto.PaymentEnrollmentResponse{}, ErrPaymentNotVerified
	}

	studentID := strings.TrimSpace(verification.StudentID)
	if studentID == "" {
		s.logger.Warn().Str("reference", reference).Msg("verified payment carries no student id")
		return dto.PaymentEnrollmentResponse{}, fmt.Errorf("%w: missing student metadata", ErrPaymentNotVerified)
	}

	resp := dto.PaymentEnrollmentResponse{
		Reference:       reference,
		StudentID:       studentID,
		Enrolled:        []string{},
		AlreadyEnrolled: []string{},
		Skipped:         []string{},
	}

	seen := make(map[string]struct{}, len(verification.CourseIDs))
	for _, courseID := range verification.CourseIDs {
		courseID = strings.TrimSpace(courseID)
		if courseID == "" {
			continue
		}
		if _, dup := seen[courseID]; dup {
			continue
		}
		seen[courseID] = struct{}{}

		_, err := s.enroll(ctx, studentID, courseID)
		switch {
		case err == nil:
			resp.Enrolled = append(resp.Enrolled, courseID)
		case errors.Is(err, ErrAlreadyEnrolled):
			resp.AlreadyEnrolled = append(resp.AlreadyEnrolled, courseID)
		case errors.Is(err, ErrCourseNotFound):
			s.logger.Warn().Str("reference", reference).Str("course_id", courseID).Msg("purchased course does not exist")
			resp.Skipped = append(resp.Skipped, courseID)
		default:
			span.RecordError(err)
			span.SetStatus(codes.Error, "enroll from payment")
			return dto.PaymentEnrollmentResponse{}, err
		}
	}

	return resp, nil
}
