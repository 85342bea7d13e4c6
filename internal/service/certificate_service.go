package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/noah-isme/learnhub-api/internal/certificate"
	"github.com/noah-isme/learnhub-api/internal/dto"
	"github.com/noah-isme/learnhub-api/internal/events"
	"github.com/noah-isme/learnhub-api/internal/models"
	"github.com/noah-isme/learnhub-api/internal/observability"
	"github.com/noah-isme/learnhub-api/internal/repository"
)

// Per-item issuance messages.
const (
	MsgCertificateIssued     = "Certificate Generated Successfully"
	MsgStudentNotFound       = "User not found"
	MsgProgressNotFound      = "Progress not found for student."
	MsgCertificateDuplicate  = "Certificate has already been generated for this course."
	MsgCourseIncomplete      = "Course not yet completed."
	MsgIssuanceInProgress    = "Certificate issuance already in progress"
	MsgStorageTimedOut       = "Certificate storage timed out, please retry"
	msgGenerationErrorPrefix = "Error generating certificate: "
)

// Certificate delivery mail.
const (
	CertificateMailSubject = "Your Course Completion Certificate"
	certificateMailBody    = "Congratulations! You've successfully completed the course. You can download your certificate here: %s"
)

// CertificateService issues, delivers and verifies course certificates.
type CertificateService interface {
	IssueCertificates(ctx context.Context, req dto.IssueCertificatesRequest) ([]dto.CertificateIssueResult, error)
	ResendCertificate(ctx context.Context, req dto.ResendCertificateRequest) (dto.ResendCertificateResponse, error)
	ListAllCertificates(ctx context.Context) ([]dto.CertificateListItem, error)
	VerifyCertificate(ctx context.Context, code string) (dto.CertificateVerificationResponse, error)
	SweepCompleted(ctx context.Context, issuerID string) (dto.CertificateSweepResult, error)
}

// CertificateDependencies groups the collaborators of the certificate service.
// Locks, Mailer and Events are optional.
type CertificateDependencies struct {
	Students     repository.StudentRepository
	Courses      repository.CourseRepository
	Enrollments  repository.EnrollmentRepository
	Certificates repository.CertificateRepository
	Renderer     CertificateRenderer
	Storage      BlobStorage
	Mailer       Mailer
	Events       EventPublisher
	Locks        *redis.Client
}

// CertificateConfig tunes batch issuance.
type CertificateConfig struct {
	UploadTimeout  time.Duration
	Concurrency    int
	LockTTL        time.Duration
	SweepBatchSize int
}

type certificateService struct {
	students     repository.StudentRepository
	courses      repository.CourseRepository
	enrollments  repository.EnrollmentRepository
	certificates repository.CertificateRepository
	renderer     CertificateRenderer
	storage      BlobStorage
	mailer       Mailer
	events       EventPublisher
	locks        *redis.Client
	cfg          CertificateConfig
	validator    *validator.Validate
	logger       zerolog.Logger
	now          func() time.Time
	newCode      func() (string, error)
	tracer       trace.Tracer

	inflight    sync.Map
	sweepMu     sync.Mutex
	sweepCursor repository.SweepCursor
}

// NewCertificateService constructs the certificate engine.
func NewCertificateService(deps CertificateDependencies, cfg CertificateConfig, validate *validator.Validate, logger zerolog.Logger) CertificateService {
	if cfg.UploadTimeout <= 0 {
		cfg.UploadTimeout = 30 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 2 * time.Minute
	}
	if cfg.SweepBatchSize <= 0 {
		cfg.SweepBatchSize = 200
	}

	return &certificateService{
		students:     deps.Students,
		courses:      deps.Courses,
		enrollments:  deps.Enrollments,
		certificates: deps.Certificates,
		renderer:     deps.Renderer,
		storage:      deps.Storage,
		mailer:       deps.Mailer,
		events:       deps.Events,
		locks:        deps.Locks,
		cfg:          cfg,
		validator:    validate,
		logger:       logger.With().Str("component", "certificate_service").Logger(),
		now:          time.Now,
		newCode:      certificate.NewVerificationCode,
		tracer:       otel.Tracer("github.com/noah-isme/learnhub-api/internal/service/certificate"),
	}
}

// IssueCertificates runs issuance for every student independently. Only
// store failures abort the call; everything else becomes a per-item result.
func (s *certificateService) IssueCertificates(ctx context.Context, req dto.IssueCertificatesRequest) ([]dto.CertificateIssueResult, error) {
	ctx, span := s.tracer.Start(ctx, "certificate.issue_batch")
	defer span.End()

	req.CourseID = strings.TrimSpace(req.CourseID)
	if err := s.validator.Struct(req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		return nil, err
	}
	span.SetAttributes(
		attribute.String("certificate.course_id", req.CourseID),
		attribute.Int("certificate.batch_size", len(req.StudentIDs)),
	)

	results, err := s.issueBatch(ctx, req.StudentIDs, req.CourseID, strings.TrimSpace(req.UserID))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "issue batch")
		return nil, err
	}
	return results, nil
}

func (s *certificateService) issueBatch(ctx context.Context, studentIDs []string, courseID, issuerID string) ([]dto.CertificateIssueResult, error) {
	course, err := s.courses.GetByID(ctx, courseID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("load course: %w", err)
		}
		course = models.Course{ID: courseID, Title: courseID}
	}

	results := make([]dto.CertificateIssueResult, len(studentIDs))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.cfg.Concurrency)

	// A student repeated in one batch is issued once; later positions echo
	// the first outcome.
	firstSeen := make(map[string]int, len(studentIDs))
	repeats := make(map[int]int)
	for i, studentID := range studentIDs {
		i, studentID := i, strings.TrimSpace(studentID)
		if first, ok := firstSeen[studentID]; ok {
			repeats[i] = first
			continue
		}
		firstSeen[studentID] = i
		group.Go(func() error {
			result, err := s.issueOne(groupCtx, studentID, course, issuerID)
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	for i, first := range repeats {
		results[i] = s.repeated(results[first])
	}
	return results, nil
}

func (s *certificateService) repeated(first dto.CertificateIssueResult) dto.CertificateIssueResult {
	if first.Succeeded() {
		return s.failed(first.StudentID, "duplicate", MsgCertificateDuplicate)
	}
	return first
}

func (s *certificateService) issueOne(ctx context.Context, studentID string, course models.Course, issuerID string) (dto.CertificateIssueResult, error) {
	logger := s.logger.With().Str("student_id", studentID).Str("course_id", course.ID).Logger()

	student, err := s.students.GetByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.failed(studentID, "student_not_found", MsgStudentNotFound), nil
		}
		return dto.CertificateIssueResult{}, fmt.Errorf("load student %s: %w", studentID, err)
	}

	enrollment, err := s.enrollments.GetByStudentAndCourse(ctx, studentID, course.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.failed(studentID, "progress_not_found", MsgProgressNotFound), nil
		}
		return dto.CertificateIssueResult{}, fmt.Errorf("load enrollment %s: %w", studentID, err)
	}

	if _, err := s.certificates.GetByStudentAndCourse(ctx, studentID, course.ID); err == nil {
		return s.failed(studentID, "duplicate", MsgCertificateDuplicate), nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.CertificateIssueResult{}, fmt.Errorf("check certificate %s: %w", studentID, err)
	}

	if enrollment.Progress.Percentage != 100 {
		return s.failed(studentID, "incomplete", MsgCourseIncomplete), nil
	}

	release, acquired := s.acquireLock(ctx, studentID, course.ID)
	if !acquired {
		result := s.failed(studentID, "in_progress", MsgIssuanceInProgress)
		result.Retryable = true
		return result, nil
	}
	defer release()

	// Another replica may have committed while the lock was contended.
	if _, err := s.certificates.GetByStudentAndCourse(ctx, studentID, course.ID); err == nil {
		return s.failed(studentID, "duplicate", MsgCertificateDuplicate), nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.CertificateIssueResult{}, fmt.Errorf("recheck certificate %s: %w", studentID, err)
	}

	certificateID := uuid.NewString()
	issuedAt := s.now().UTC()
	code, err := s.newCode()
	if err != nil {
		return s.failed(studentID, "render_failed", msgGenerationErrorPrefix+err.Error()), nil
	}

	artifact, err := s.renderer.Render(ctx, certificate.Data{
		StudentID:        studentID,
		StudentName:      student.Name,
		CourseID:         course.ID,
		CourseTitle:      course.Title,
		IssueDate:        issuedAt,
		VerificationCode: code,
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to render certificate")
		return s.failed(studentID, "render_failed", msgGenerationErrorPrefix+err.Error()), nil
	}
	if detected := mimetype.Detect(artifact); !detected.Is(certificate.ContentType) {
		logger.Error().Str("detected", detected.String()).Msg("rendered certificate has unexpected type")
		return s.failed(studentID, "render_failed", msgGenerationErrorPrefix+"unexpected artifact type "+detected.String()), nil
	}

	url, err := s.upload(ctx, certificate.ObjectPath(studentID, course.ID, certificateID), artifact)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			logger.Warn().Dur("timeout", s.cfg.UploadTimeout).Msg("certificate upload timed out")
			result := s.failed(studentID, "upload_timeout", MsgStorageTimedOut)
			result.Retryable = true
			return result, nil
		}
		logger.Error().Err(err).Msg("failed to upload certificate")
		return s.failed(studentID, "upload_failed", msgGenerationErrorPrefix+err.Error()), nil
	}

	record := models.Certificate{
		ID:               certificateID,
		StudentID:        studentID,
		CourseID:         course.ID,
		Creator:          issuerID,
		CertificateURL:   url,
		IssueDate:        issuedAt,
		VerificationCode: code,
	}
	if err := s.certificates.CreateIfAbsent(ctx, &record); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return s.failed(studentID, "duplicate", MsgCertificateDuplicate), nil
		}
		return dto.CertificateIssueResult{}, fmt.Errorf("persist certificate %s: %w", studentID, err)
	}

	delivered := s.deliver(ctx, student.Email, url)
	observability.CertificateIssues().WithLabelValues("issued").Inc()
	logger.Info().Str("certificate_id", record.ID).Bool("delivered", delivered).Msg("certificate issued")

	publishEvent(ctx, s.events, s.logger, events.TypeCertificateIssued, map[string]string{
		"certificate_id": record.ID,
		"student_id":     studentID,
		"course_id":      course.ID,
		"issuer_id":      issuerID,
	})

	return dto.CertificateIssueResult{
		StudentID:     studentID,
		Status:        dto.ResultStatusOK,
		Message:       MsgCertificateIssued,
		CertificateID: record.ID,
		Delivered:     &delivered,
	}, nil
}

func (s *certificateService) failed(studentID, outcome, message string) dto.CertificateIssueResult {
	observability.CertificateIssues().WithLabelValues(outcome).Inc()
	return dto.CertificateIssueResult{
		StudentID: studentID,
		Status:    dto.ResultStatusFail,
		Message:   message,
	}
}

func lockKey(studentID, courseID string) string {
	return fmt.Sprintf("certificate:lock:%s:%s", studentID, courseID)
}

// acquireLock takes the issuance lock for a student and course. A process-local
// guard always applies; Redis extends it across replicas. When Redis is
// unreachable, issuance proceeds and relies on the unique index.
func (s *certificateService) acquireLock(ctx context.Context, studentID, courseID string) (func(), bool) {
	noop := func() {}
	key := lockKey(studentID, courseID)
	if _, busy := s.inflight.LoadOrStore(key, struct{}{}); busy {
		return noop, false
	}
	releaseLocal := func() { s.inflight.Delete(key) }
	if s.locks == nil {
		return releaseLocal, true
	}

	ok, err := s.locks.SetNX(ctx, key, 1, s.cfg.LockTTL).Result()
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("issuance lock unavailable")
		return releaseLocal, true
	}
	if !ok {
		releaseLocal()
		return noop, false
	}

	return func() {
		defer releaseLocal()
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := s.locks.Del(releaseCtx, key).Err(); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("failed to release issuance lock")
		}
	}, true
}

func (s *certificateService) upload(ctx context.Context, objectPath string, artifact []byte) (string, error) {
	uploadCtx, cancel := context.WithTimeout(ctx, s.cfg.UploadTimeout)
	defer cancel()

	start := time.Now()
	url, err := s.storage.Store(uploadCtx, objectPath, artifact, certificate.ContentType)
	result := "success"
	if err == nil && strings.TrimSpace(url) == "" {
		err = errors.New("storage returned an empty url")
	}
	if err != nil {
		result = "error"
		if errors.Is(uploadCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			result = "timeout"
			err = fmt.Errorf("store artifact: %w", context.DeadlineExceeded)
		}
	}
	observability.UploadLatency().WithLabelValues(result).Observe(time.Since(start).Seconds())
	return url, err
}

// deliver mails the certificate link. Failures are logged and reported as
// false; the certificate record stays authoritative.
func (s *certificateService) deliver(ctx context.Context, email, url string) bool {
	email = strings.TrimSpace(email)
	if s.mailer == nil || email == "" {
		observability.CertificateDeliveries().WithLabelValues("skipped").Inc()
		return false
	}

	if err := s.mailer.Send(ctx, email, CertificateMailSubject, fmt.Sprintf(certificateMailBody, url)); err != nil {
		observability.CertificateDeliveries().WithLabelValues("failed").Inc()
		s.logger.Warn().Err(err).Msg("certificate delivery failed")
		return false
	}
	observability.CertificateDeliveries().WithLabelValues("sent").Inc()
	return true
}

func (s *certificateService) ResendCertificate(ctx context.Context, req dto.ResendCertificateRequest) (dto.ResendCertificateResponse, error) {
	ctx, span := s.tracer.Start(ctx, "certificate.resend")
	defer span.End()

	req.StudentID = strings.TrimSpace(req.StudentID)
	req.CourseID = strings.TrimSpace(req.CourseID)
	if err := s.validator.Struct(req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		return dto.ResendCertificateResponse{}, err
	}

	student, err := s.students.GetByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ResendCertificateResponse{}, ErrStudentNotFound
		}
		span.RecordError(err)
		return dto.ResendCertificateResponse{}, fmt.Errorf("load student: %w", err)
	}

	record, err := s.certificates.GetByStudentAndCourse(ctx, req.StudentID, req.CourseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ResendCertificateResponse{}, ErrCertificateNotFound
		}
		span.RecordError(err)
		return dto.ResendCertificateResponse{}, fmt.Errorf("load certificate: %w", err)
	}

	delivered := s.deliver(ctx, student.Email, record.CertificateURL)
	s.logger.Info().
		Str("certificate_id", record.ID).
		Str("requested_by", req.UserID).
		Bool("delivered", delivered).
		Msg("certificate resent")

	return dto.ResendCertificateResponse{
		StudentID:      req.StudentID,
		CourseID:       req.CourseID,
		CertificateURL: record.CertificateURL,
		Delivered:      delivered,
	}, nil
}

func (s *certificateService) ListAllCertificates(ctx context.Context) ([]dto.CertificateListItem, error) {
	ctx, span := s.tracer.Start(ctx, "certificate.list")
	defer span.End()

	records, err := s.certificates.List(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("list certificates: %w", err)
	}

	studentIDs := make([]string, 0, len(records))
	courseIDs := make([]string, 0, len(records))
	for _, record := range records {
		studentIDs = append(studentIDs, record.StudentID)
		courseIDs = append(courseIDs, record.CourseID)
	}

	students, err := s.students.GetByIDs(ctx, studentIDs)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("load students: %w", err)
	}
	courses, err := s.courses.GetByIDs(ctx, courseIDs)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("load courses: %w", err)
	}

	items := make([]dto.CertificateListItem, 0, len(records))
	for _, record := range records {
		item := dto.CertificateListItem{CertificateResponse: dto.NewCertificateResponse(record)}
		if course, ok := courses[record.CourseID]; ok {
			item.CourseDetails = dto.CertificateCourseDetails{CourseTitle: course.Title, CourseImage: course.Thumbnail}
		}
		if student, ok := students[record.StudentID]; ok {
			item.StudentDetails = dto.CertificateStudentDetails{StudentName: student.Name, StudentImage: student.Picture}
		}
		items = append(items, item)
	}
	return items, nil
}

// VerifyCertificate resolves a verification code. Codes are advisory, so the
// earliest certificate carrying the code wins.
func (s *certificateService) VerifyCertificate(ctx context.Context, code string) (dto.CertificateVerificationResponse, error) {
	ctx, span := s.tracer.Start(ctx, "certificate.verify")
	defer span.End()

	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != certificate.CodeLength {
		return dto.CertificateVerificationResponse{}, ErrCertificateNotFound
	}

	record, err := s.certificates.GetByVerificationCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.CertificateVerificationResponse{}, ErrCertificateNotFound
		}
		span.RecordError(err)
		return dto.CertificateVerificationResponse{}, fmt.Errorf("lookup certificate: %w", err)
	}

	resp := dto.CertificateVerificationResponse{
		Valid:            true,
		CertificateID:    record.ID,
		StudentID:        record.StudentID,
		CourseID:         record.CourseID,
		IssueDate:        record.IssueDate,
		VerificationCode: record.VerificationCode,
	}
	if student, err := s.students.GetByID(ctx, record.StudentID); err == nil {
		resp.StudentName = student.Name
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.CertificateVerificationResponse{}, fmt.Errorf("load student: %w", err)
	}
	if course, err := s.courses.GetByID(ctx, record.CourseID); err == nil {
		resp.CourseTitle = course.Title
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.CertificateVerificationResponse{}, fmt.Errorf("load course: %w", err)
	}
	return resp, nil
}

// SweepCompleted issues certificates for completed enrollments that have
// none yet, one batch per course.
func (s *certificateService) SweepCompleted(ctx context.Context, issuerID string) (dto.CertificateSweepResult, error) {
	ctx, span := s.tracer.Start(ctx, "certificate.sweep")
	defer span.End()

	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()

	pending, err := s.enrollments.ListCompletedWithoutCertificate(ctx, s.sweepCursor, s.cfg.SweepBatchSize)
	if err != nil {
		span.RecordError(err)
		observability.ScheduledSweeps().WithLabelValues("error").Inc()
		return dto.CertificateSweepResult{}, fmt.Errorf("list pending enrollments: %w", err)
	}

	// Rows that keep failing stay pending, so the cursor moves past each full
	// page and wraps once the tail is reached.
	if len(pending) >= s.cfg.SweepBatchSize {
		last := pending[len(pending)-1]
		s.sweepCursor = repository.SweepCursor{CourseID: last.CourseID, EnrollmentID: last.ID}
	} else {
		s.sweepCursor = repository.SweepCursor{}
	}

	order := make([]string, 0)
	byCourse := make(map[string][]string)
	for _, enrollment := range pending {
		if _, ok := byCourse[enrollment.CourseID]; !ok {
			order = append(order, enrollment.CourseID)
		}
		byCourse[enrollment.CourseID] = append(byCourse[enrollment.CourseID], enrollment.StudentID)
	}

	var summary dto.CertificateSweepResult
	for _, courseID := range order {
		results, err := s.issueBatch(ctx, byCourse[courseID], courseID, issuerID)
		if err != nil {
			span.RecordError(err)
			observability.ScheduledSweeps().WithLabelValues("error").Inc()
			return summary, err
		}
		summary.Courses++
		for _, result := range results {
			if result.Succeeded() {
				summary.Issued++
			} else {
				summary.Failed++
			}
		}
	}

	observability.ScheduledSweeps().WithLabelValues("success").Inc()
	span.SetAttributes(attribute.Int("certificate.sweep.issued", summary.Issued))
	return summary, nil
}
