package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/learnhub-api/internal/certificate"
	"github.com/noah-isme/learnhub-api/internal/dto"
	"github.com/noah-isme/learnhub-api/internal/events"
	"github.com/noah-isme/learnhub-api/internal/models"
	"github.com/noah-isme/learnhub-api/internal/repository"
)

type certificateFixture struct {
	svc       CertificateService
	db        *gorm.DB
	storage   *stubStorage
	mailer    *stubMailer
	publisher *recordingPublisher
}

func newCertificateFixture(t *testing.T, deps CertificateDependencies, cfg CertificateConfig) certificateFixture {
	t.Helper()
	db := setupServiceDB(t)

	storage := &stubStorage{}
	if s, ok := deps.Storage.(*stubStorage); ok {
		storage = s
	}
	mailer := &stubMailer{}
	if m, ok := deps.Mailer.(*stubMailer); ok {
		mailer = m
	}
	publisher := &recordingPublisher{}

	deps.Students = repository.NewStudentRepository(db)
	deps.Courses = repository.NewCourseRepository(db)
	deps.Enrollments = repository.NewEnrollmentRepository(db)
	deps.Certificates = repository.NewCertificateRepository(db)
	if deps.Renderer == nil {
		deps.Renderer = certificate.NewPDFRenderer("Learnhub")
	}
	deps.Storage = storage
	deps.Mailer = mailer
	deps.Events = publisher

	return certificateFixture{
		svc:       NewCertificateService(deps, cfg, validator.New(), testLogger()),
		db:        db,
		storage:   storage,
		mailer:    mailer,
		publisher: publisher,
	}
}

func (f certificateFixture) certificateCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Model(&models.Certificate{}).Count(&count).Error)
	return count
}

func TestCertificateServiceIssueReportsEachStudentInOrder(t *testing.T) {
	f := newCertificateFixture(t, CertificateDependencies{}, CertificateConfig{Concurrency: 3})
	seedCourse(t, f.db, "C1", 1, 0, 0)
	seedStudent(t, f.db, "S1", "s1@example.com")
	seedStudent(t, f.db, "S2", "s2@example.com")
	seedStudent(t, f.db, "S3", "s3@example.com")
	seedStudent(t, f.db, "S5", "s5@example.com")
	seedEnrollment(t, f.db, "S1", "C1", 100)
	seedEnrollment(t, f.db, "S2", "C1", 50)
	seedEnrollment(t, f.db, "S5", "C1", 100)
	require.NoError(t, f.db.Create(&models.Certificate{ID: "existing", StudentID: "S5", CourseID: "C1", IssueDate: time.Now()}).Error)

	results, err := f.svc.IssueCertificates(context.Background(), dto.IssueCertificatesRequest{
		StudentIDs: []string{"S4", "S3", "S2", "S1", "S5"},
		CourseID:   "C1",
		UserID:     "admin-1",
	})
	require.NoError(t, err)
	require.Len(t, results, 5)

	expected := []struct {
		student string
		message string
	}{
		{"S4", MsgStudentNotFound},
		{"S3", MsgProgressNotFound},
		{"S2", MsgCourseIncomplete},
		{"S1", MsgCertificateIssued},
		{"S5", MsgCertificateDuplicate},
	}
	for i, want := range expected {
		require.Equal(t, want.student, results[i].StudentID)
		require.Equal(t, want.message, results[i].Message)
	}

	issued := results[3]
	require.Equal(t, dto.ResultStatusOK, issued.Status)
	require.NotEmpty(t, issued.CertificateID)
	require.NotNil(t, issued.Delivered)
	require.True(t, *issued.Delivered)
	for _, failed := range []dto.CertificateIssueResult{results[0], results[1], results[2], results[4]} {
		require.Equal(t, dto.ResultStatusFail, failed.Status)
		require.Empty(t, failed.CertificateID)
	}

	var stored models.Certificate
	require.NoError(t, f.db.First(&stored, "id = ?", issued.CertificateID).Error)
	require.Equal(t, "admin-1", stored.Creator)
	require.Equal(t, "https://files.example.com/certificate/S1_C1_"+stored.ID+".pdf", stored.CertificateURL)
	require.Regexp(t, `^[0-9A-Z]{9}$`, stored.VerificationCode)

	mails := f.mailer.messages()
	require.Len(t, mails, 1)
	require.Equal(t, "s1@example.com", mails[0].To)
	require.Equal(t, CertificateMailSubject, mails[0].Subject)
	require.Contains(t, mails[0].Body, stored.CertificateURL)
	require.Equal(t, 1, f.publisher.count(events.TypeCertificateIssued))
}

func TestCertificateServiceIssueIsAtMostOnce(t *testing.T) {
	f := newCertificateFixture(t, CertificateDependencies{}, CertificateConfig{})
	seedCourse(t, f.db, "C1", 1, 0, 0)
	seedStudent(t, f.db, "S1", "s1@example.com")
	seedEnrollment(t, f.db, "S1", "C1", 100)

	req := dto.IssueCertificatesRequest{StudentIDs: []string{"S1"}, CourseID: "C1", UserID: "admin"}
	first, err := f.svc.IssueCertificates(context.Background(), req)
	require.NoError(t, err)
	require.True(t, first[0].Succeeded())

	second, err := f.svc.IssueCertificates(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, MsgCertificateDuplicate, second[0].Message)
	require.Equal(t, int64(1), f.certificateCount(t))
	require.Equal(t, 1, f.storage.calls())
}

func TestCertificateServiceDuplicateIDsInOneBatchIssueOnce(t *testing.T) {
	f := newCertificateFixture(t, CertificateDependencies{Renderer: codeRenderer{}}, CertificateConfig{Concurrency: 4})
	seedCourse(t, f.db, "C1", 1, 0, 0)
	seedStudent(t, f.db, "S1", "s1@example.com")
	seedEnrollment(t, f.db, "S1", "C1", 100)

	results, err := f.svc.IssueCertificates(context.Background(), dto.IssueCertificatesRequest{StudentIDs: []string{"S1", "S1", "S1"}, CourseID: "C1"})
	require.NoError(t, err)
	require.Len(t, results, 3)

	succeeded := 0
	for _, result := range results {
		if result.Succeeded() {
			succeeded++
		}
	}
	require.Equal(t, 1, succeeded)
	require.Equal(t, int64(1), f.certificateCount(t))

	var stored models.Certificate
	require.NoError(t, f.db.First(&stored, "student_id = ? AND course_id = ?", "S1", "C1").Error)
	require.Equal(t, 1, f.storage.calls())
	require.Equal(t, certificate.ObjectPath("S1", "C1", stored.ID), f.storage.paths[0])
	require.Contains(t, string(f.storage.blobs[0]), stored.VerificationCode)
	require.Equal(t, "https://files.example.com/"+f.storage.paths[0], stored.CertificateURL)
}

// racingCertificates commits a competing certificate right after the first
// existence check, as another replica would between the check and the lock.
type racingCertificates struct {
	repository.CertificateRepository
	db    *gorm.DB
	once  sync.Once
	reads int
}

func (r *racingCertificates) GetByStudentAndCourse(ctx context.Context, studentID, courseID string) (models.Certificate, error) {
	raced := false
	r.once.Do(func() {
		raced = true
		r.db.Create(&models.Certificate{
			ID:               "winner",
			StudentID:        studentID,
			CourseID:         courseID,
			CertificateURL:   "https://files.example.com/winner.pdf",
			VerificationCode: "WINNER123",
			IssueDate:        time.Now(),
		})
	})
	r.reads++
	if raced {
		return models.Certificate{}, gorm.ErrRecordNotFound
	}
	return r.CertificateRepository.GetByStudentAndCourse(ctx, studentID, courseID)
}

func TestCertificateServiceConcurrentWinnerKeepsItsArtifact(t *testing.T) {
	f := newCertificateFixture(t, CertificateDependencies{}, CertificateConfig{})
	seedCourse(t, f.db, "C1", 1, 0, 0)
	seedStudent(t, f.db, "S1", "s1@example.com")
	seedEnrollment(t, f.db, "S1", "C1", 100)

	racing := &racingCertificates{CertificateRepository: repository.NewCertificateRepository(f.db), db: f.db}
	svc := NewCertificateService(CertificateDependencies{
		Students:     repository.NewStudentRepository(f.db),
		Courses:      repository.NewCourseRepository(f.db),
		Enrollments:  repository.NewEnrollmentRepository(f.db),
		Certificates: racing,
		Renderer:     codeRenderer{},
		Storage:      f.storage,
		Mailer:       f.mailer,
		Events:       f.publisher,
	}, CertificateConfig{}, validator.New(), testLogger())

	results, err := svc.IssueCertificates(context.Background(), dto.IssueCertificatesRequest{StudentIDs: []string{"S1"}, CourseID: "C1", UserID: "admin-1"})
	require.NoError(t, err)
	require.Equal(t, MsgCertificateDuplicate, results[0].Message)
	require.Equal(t, 2, racing.reads)
	require.Zero(t, f.storage.calls())
	require.Empty(t, f.mailer.messages())

	var stored models.Certificate
	require.NoError(t, f.db.First(&stored, "student_id = ? AND course_id = ?", "S1", "C1").Error)
	require.Equal(t, "winner", stored.ID)
	require.Equal(t, "WINNER123", stored.VerificationCode)
	require.Equal(t, "https://files.example.com/winner.pdf", stored.CertificateURL)
	require.Equal(t, int64(1), f.certificateCount(t))
}

func TestCertificateServiceDeliveryFailureKeepsCertificate(t *testing.T) {
	f := newCertificateFixture(t, CertificateDependencies{Mailer: &stubMailer{err: errors.New("smtp down")}}, CertificateConfig{})
	seedCourse(t, f.db, "C1", 1, 0, 0)
	seedStudent(t, f.db, "S1", "s1@example.com")
	seedEnrollment(t, f.db, "S1", "C1", 100)

	results, err := f.svc.IssueCertificates(context.Background(), dto.IssueCertificatesRequest{StudentIDs: []string{"S1"}, CourseID: "C1"})
	require.NoError(t, err)
	require.True(t, results[0].Succeeded())
	require.NotNil(t, results[0].Delivered)
	require.False(t, *results[0].Delivered)
	require.Equal(t, int64(1), f.certificateCount(t))
}

func TestCertificateServiceUploadTimeoutIsRetryable(t *testing.T) {
	f := newCertificateFixture(t, CertificateDependencies{Storage: &stubStorage{delay: time.Second}}, CertificateConfig{UploadTimeout: 20 * time.Millisecond})
	seedCourse(t, f.db, "C1", 1, 0, 0)
	seedStudent(t, f.db, "S1", "s1@example.com")
	seedEnrollment(t, f.db, "S1", "C1", 100)

	results, err := f.svc.IssueCertificates(context.Background(), dto.IssueCertificatesRequest{StudentIDs: []string{"S1"}, CourseID: "C1"})
	require.NoError(t, err)
	require.Equal(t, MsgStorageTimedOut, results[0].Message)
	require.True(t, results[0].Retryable)
	require.Zero(t, f.certificateCount(t))
}

func TestCertificateServiceUploadAndRenderErrors(t *testing.T) {
	f := newCertificateFixture(t, CertificateDependencies{Storage: &stubStorage{err: errors.New("quota exceeded")}}, CertificateConfig{})
	seedCourse(t, f.db, "C1", 1, 0, 0)
	seedStudent(t, f.db, "S1", "s1@example.com")
	seedEnrollment(t, f.db, "S1", "C1", 100)

	results, err := f.svc.IssueCertificates(context.Background(), dto.IssueCertificatesRequest{StudentIDs: []string{"S1"}, CourseID: "C1"})
	require.NoError(t, err)
	require.Equal(t, "Error generating certificate: quota exceeded", results[0].Message)
	require.False(t, results[0].Retryable)

	f = newCertificateFixture(t, CertificateDependencies{Renderer: failingRenderer{}}, CertificateConfig{})
	seedCourse(t, f.db, "C1", 1, 0, 0)
	seedStudent(t, f.db, "S1", "s1@example.com")
	seedEnrollment(t, f.db, "S1", "C1", 100)

	results, err = f.svc.IssueCertificates(context.Background(), dto.IssueCertificatesRequest{StudentIDs: []string{"S1"}, CourseID: "C1"})
	require.NoError(t, err)
	require.Equal(t, "Error generating certificate: font missing", results[0].Message)

	f = newCertificateFixture(t, CertificateDependencies{Renderer: textRenderer{}}, CertificateConfig{})
	seedCourse(t, f.db, "C1", 1, 0, 0)
	seedStudent(t, f.db, "S1", "s1@example.com")
	seedEnrollment(t, f.db, "S1", "C1", 100)

	results, err = f.svc.IssueCertificates(context.Background(), dto.IssueCertificatesRequest{StudentIDs: []string{"S1"}, CourseID: "C1"})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(results[0].Message, "Error generating certificate: unexpected artifact type"))
	require.Zero(t, f.storage.calls())
}

func TestCertificateServiceStoreFailureAbortsBatch(t *testing.T) {
	f := newCertificateFixture(t, CertificateDependencies{}, CertificateConfig{})
	seedCourse(t, f.db, "C1", 1, 0, 0)
	sqlDB, err := f.db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	_, err = f.svc.IssueCertificates(context.Background(), dto.IssueCertificatesRequest{StudentIDs: []string{"S1"}, CourseID: "C1"})
	require.Error(t, err)
}

func TestCertificateServiceRedisLock(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer client.Close()

	f := newCertificateFixture(t, CertificateDependencies{Locks: client}, CertificateConfig{})
	seedCourse(t, f.db, "C1", 1, 0, 0)
	seedStudent(t, f.db, "S1", "s1@example.com")
	seedStudent(t, f.db, "S2", "s2@example.com")
	seedEnrollment(t, f.db, "S1", "C1", 100)
	seedEnrollment(t, f.db, "S2", "C1", 100)

	require.NoError(t, server.Set(lockKey("S1", "C1"), "1"))

	results, err := f.svc.IssueCertificates(context.Background(), dto.IssueCertificatesRequest{StudentIDs: []string{"S1", "S2"}, CourseID: "C1"})
	require.NoError(t, err)
	require.Equal(t, MsgIssuanceInProgress, results[0].Message)
	require.True(t, results[0].Retryable)
	require.True(t, results[1].Succeeded())
	require.False(t, server.Exists(lockKey("S2", "C1")))
}

func TestCertificateServiceResend(t *testing.T) {
	f := newCertificateFixture(t, CertificateDependencies{}, CertificateConfig{})
	seedStudent(t, f.db, "S1", "s1@example.com")
	ctx := context.Background()

	_, err := f.svc.ResendCertificate(ctx, dto.ResendCertificateRequest{StudentID: "S9", CourseID: "C1"})
	require.ErrorIs(t, err, ErrStudentNotFound)

	_, err = f.svc.ResendCertificate(ctx, dto.ResendCertificateRequest{StudentID: "S1", CourseID: "C1"})
	require.ErrorIs(t, err, ErrCertificateNotFound)

	require.NoError(t, f.db.Create(&models.Certificate{ID: "cert-1", StudentID: "S1", CourseID: "C1", CertificateURL: "https://files.example.com/c.pdf", VerificationCode: "ABCDEF123", IssueDate: time.Now()}).Error)

	resp, err := f.svc.ResendCertificate(ctx, dto.ResendCertificateRequest{StudentID: "S1", CourseID: "C1"})
	require.NoError(t, err)
	require.True(t, resp.Delivered)
	require.Equal(t, "https://files.example.com/c.pdf", resp.CertificateURL)
	require.Zero(t, f.storage.calls())

	var stored models.Certificate
	require.NoError(t, f.db.First(&stored, "id = ?", "cert-1").Error)
	require.Equal(t, "ABCDEF123", stored.VerificationCode)
}

func TestCertificateServiceListDegradesMissingJoins(t *testing.T) {
	f := newCertificateFixture(t, CertificateDependencies{}, CertificateConfig{})
	seedCourse(t, f.db, "C1", 1, 0, 0)
	seedStudent(t, f.db, "S1", "s1@example.com")
	require.NoError(t, f.db.Create(&models.Certificate{ID: "cert-1", StudentID: "S1", CourseID: "C1", IssueDate: time.Now().Add(-time.Hour)}).Error)
	require.NoError(t, f.db.Create(&models.Certificate{ID: "cert-2", StudentID: "ghost", CourseID: "gone", IssueDate: time.Now()}).Error)

	items, err := f.svc.ListAllCertificates(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)

	byID := map[string]dto.CertificateListItem{}
	for _, item := range items {
		byID[item.CertificateID] = item
	}
	require.Equal(t, "Course C1", byID["cert-1"].CourseDetails.CourseTitle)
	require.Equal(t, "Student S1", byID["cert-1"].StudentDetails.StudentName)
	require.Equal(t, dto.CertificateCourseDetails{}, byID["cert-2"].CourseDetails)
	require.Equal(t, dto.CertificateStudentDetails{}, byID["cert-2"].StudentDetails)
}

func TestCertificateServiceVerify(t *testing.T) {
	f := newCertificateFixture(t, CertificateDependencies{}, CertificateConfig{})
	seedCourse(t, f.db, "C1", 1, 0, 0)
	seedStudent(t, f.db, "S1", "s1@example.com")
	require.NoError(t, f.db.Create(&models.Certificate{ID: "cert-1", StudentID: "S1", CourseID: "C1", VerificationCode: "ABCDEF123", IssueDate: time.Now()}).Error)

	resp, err := f.svc.VerifyCertificate(context.Background(), " abcdef123 ")
	require.NoError(t, err)
	require.True(t, resp.Valid)
	require.Equal(t, "cert-1", resp.CertificateID)
	require.Equal(t, "Student S1", resp.StudentName)
	require.Equal(t, "Course C1", resp.CourseTitle)

	_, err = f.svc.VerifyCertificate(context.Background(), "ZZZZZZZZZ")
	require.ErrorIs(t, err, ErrCertificateNotFound)

	_, err = f.svc.VerifyCertificate(context.Background(), "short")
	require.ErrorIs(t, err, ErrCertificateNotFound)
}

func TestCertificateServiceSweepCompleted(t *testing.T) {
	f := newCertificateFixture(t, CertificateDependencies{}, CertificateConfig{})
	seedCourse(t, f.db, "C1", 1, 0, 0)
	seedCourse(t, f.db, "C2", 1, 0, 0)
	seedStudent(t, f.db, "S1", "s1@example.com")
	seedStudent(t, f.db, "S2", "s2@example.com")
	seedEnrollment(t, f.db, "S1", "C1", 100)
	seedEnrollment(t, f.db, "S2", "C1", 100)
	seedEnrollment(t, f.db, "S1", "C2", 100)
	seedEnrollment(t, f.db, "S2", "C2", 40)

	summary, err := f.svc.SweepCompleted(context.Background(), "system")
	require.NoError(t, err)
	require.Equal(t, 2, summary.Courses)
	require.Equal(t, 3, summary.Issued)
	require.Zero(t, summary.Failed)
	require.Equal(t, int64(3), f.certificateCount(t))

	again, err := f.svc.SweepCompleted(context.Background(), "system")
	require.NoError(t, err)
	require.Zero(t, again.Courses)
}

func TestCertificateServiceSweepMovesPastFailingRows(t *testing.T) {
	f := newCertificateFixture(t, CertificateDependencies{}, CertificateConfig{SweepBatchSize: 2})
	seedCourse(t, f.db, "A", 1, 0, 0)
	seedCourse(t, f.db, "B", 1, 0, 0)
	seedStudent(t, f.db, "S1", "s1@example.com")
	seedEnrollment(t, f.db, "ghost-1", "A", 100)
	seedEnrollment(t, f.db, "ghost-2", "A", 100)
	seedEnrollment(t, f.db, "S1", "B", 100)
	ctx := context.Background()

	first, err := f.svc.SweepCompleted(ctx, "system")
	require.NoError(t, err)
	require.Equal(t, 2, first.Failed)
	require.Zero(t, first.Issued)

	second, err := f.svc.SweepCompleted(ctx, "system")
	require.NoError(t, err)
	require.Equal(t, 1, second.Issued)
	require.Zero(t, second.Failed)

	third, err := f.svc.SweepCompleted(ctx, "system")
	require.NoError(t, err)
	require.Equal(t, 2, third.Failed, "cursor wraps to the start after the tail")
	require.Equal(t, int64(1), f.certificateCount(t))

	var stored models.Certificate
	require.NoError(t, f.db.First(&stored, "student_id = ? AND course_id = ?", "S1", "B").Error)
	require.Equal(t, "system", stored.Creator)
}
