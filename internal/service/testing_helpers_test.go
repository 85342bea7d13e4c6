package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/learnhub-api/internal/certificate"
	"github.com/noah-isme/learnhub-api/internal/models"
	"github.com/noah-isme/learnhub-api/pkg/paystack"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func setupServiceDB(t *testing.T) *gorm.DB {
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
	return db
}

func seedCourse(t *testing.T, db *gorm.DB, id string, lessons, quizzes, assignments int) models.Course {
	t.Helper()
	course := models.Course{ID: id, Title: "Course " + id, Thumbnail: "https://img.example.com/" + id + ".png", ProgramID: "prog-1"}
	position := 0
	add := func(kind string, count int) {
		for i := 0; i < count; i++ {
			position++
			course.Contents = append(course.Contents, models.CourseContent{Kind: kind, Title: fmt.Sprintf("%s %d", kind, i+1), Position: position})
		}
	}
	add(models.ContentKindLesson, lessons)
	add(models.ContentKindQuiz, quizzes)
	add(models.ContentKindAssignment, assignments)
	add(models.ContentKindExam, 1)
	require.NoError(t, db.Create(&course).Error)
	return course
}

func seedStudent(t *testing.T, db *gorm.DB, id, email string) models.Student {
	t.Helper()
	student := models.Student{ID: id, Name: "Student " + id, Email: email, Picture: "https://img.example.com/" + id + ".jpg"}
	require.NoError(t, db.Create(&student).Error)
	return student
}

func seedEnrollment(t *testing.T, db *gorm.DB, studentID, courseID string, percentage int) models.Enrollment {
	t.Helper()
	status := models.EnrollmentStatusActive
	if percentage == 100 {
		status = models.EnrollmentStatusCompleted
	}
	enrollment := models.Enrollment{
		ID:             uuid.NewString(),
		StudentID:      studentID,
		CourseID:       courseID,
		EnrollmentDate: time.Now().UTC(),
		Status:         status,
		Progress:       models.Progress{TotalLessons: 1, LessonsCompleted: percentage / 100, Percentage: percentage},
		DateUpdated:    time.Now().UTC(),
	}
	require.NoError(t, db.Create(&enrollment).Error)
	return enrollment
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(ctx context.Context, eventType string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
	return nil
}

func (p *recordingPublisher) count(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := 0
	for _, event := range p.events {
		if event == eventType {
			total++
		}
	}
	return total
}

type stubStorage struct {
	mu    sync.Mutex
	paths []string
	blobs [][]byte
	delay time.Duration
	err   error
}

func (s *stubStorage) Store(ctx context.Context, objectPath string, data []byte, contentType string) (string, error) {
	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(s.delay):
		}
	}
	if s.err != nil {
		return "", s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths = append(s.paths, objectPath)
	s.blobs = append(s.blobs, data)
	return "https://files.example.com/" + objectPath, nil
}

func (s *stubStorage) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.paths)
}

type sentMail struct {
	To      string
	Subject string
	Body    string
}

type stubMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *stubMailer) Send(ctx context.Context, to, subject, body string) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

func (m *stubMailer) messages() []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMail(nil), m.sent...)
}

type textRenderer struct{}

func (textRenderer) Render(ctx context.Context, data certificate.Data) ([]byte, error) {
	return []byte("plain text certificate for " + data.StudentID), nil
}

// codeRenderer emits a minimal PDF that carries the verification code in clear text.
type codeRenderer struct{}

func (codeRenderer) Render(ctx context.Context, data certificate.Data) ([]byte, error) {
	return []byte("%PDF-1.4\n% " + data.StudentID + " " + data.VerificationCode + "\n%%EOF\n"), nil
}

type failingRenderer struct{}

func (failingRenderer) Render(ctx context.Context, data certificate.Data) ([]byte, error) {
	return nil, errors.New("font missing")
}

type stubPayments struct {
	verification paystack.Verification
	err          error
	calls        int
}

func (p *stubPayments) Verify(ctx context.Context, reference string) (paystack.Verification, error) {
	p.calls++
	if p.err != nil {
		return paystack.Verification{}, p.err
	}
	verification := p.verification
	verification.Reference = reference
	return verification, nil
}
