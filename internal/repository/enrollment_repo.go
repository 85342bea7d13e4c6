package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/learnhub-api/internal/models"
)

// EnrollmentRepository defines persistence operations for enrollments.
type EnrollmentRepository interface {
	CreateIfAbsent(ctx context.Context, enrollment *models.Enrollment) error
	GetByStudentAndCourse(ctx context.Context, studentID, courseID string) (models.Enrollment, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.Enrollment, error)
	ListByCourse(ctx context.Context, courseID string) ([]models.Enrollment, error)
	UpdateProgress(ctx context.Context, id string, version int, progress models.Progress, status string, updatedAt time.Time) error
	ListCompletedWithoutCertificate(ctx context.Context, after SweepCursor, limit int) ([]models.Enrollment, error)
}

// SweepCursor marks the last enrollment a sweep page returned. The zero value
// starts from the beginning.
type SweepCursor struct {
	CourseID     string
	EnrollmentID string
}

// IsZero reports whether the cursor points at the start of the table.
func (c SweepCursor) IsZero() bool {
	return c.CourseID == "" && c.EnrollmentID == ""
}

type enrollmentRepository struct {
	db *gorm.DB
}

// NewEnrollmentRepository instantiates the repository.
func NewEnrollmentRepository(db *gorm.DB) EnrollmentRepository {
	return &enrollmentRepository{db: db}
}

// CreateIfAbsent inserts the enrollment unless one already exists for the
// (student_id, course_id) pair, in which case ErrConflict is returned.
func (r *enrollmentRepository) CreateIfAbsent(ctx context.Context, enrollment *models.Enrollment) error {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(enrollment)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

func (r *enrollmentRepository) GetByStudentAndCourse(ctx context.Context, studentID, courseID string) (models.Enrollment, error) {
	var enrollment models.Enrollment
	if err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Where("course_id = ?", courseID).
		First(&enrollment).Error; err != nil {
		return models.Enrollment{}, err
	}
	return enrollment, nil
}

func (r *enrollmentRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Enrollment, error) {
	var enrollments []models.Enrollment
	if err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("enrollment_date DESC").
		Find(&enrollments).Error; err != nil {
		return nil, err
	}
	return enrollments, nil
}

func (r *enrollmentRepository) ListByCourse(ctx context.Context, courseID string) ([]models.Enrollment, error) {
	var enrollments []models.Enrollment
	if err := r.db.WithContext(ctx).
		Where("course_id = ?", courseID).
		Order("enrollment_date ASC").
		Find(&enrollments).Error; err != nil {
		return nil, err
	}
	return enrollments, nil
}

// UpdateProgress writes the counters only when the row still carries the
// version that was read, and bumps it.
func (r *enrollmentRepository) UpdateProgress(ctx context.Context, id string, version int, progress models.Progress, status string, updatedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.Enrollment{}).
		Where("id = ? AND version = ?", id, version).
		Updates(map[string]interface{}{
			"lessons_completed":     progress.LessonsCompleted,
			"quizzes_completed":     progress.QuizzesCompleted,
			"assignments_completed": progress.AssignmentsCompleted,
			"total_lessons":         progress.TotalLessons,
			"total_quizzes":         progress.TotalQuizzes,
			"total_assignments":     progress.TotalAssignments,
			"percentage":            progress.Percentage,
			"status":                status,
			"date_updated":          updatedAt,
			"version":               gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Enrollment{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return gorm.ErrRecordNotFound
	}
	return ErrStale
}

func (r *enrollmentRepository) ListCompletedWithoutCertificate(ctx context.Context, after SweepCursor, limit int) ([]models.Enrollment, error) {
	if limit <= 0 {
		limit = 100
	}

	query := r.db.WithContext(ctx).
		Model(&models.Enrollment{}).
		Joins("LEFT JOIN certificates ON certificates.student_id = enrollments.student_id AND certificates.course_id = enrollments.course_id").
		Where("enrollments.status = ?", models.EnrollmentStatusCompleted).
		Where("certificates.id IS NULL")
	if !after.IsZero() {
		query = query.Where("(enrollments.course_id > ? OR (enrollments.course_id = ? AND enrollments.id > ?))", after.CourseID, after.CourseID, after.EnrollmentID)
	}

	var enrollments []models.Enrollment
	if err := query.
		Order("enrollments.course_id ASC, enrollments.id ASC").
		Limit(limit).
		Find(&enrollments).Error; err != nil {
		return nil, err
	}
	return enrollments, nil
}
