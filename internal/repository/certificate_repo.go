package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/learnhub-api/internal/models"
)

// CertificateRepository defines persistence operations for issued certificates.
type CertificateRepository interface {
	CreateIfAbsent(ctx context.Context, certificate *models.Certificate) error
	GetByStudentAndCourse(ctx context.Context, studentID, courseID string) (models.Certificate, error)
	GetByVerificationCode(ctx context.Context, code string) (models.Certificate, error)
	List(ctx context.Context) ([]models.Certificate, error)
}

type certificateRepository struct {
	db *gorm.DB
}

// NewCertificateRepository instantiates the repository.
func NewCertificateRepository(db *gorm.DB) CertificateRepository {
	return &certificateRepository{db: db}
}

// CreateIfAbsent inserts the certificate unless the (student_id, course_id)
// pair already holds one, in which case ErrConflict is returned.
func (r *certificateRepository) CreateIfAbsent(ctx context.Context, certificate *models.Certificate) error {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(certificate)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

func (r *certificateRepository) GetByStudentAndCourse(ctx context.Context, studentID, courseID string) (models.Certificate, error) {
	var certificate models.Certificate
	if err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Where("course_id = ?", courseID).
		First(&certificate).Error; err != nil {
		return models.Certificate{}, err
	}
	return certificate, nil
}

func (r *certificateRepository) GetByVerificationCode(ctx context.Context, code string) (models.Certificate, error) {
	var certificate models.Certificate
	if err := r.db.WithContext(ctx).
		Where("verification_code = ?", code).
		Order("issue_date ASC").
		First(&certificate).Error; err != nil {
		return models.Certificate{}, err
	}
	return certificate, nil
}

func (r *certificateRepository) List(ctx context.Context) ([]models.Certificate, error) {
	var certificates []models.Certificate
	if err := r.db.WithContext(ctx).Order("issue_date DESC").Find(&certificates).Error; err != nil {
		return nil, err
	}
	return certificates, nil
}
