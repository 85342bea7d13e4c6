package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/learnhub-api/internal/models"
)

// CourseRepository exposes read access to the course catalogue.
type CourseRepository interface {
	GetByID(ctx context.Context, id string) (models.Course, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]models.Course, error)
}

type courseRepository struct {
	db *gorm.DB
}

// NewCourseRepository instantiates a GORM-backed repository.
func NewCourseRepository(db *gorm.DB) CourseRepository {
	return &courseRepository{db: db}
}

func (r *courseRepository) GetByID(ctx context.Context, id string) (models.Course, error) {
	var course models.Course
	if err := r.db.WithContext(ctx).
		Preload("Contents", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC, id ASC")
		}).
		Where("id = ?", id).
		First(&course).Error; err != nil {
		return models.Course{}, err
	}
	return course, nil
}

// GetByIDs loads courses without their contents; missing ids are simply absent from the map.
func (r *courseRepository) GetByIDs(ctx context.Context, ids []string) (map[string]models.Course, error) {
	result := make(map[string]models.Course, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var courses []models.Course
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&courses).Error; err != nil {
		return nil, err
	}
	for _, course := range courses {
		result[course.ID] = course
	}
	return result, nil
}
