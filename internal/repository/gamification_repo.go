package repository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/learnhub-api/internal/models"
)

// GamificationPageFilter selects a keyset page of active entries.
type GamificationPageFilter struct {
	ProgramID string
	AfterSeq  uint
	Limit     int
}

// GamificationSearchFilter narrows entry searches. QuestionPrefix is matched
// as a range so it can use the question index.
type GamificationSearchFilter struct {
	QuestionPrefix string
	CourseID       string
	SessionID      string
	Status         *int
}

// GamificationRepository defines persistence operations for gamification entries.
type GamificationRepository interface {
	Create(ctx context.Context, entry *models.GamificationEntry) error
	GetByID(ctx context.Context, id string) (models.GamificationEntry, error)
	ExistsByQuestion(ctx context.Context, courseID, question string) (bool, error)
	UpdateStatus(ctx context.Context, id string, status int, updatedAt time.Time) error
	ListActivePage(ctx context.Context, filter GamificationPageFilter) ([]models.GamificationEntry, error)
	Search(ctx context.Context, filter GamificationSearchFilter) ([]models.GamificationEntry, error)
}

type gamificationRepository struct {
	db *gorm.DB
}

// NewGamificationRepository instantiates the repository.
func NewGamificationRepository(db *gorm.DB) GamificationRepository {
	return &gamificationRepository{db: db}
}

func (r *gamificationRepository) Create(ctx context.Context, entry *models.GamificationEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *gamificationRepository) GetByID(ctx context.Context, id string) (models.GamificationEntry, error) {
	var entry models.GamificationEntry
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&entry).Error; err != nil {
		return models.GamificationEntry{}, err
	}
	return entry, nil
}

func (r *gamificationRepository) ExistsByQuestion(ctx context.Context, courseID, question string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.GamificationEntry{}).
		Where("course_id = ?", courseID).
		Where("question = ?", question).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *gamificationRepository) UpdateStatus(ctx context.Context, id string, status int, updatedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.GamificationEntry{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "updated_at": updatedAt})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListActivePage returns up to filter.Limit active entries with seq greater
// than filter.AfterSeq, ordered by seq.
func (r *gamificationRepository) ListActivePage(ctx context.Context, filter GamificationPageFilter) ([]models.GamificationEntry, error) {
	query := r.db.WithContext(ctx).
		Model(&models.GamificationEntry{}).
		Where("status = ?", models.GamificationStatusActive)

	if programID := strings.TrimSpace(filter.ProgramID); programID != "" {
		query = query.Where("program_id = ?", programID)
	}
	if filter.AfterSeq > 0 {
		query = query.Where("seq > ?", filter.AfterSeq)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var entries []models.GamificationEntry
	if err := query.Order("seq ASC").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *gamificationRepository) Search(ctx context.Context, filter GamificationSearchFilter) ([]models.GamificationEntry, error) {
	query := r.db.WithContext(ctx).Model(&models.GamificationEntry{})

	if prefix := filter.QuestionPrefix; prefix != "" {
		query = query.Where("question >= ? AND question < ?", prefix, prefix+"\uffff")
	}
	if filter.CourseID != "" {
		query = query.Where("course_id = ?", filter.CourseID)
	}
	if filter.SessionID != "" {
		query = query.Where("session_id = ?", filter.SessionID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	var entries []models.GamificationEntry
	if err := query.Order("seq ASC").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
