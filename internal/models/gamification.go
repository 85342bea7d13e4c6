package models

import (
	"strconv"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Gamification entry statuses.
const (
	GamificationStatusInactive = 0
	GamificationStatusActive   = 1
)

// GamificationEntry is a scored question attached to a course session.
// Seq is monotonic and drives cursor pagination.
type GamificationEntry struct {
	Seq                 uint                        `gorm:"primaryKey;autoIncrement" json:"-"`
	ID                  string                      `gorm:"size:64;uniqueIndex;not null" json:"id"`
	UserID              string                      `gorm:"size:64" json:"user_id"`
	ProgramID           string                      `gorm:"size:64;index" json:"program_id"`
	CourseID            string                      `gorm:"size:64;index;not null" json:"course_id"`
	SessionID           string                      `gorm:"size:64;index" json:"session_id"`
	Question            string                      `gorm:"size:1024;index;not null" json:"question"`
	Options             datatypes.JSONSlice[string] `json:"options"`
	QuestionAnswerIndex int                         `json:"question_answer_index"`
	Score               string                      `gorm:"size:32" json:"score"`
	Status              int                         `gorm:"index;not null;default:1" json:"status"`
	CreatedAt           time.Time                   `json:"date_created"`
	UpdatedAt           time.Time                   `json:"date_modify"`
}

// TableName keeps the collection name used by the rest of the platform.
func (GamificationEntry) TableName() string {
	return "gamification"
}

// IsActive reports whether the entry is playable.
func (g GamificationEntry) IsActive() bool {
	return g.Status == GamificationStatusActive
}

// ScoreValue parses the leading integer of the stored score ("7.5" is 7).
// Values without a leading integer count as zero.
func (g GamificationEntry) ScoreValue() int {
	raw := strings.TrimSpace(g.Score)
	end := 0
	for end < len(raw) {
		ch := raw[end]
		if (ch == '-' || ch == '+') && end == 0 {
			end++
			continue
		}
		if ch < '0' || ch > '9' {
			break
		}
		end++
	}
	value, err := strconv.Atoi(raw[:end])
	if err != nil {
		return 0
	}
	return value
}
