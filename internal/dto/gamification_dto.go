package dto

import (
	"time"

	"github.com/noah-isme/learnhub-api/internal/models"
)

// Gamification status actions.
const (
	GamificationActionActivate   = "activate"
	GamificationActionDeactivate = "deactivate"
)

// GamificationPageQuery holds the paginated listing parameters.
type GamificationPageQuery struct {
	PageSize    int    `query:"pageSize" validate:"omitempty,min=1,max=100"`
	LastVisible string `query:"lastVisible" validate:"omitempty,max=64"`
	ProgramID   string `query:"program_id" validate:"omitempty,max=64"`
}

// GamificationSearchQuery filters gamification entries.
type GamificationSearchQuery struct {
	Question  string `query:"question" validate:"omitempty,max=1024"`
	CourseID  string `query:"course_id" validate:"omitempty,max=64"`
	SessionID string `query:"session_id" validate:"omitempty,max=64"`
	Status    *int   `query:"status" validate:"omitempty,oneof=0 1"`
}

// GamificationCreateRequest is the payload for a new gamification question.
type GamificationCreateRequest struct {
	UserID              string   `json:"user_id" validate:"omitempty,max=64"`
	ProgramID           string   `json:"program_id" validate:"required,max=64"`
	CourseID            string   `json:"course_id" validate:"required,max=64"`
	SessionID           string   `json:"session_id" validate:"required,max=64"`
	Question            string   `json:"question" validate:"required,max=1024"`
	Options             []string `json:"options" validate:"required,min=2,max=10,dive,required,max=512"`
	QuestionAnswerIndex *int     `json:"question_answer_index" validate:"required,min=0"`
	Score               string   `json:"score" validate:"required,max=32"`
}

// GamificationStatusRequest toggles an entry on or off.
type GamificationStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=activate deactivate"`
}

// GamificationGameResponse is the serialized representation of an entry.
type GamificationGameResponse struct {
	ID                  string    `json:"id"`
	UserID              string    `json:"user_id,omitempty"`
	ProgramID           string    `json:"program_id"`
	CourseID            string    `json:"course_id"`
	SessionID           string    `json:"session_id"`
	Question            string    `json:"question"`
	Options             []string  `json:"options"`
	QuestionAnswerIndex int       `json:"question_answer_index"`
	Score               string    `json:"score"`
	Status              int       `json:"status"`
	DateCreated         time.Time `json:"date_created"`
	DateModify          time.Time `json:"date_modify"`
}

// NewGamificationGameResponse converts a model into a DTO.
func NewGamificationGameResponse(entry models.GamificationEntry) GamificationGameResponse {
	options := []string(entry.Options)
	if options == nil {
		options = []string{}
	}
	return GamificationGameResponse{
		ID:                  entry.ID,
		UserID:              entry.UserID,
		ProgramID:           entry.ProgramID,
		CourseID:            entry.CourseID,
		SessionID:           entry.SessionID,
		Question:            entry.Question,
		Options:             options,
		QuestionAnswerIndex: entry.QuestionAnswerIndex,
		Score:               entry.Score,
		Status:              entry.Status,
		DateCreated:         entry.CreatedAt,
		DateModify:          entry.UpdatedAt,
	}
}

// NewGamificationGameResponseSlice converts a slice of models into DTOs.
func NewGamificationGameResponseSlice(entries []models.GamificationEntry) []GamificationGameResponse {
	out := make([]GamificationGameResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, NewGamificationGameResponse(entry))
	}
	return out
}

// GamificationGroupResponse aggregates the entries of one course.
type GamificationGroupResponse struct {
	CourseID   string                     `json:"course_id"`
	CourseName string                     `json:"course_name"`
	TotalScore int                        `json:"total_score"`
	Games      []GamificationGameResponse `json:"games"`
}

// GamificationPageResponse is one page of grouped entries. LastVisible is the
// cursor for the next page and is null once the listing is exhausted.
type GamificationPageResponse struct {
	Groups      []GamificationGroupResponse `json:"groups"`
	LastVisible *string                     `json:"lastVisible"`
}
