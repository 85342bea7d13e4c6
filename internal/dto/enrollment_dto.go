package dto

import (
	"time"

	"github.com/noah-isme/learnhub-api/internal/models"
)

// EnrollRequest is the payload for enrolling a student in a course.
type EnrollRequest struct {
	StudentID string `json:"student_id" validate:"required,max=64"`
	CourseID  string `json:"course_id" validate:"required,max=64"`
}

// UpdateProgressRequest carries a partial progress update. Nil counters keep
// their stored value; an explicit 0 resets the counter.
type UpdateProgressRequest struct {
	StudentID            string `json:"student_id" validate:"required,max=64"`
	CourseID             string `json:"course_id" validate:"required,max=64"`
	LessonsCompleted     *int   `json:"lessons_completed"`
	QuizzesCompleted     *int   `json:"quizzes_completed"`
	AssignmentsCompleted *int   `json:"assignments_completed"`
}

// ProgressResponse is the serialized progress of an enrollment.
type ProgressResponse struct {
	LessonsCompleted     int `json:"lessons_completed"`
	QuizzesCompleted     int `json:"quizzes_completed"`
	AssignmentsCompleted int `json:"assignments_completed"`
	TotalLessons         int `json:"total_lessons"`
	TotalQuizzes         int `json:"total_quizzes"`
	TotalAssignments     int `json:"total_assignments"`
	Percentage           int `json:"percentage"`
}

// NewProgressResponse converts model progress into a DTO.
func NewProgressResponse(progress models.Progress) ProgressResponse {
	return ProgressResponse{
		LessonsCompleted:     progress.LessonsCompleted,
		QuizzesCompleted:     progress.QuizzesCompleted,
		AssignmentsCompleted: progress.AssignmentsCompleted,
		TotalLessons:         progress.TotalLessons,
		TotalQuizzes:         progress.TotalQuizzes,
		TotalAssignments:     progress.TotalAssignments,
		Percentage:           progress.Percentage,
	}
}

// UpdateProgressResponse is returned after a progress update.
type UpdateProgressResponse struct {
	StudentID   string           `json:"student_id"`
	CourseID    string           `json:"course_id"`
	Status      string           `json:"status"`
	Progress    ProgressResponse `json:"progress"`
	DateUpdated time.Time        `json:"date_updated"`
}

// EnrollmentResponse is the serialized representation of an enrollment.
type EnrollmentResponse struct {
	ID             string           `json:"id"`
	StudentID      string           `json:"student_id"`
	CourseID       string           `json:"course_id"`
	ProgramID      string           `json:"program_id,omitempty"`
	EnrollmentDate time.Time        `json:"enrollment_date"`
	Status         string           `json:"status"`
	Progress       ProgressResponse `json:"progress"`
	DateUpdated    time.Time        `json:"date_updated"`
}

// NewEnrollmentResponse converts a model into a DTO.
func NewEnrollmentResponse(enrollment models.Enrollment) EnrollmentResponse {
	return EnrollmentResponse{
		ID:             enrollment.ID,
		StudentID:      enrollment.StudentID,
		CourseID:       enrollment.CourseID,
		ProgramID:      enrollment.ProgramID,
		EnrollmentDate: enrollment.EnrollmentDate,
		Status:         enrollment.Status,
		Progress:       NewProgressResponse(enrollment.Progress),
		DateUpdated:    enrollment.DateUpdated,
	}
}

// NewEnrollmentResponseSlice converts a slice of models into DTOs.
func NewEnrollmentResponseSlice(enrollments []models.Enrollment) []EnrollmentResponse {
	out := make([]EnrollmentResponse, 0, len(enrollments))
	for _, enrollment := range enrollments {
		out = append(out, NewEnrollmentResponse(enrollment))
	}
	return out
}

// CourseProgressResponse pairs an enrollment with display data of its course.
type CourseProgressResponse struct {
	EnrollmentResponse
	CourseTitle     string `json:"course_title"`
	CourseThumbnail string `json:"course_thumbnail,omitempty"`
}

// PaymentEnrollmentResponse summarises enrollments created from a verified payment.
type PaymentEnrollmentResponse struct {
	Reference       string   `json:"reference"`
	StudentID       string   `json:"student_id"`
	Enrolled        []string `json:"enrolled"`
	AlreadyEnrolled []string `json:"already_enrolled"`
	Skipped         []string `json:"skipped"`
}
