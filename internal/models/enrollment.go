package models

import (
	"math"
	"time"
)

// Enrollment statuses.
const (
	EnrollmentStatusActive    = "active"
	EnrollmentStatusCompleted = "completed"
)

// Progress tracks completed versus total work for an enrollment.
type Progress struct {
	LessonsCompleted     int `gorm:"not null;default:0" json:"lessons_completed"`
	QuizzesCompleted     int `gorm:"not null;default:0" json:"quizzes_completed"`
	AssignmentsCompleted int `gorm:"not null;default:0" json:"assignments_completed"`
	TotalLessons         int `gorm:"not null;default:0" json:"total_lessons"`
	TotalQuizzes         int `gorm:"not null;default:0" json:"total_quizzes"`
	TotalAssignments     int `gorm:"not null;default:0" json:"total_assignments"`
	Percentage           int `gorm:"not null;default:0" json:"percentage"`
}

// Completed sums the completed counters.
func (p Progress) Completed() int {
	return p.LessonsCompleted + p.QuizzesCompleted + p.AssignmentsCompleted
}

// Total sums the total counters.
func (p Progress) Total() int {
	return p.TotalLessons + p.TotalQuizzes + p.TotalAssignments
}

// Recalculate refreshes Percentage from the counters. A course without any
// content reports 0.
func (p *Progress) Recalculate() {
	total := p.Total()
	if total <= 0 {
		p.Percentage = 0
		return
	}
	p.Percentage = int(math.Round(100 * float64(p.Completed()) / float64(total)))
}

// Status derives the enrollment status from the percentage.
func (p Progress) Status() string {
	if p.Percentage == 100 {
		return EnrollmentStatusCompleted
	}
	return EnrollmentStatusActive
}

// Enrollment links a student to a course. (student_id, course_id) is unique.
type Enrollment struct {
	ID             string    `gorm:"primaryKey;size:64" json:"id"`
	StudentID      string    `gorm:"size:64;not null;uniqueIndex:idx_enrollment_student_course" json:"student_id"`
	CourseID       string    `gorm:"size:64;not null;uniqueIndex:idx_enrollment_student_course;index" json:"course_id"`
	ProgramID      string    `gorm:"size:64" json:"program_id"`
	EnrollmentDate time.Time `gorm:"not null" json:"enrollment_date"`
	Status         string    `gorm:"size:16;not null;index" json:"status"`
	Progress       Progress  `gorm:"embedded" json:"progress"`
	DateUpdated    time.Time `json:"date_updated"`
	Version        int       `gorm:"not null;default:0" json:"-"`
}

// IsCompleted reports whether the learner finished the course.
func (e Enrollment) IsCompleted() bool {
	return e.Status == EnrollmentStatusCompleted && e.Progress.Percentage == 100
}
