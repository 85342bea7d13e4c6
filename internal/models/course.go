package models

import "time"

// Content kinds attached to a course.
const (
	ContentKindLesson     = "lesson"
	ContentKindQuiz       = "quiz"
	ContentKindAssignment = "assignment"
	ContentKindExam       = "exam"
)

// Course is the catalogue entry learners enroll in. The core only reads it.
type Course struct {
	ID        string          `gorm:"primaryKey;size:64" json:"id"`
	Title     string          `gorm:"size:255;not null" json:"title"`
	Thumbnail string          `gorm:"size:512" json:"thumbnail"`
	ProgramID string          `gorm:"size:64;index" json:"program_id"`
	Level     string          `gorm:"size:32" json:"level"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Contents  []CourseContent `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"contents,omitempty"`
}

// CourseContent is a single lesson, quiz, assignment or exam of a course.
type CourseContent struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	CourseID string `gorm:"size:64;index;not null" json:"course_id"`
	Kind     string `gorm:"size:16;index;not null" json:"kind"`
	Title    string `gorm:"size:255" json:"title"`
	Position int    `json:"position"`
}

// CountOf returns how many contents of the given kind the course carries.
func (c Course) CountOf(kind string) int {
	count := 0
	for _, content := range c.Contents {
		if content.Kind == kind {
			count++
		}
	}
	return count
}

func (c Course) LessonCount() int     { return c.CountOf(ContentKindLesson) }
func (c Course) QuizCount() int       { return c.CountOf(ContentKindQuiz) }
func (c Course) AssignmentCount() int { return c.CountOf(ContentKindAssignment) }
func (c Course) ExamCount() int       { return c.CountOf(ContentKindExam) }
