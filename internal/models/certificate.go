package models

import "time"

// Certificate is issued once per (student_id, course_id) and never changes afterwards.
type Certificate struct {
	ID               string    `gorm:"primaryKey;size:64" json:"certificate_id"`
	StudentID        string    `gorm:"size:64;not null;uniqueIndex:idx_certificate_student_course" json:"student_id"`
	CourseID         string    `gorm:"size:64;not null;uniqueIndex:idx_certificate_student_course" json:"course_id"`
	Creator          string    `gorm:"size:64" json:"creator"`
	CertificateURL   string    `gorm:"size:1024;not null" json:"certificate_url"`
	IssueDate        time.Time `gorm:"not null;index" json:"issue_date"`
	VerificationCode string    `gorm:"size:16;index;not null" json:"verification_code"`
}
