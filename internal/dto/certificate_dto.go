package dto

import (
	"time"

	"github.com/noah-isme/learnhub-api/internal/models"
)

// Per-item result statuses for batch issuance.
const (
	ResultStatusOK   = "ok"
	ResultStatusFail = "fail"
)

// IssueCertificatesRequest triggers certificate issuance for many students of one course.
type IssueCertificatesRequest struct {
	StudentIDs []string `json:"studentId" validate:"required,min=1,max=500,dive,required,max=64"`
	CourseID   string   `json:"courseId" validate:"required,max=64"`
	UserID     string   `json:"user_id" validate:"omitempty,max=64"`
}

// ResendCertificateRequest asks for an existing certificate to be mailed again.
type ResendCertificateRequest struct {
	StudentID string `json:"studentId" validate:"required,max=64"`
	CourseID  string `json:"courseId" validate:"required,max=64"`
	UserID    string `json:"user_id" validate:"omitempty,max=64"`
}

// CertificateIssueResult is the outcome of issuing one student's certificate.
type CertificateIssueResult struct {
	StudentID     string `json:"studentId"`
	Status        string `json:"status"`
	Message       string `json:"message"`
	CertificateID string `json:"certificateId,omitempty"`
	Delivered     *bool  `json:"delivered,omitempty"`
	Retryable     bool   `json:"retryable,omitempty"`
}

// Succeeded reports whether the item produced a certificate.
func (r CertificateIssueResult) Succeeded() bool {
	return r.Status == ResultStatusOK
}

// CertificateResponse is the serialized representation of a certificate.
type CertificateResponse struct {
	CertificateID    string    `json:"certificateId"`
	StudentID        string    `json:"student_id"`
	CourseID         string    `json:"course_id"`
	Creator          string    `json:"creator"`
	CertificateURL   string    `json:"certificate_url"`
	IssueDate        time.Time `json:"issue_date"`
	VerificationCode string    `json:"verification_code"`
}

// NewCertificateResponse converts a model into a DTO.
func NewCertificateResponse(certificate models.Certificate) CertificateResponse {
	return CertificateResponse{
		CertificateID:    certificate.ID,
		StudentID:        certificate.StudentID,
		CourseID:         certificate.CourseID,
		Creator:          certificate.Creator,
		CertificateURL:   certificate.CertificateURL,
		IssueDate:        certificate.IssueDate,
		VerificationCode: certificate.VerificationCode,
	}
}

// CertificateCourseDetails is the denormalised course part of a listing item.
type CertificateCourseDetails struct {
	CourseTitle string `json:"courseTitle,omitempty"`
	CourseImage string `json:"courseImage,omitempty"`
}

// CertificateStudentDetails is the denormalised student part of a listing item.
type CertificateStudentDetails struct {
	StudentName  string `json:"studentName,omitempty"`
	StudentImage string `json:"studentImage,omitempty"`
}

// CertificateListItem is a certificate joined with display data.
type CertificateListItem struct {
	CertificateResponse
	CourseDetails  CertificateCourseDetails  `json:"courseDetails"`
	StudentDetails CertificateStudentDetails `json:"studentDetails"`
}

// ResendCertificateResponse reports the delivery attempt of a resend.
type ResendCertificateResponse struct {
	StudentID      string `json:"studentId"`
	CourseID       string `json:"courseId"`
	CertificateURL string `json:"certificate_url"`
	Delivered      bool   `json:"delivered"`
}

// CertificateVerificationResponse is returned by the public verification lookup.
type CertificateVerificationResponse struct {
	Valid            bool      `json:"valid"`
	CertificateID    string    `json:"certificateId"`
	StudentID        string    `json:"student_id"`
	StudentName      string    `json:"student_name,omitempty"`
	CourseID         string    `json:"course_id"`
	CourseTitle      string    `json:"course_title,omitempty"`
	IssueDate        time.Time `json:"issue_date"`
	VerificationCode string    `json:"verification_code"`
}

// CertificateSweepResult summarises one scheduled issuance sweep.
type CertificateSweepResult struct {
	Courses int `json:"courses"`
	Issued  int `json:"issued"`
	Failed  int `json:"failed"`
}
