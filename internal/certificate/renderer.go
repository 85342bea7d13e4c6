// Package certificate renders completion certificates and generates their
// verification codes.
package certificate

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
)

// ContentType is the MIME type of rendered artifacts.
const ContentType = "application/pdf"

// Data is the information printed on a certificate.
type Data struct {
	StudentID        string
	StudentName      string
	CourseID         string
	CourseTitle      string
	IssueDate        time.Time
	VerificationCode string
}

// PDFRenderer draws a single page landscape certificate.
type PDFRenderer struct {
	issuer string
}

// NewPDFRenderer builds a renderer that prints issuer in the footer.
func NewPDFRenderer(issuer string) *PDFRenderer {
	if issuer == "" {
		issuer = "Learnhub"
	}
	return &PDFRenderer{issuer: issuer}
}

// Render produces the PDF bytes for data.
func (r *PDFRenderer) Render(ctx context.Context, data Data) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetTitle("Certificate of Completion", true)
	pdf.SetAuthor(r.issuer, true)
	pdf.SetCreationDate(data.IssueDate)
	pdf.SetMargins(20, 25, 20)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 28)
	pdf.CellFormat(0, 20, "Certificate of Completion", "", 1, "C", false, 0, "")
	pdf.Ln(8)

	recipient := data.StudentName
	if recipient == "" {
		recipient = "student with ID: " + data.StudentID
	}
	pdf.SetFont("Helvetica", "", 18)
	pdf.CellFormat(0, 12, "This certifies that "+recipient, "", 1, "C", false, 0, "")
	pdf.Ln(4)

	course := data.CourseTitle
	if course == "" {
		course = "the course with ID: " + data.CourseID
	}
	pdf.SetFont("Helvetica", "", 16)
	pdf.CellFormat(0, 12, "has successfully completed "+course, "", 1, "C", false, 0, "")
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "", 12)
	pdf.CellFormat(0, 8, "Issued on: "+data.IssueDate.UTC().Format("02 January 2006"), "", 1, "C", false, 0, "")
	if data.VerificationCode != "" {
		pdf.CellFormat(0, 8, "Verification code: "+data.VerificationCode, "", 1, "C", false, 0, "")
	}

	pdf.SetY(-30)
	pdf.SetFont("Helvetica", "I", 10)
	pdf.CellFormat(0, 8, r.issuer, "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render certificate pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// ObjectPath is the storage path for one issued certificate. The certificate
// ID keeps every issuance on its own object.
func ObjectPath(studentID, courseID, certificateID string) string {
	return fmt.Sprintf("certificate/%s_%s_%s.pdf", studentID, courseID, certificateID)
}
