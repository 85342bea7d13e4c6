package service

import "errors"

var (
	// ErrCourseNotFound indicates the course does not exist.
	ErrCourseNotFound = errors.New("course not found")
	// ErrStudentNotFound indicates the student does not exist.
	ErrStudentNotFound = errors.New("student not found")
	// ErrEnrollmentNotFound indicates no enrollment exists for the student and course.
	ErrEnrollmentNotFound = errors.New("enrollment not found")
	// ErrAlreadyEnrolled indicates the student is already enrolled in the course.
	ErrAlreadyEnrolled = errors.New("student already enrolled")
	// ErrProgressConflict indicates the enrollment kept changing while progress was being saved.
	ErrProgressConflict = errors.New("progress update conflicted with a concurrent change")
	// ErrProgressOutOfRange indicates a completed counter outside [0, total].
	ErrProgressOutOfRange = errors.New("progress value out of range")
	// ErrCertificateNotFound indicates no certificate exists for the lookup.
	ErrCertificateNotFound = errors.New("certificate not found")
	// ErrGamificationNotFound indicates the gamification entry does not exist.
	ErrGamificationNotFound = errors.New("gamification entry not found")
	// ErrGamificationExists indicates the question already exists for the course.
	ErrGamificationExists = errors.New("gamification question already exists")
	// ErrGamificationInvalid indicates an entry that passed struct validation but is inconsistent.
	ErrGamificationInvalid = errors.New("invalid gamification entry")
	// ErrInvalidCursor indicates a malformed pagination cursor.
	ErrInvalidCursor = errors.New("invalid pagination cursor")
	// ErrPaymentNotVerified indicates the payment gateway did not confirm the transaction.
	ErrPaymentNotVerified = errors.New("payment not verified")
	// ErrPaymentUnavailable indicates no payment gateway is configured.
	ErrPaymentUnavailable = errors.New("payment verification unavailable")
)
