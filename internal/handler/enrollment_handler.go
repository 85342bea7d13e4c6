package handler

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/learnhub-api/internal/dto"
	"github.com/noah-isme/learnhub-api/internal/service"
	"github.com/noah-isme/learnhub-api/internal/utils"
)

const (
	msgIDsRequired    = "Student ID and Course ID are required"
	msgForeignStudent = "You can only manage your own enrollments"
)

// EnrollmentHandler exposes enrollment and progress endpoints.
type EnrollmentHandler struct {
	enrollments service.EnrollmentService
	progress    service.ProgressService
	logger      zerolog.Logger
}

// NewEnrollmentHandler constructs an enrollment handler.
func NewEnrollmentHandler(enrollments service.EnrollmentService, progress service.ProgressService, logger zerolog.Logger) *EnrollmentHandler {
	return &EnrollmentHandler{
		enrollments: enrollments,
		progress:    progress,
		logger:      logger.With().Str("component", "enrollment_handler").Logger(),
	}
}

// Register wires course enrollment routes.
func (h *EnrollmentHandler) Register(router fiber.Router) {
	router.Post("/enroll", h.enroll)
	router.Post("/updateCourseProgress", h.updateProgress)
	router.Get("/enrollments/student/:student_id", h.listByStudent)
	router.Get("/enrollments/course/:course_id", h.listByCourse)
	router.Get("/progress/:student_id", h.progressForStudent)
}

func (h *EnrollmentHandler) enroll(c *fiber.Ctx) error {
	var payload dto.EnrollRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, msgIDsRequired)
	}
	studentID, ok := bindStudent(c, payload.StudentID)
	if !ok {
		return utils.SendError(c, fiber.StatusForbidden, msgForeignStudent)
	}
	payload.StudentID = studentID

	resp, err := h.enrollments.Enroll(c.UserContext(), payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "Student enrolled successfully", resp)
}

func (h *EnrollmentHandler) updateProgress(c *fiber.Ctx) error {
	var payload dto.UpdateProgressRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	studentID, ok := bindStudent(c, payload.StudentID)
	if !ok {
		return utils.SendError(c, fiber.StatusForbidden, msgForeignStudent)
	}
	payload.StudentID = studentID

	resp, err := h.progress.UpdateProgress(c.UserContext(), payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "Course progress updated successfully", resp)
}

func (h *EnrollmentHandler) listByStudent(c *fiber.Ctx) error {
	studentID := strings.TrimSpace(c.Params("student_id"))
	resp, err := h.enrollments.ListEnrollments(c.UserContext(), studentID)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "Enrollments retrieved successfully", resp)
}

func (h *EnrollmentHandler) listByCourse(c *fiber.Ctx) error {
	courseID := strings.TrimSpace(c.Params("course_id"))
	resp, err := h.enrollments.ListEnrolledStudents(c.UserContext(), courseID)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "Enrolled students retrieved successfully", resp)
}

// progressForStudent lists every course of the student with progress, or a
// single enrollment when course_id is given.
func (h *EnrollmentHandler) progressForStudent(c *fiber.Ctx) error {
	studentID := strings.TrimSpace(c.Params("student_id"))
	if courseID := strings.TrimSpace(c.Query("course_id")); courseID != "" {
		resp, err := h.progress.GetProgress(c.UserContext(), studentID, courseID)
		if err != nil {
			return h.handleError(c, err)
		}
		return utils.SendSuccess(c, "Course progress retrieved successfully", resp)
	}

	resp, err := h.enrollments.ListCoursesWithProgress(c.UserContext(), studentID)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "Courses retrieved successfully", resp)
}

func (h *EnrollmentHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case isValidationError(err):
		return utils.Fail(c, fiber.StatusBadRequest, msgIDsRequired, validationDetails(err))
	case errors.Is(err, service.ErrCourseNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "Course does not exist")
	case errors.Is(err, service.ErrAlreadyEnrolled):
		return utils.SendError(c, fiber.StatusBadRequest, "Student is already enrolled for this course")
	case errors.Is(err, service.ErrEnrollmentNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "Enrollment record not found")
	case errors.Is(err, service.ErrProgressOutOfRange):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrProgressConflict):
		return utils.SendError(c, fiber.StatusConflict, "Progress was updated concurrently, please retry")
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("enrollment request failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
