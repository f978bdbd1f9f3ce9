package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/aulaworks/aula-go-api/internal/dto"
	"github.com/aulaworks/aula-go-api/internal/middleware"
	"github.com/aulaworks/aula-go-api/internal/service"
	"github.com/aulaworks/aula-go-api/internal/utils"
)

// SubmissionHandler maps the submission workflow operations onto HTTP.
type SubmissionHandler struct {
	service service.SubmissionService
	logger  zerolog.Logger
}

// NewSubmissionHandler builds a submission handler instance.
func NewSubmissionHandler(service service.SubmissionService, logger zerolog.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		service: service,
		logger:  logger.With().Str("component", "submission_handler").Logger(),
	}
}

// Register attaches the submission routes to the provided router group.
func (h *SubmissionHandler) Register(router fiber.Router) {
	router.Post("", h.submit)
	router.Get("/mine", h.listMine)
	router.Put("/:id/grade", h.grade)
}

// RegisterAssignmentRoutes attaches the per-assignment listing route.
func (h *SubmissionHandler) RegisterAssignmentRoutes(router fiber.Router) {
	router.Get("/:id/submissions", h.listByAssignment)
}

func (h *SubmissionHandler) submit(c *fiber.Ctx) error {
	caller, ok := middleware.CallerFromCtx(c)
	if !ok {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}

	var payload dto.SubmitRequest
	assignmentID, err := parseFormUint(c, "assignment_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	payload.AssignmentID = *assignmentID
	payload.Comment = c.FormValue("comment")

	file, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file is required")
	}

	submission, err := h.service.Submit(c.Context(), caller, payload, file)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "submission stored", submission)
}

func (h *SubmissionHandler) listByAssignment(c *fiber.Ctx) error {
	caller, ok := middleware.CallerFromCtx(c)
	if !ok {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}

	assignmentID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submissions, err := h.service.ListByAssignment(c.Context(), caller, assignmentID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submissions retrieved", submissions)
}

func (h *SubmissionHandler) listMine(c *fiber.Ctx) error {
	caller, ok := middleware.CallerFromCtx(c)
	if !ok {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}

	submissions, err := h.service.ListMine(c.Context(), caller)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submissions retrieved", submissions)
}

func (h *SubmissionHandler) grade(c *fiber.Ctx) error {
	caller, ok := middleware.CallerFromCtx(c)
	if !ok {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}

	submissionID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.GradeRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	submission, err := h.service.Grade(c.Context(), caller, submissionID, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submission graded", submission)
}

func (h *SubmissionHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrAssignmentNotFound),
		errors.Is(err, service.ErrSubmissionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrNotAStudent),
		errors.Is(err, service.ErrNotATeacher),
		errors.Is(err, service.ErrNotAssignmentOwner):
		return utils.SendError(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrSubmissionGraded),
		errors.Is(err, service.ErrDeadlinePassed):
		// The two lock reasons stay distinguishable in the message.
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrArtifactRequired),
		errors.Is(err, service.ErrArtifactTooLarge),
		errors.Is(err, service.ErrArtifactTypeNotAllowed),
		errors.Is(err, service.ErrScoreOutOfRange):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
