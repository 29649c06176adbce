package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/parroquia-tools/turnos-api/internal/dto"
	appErrors "github.com/parroquia-tools/turnos-api/pkg/errors"
	"github.com/parroquia-tools/turnos-api/pkg/response"
)

type assignmentService interface {
	Replace(ctx context.Context, assignmentID string, req dto.ReplaceAssignmentRequest) (*dto.ScheduleSlotView, error)
	Clear(ctx context.Context, assignmentID string) (*dto.ScheduleSlotView, error)
	Swap(ctx context.Context, req dto.SwapAssignmentsRequest) ([]dto.ScheduleSlotView, error)
	Move(ctx context.Context, req dto.MoveAssignmentRequest) ([]dto.ScheduleSlotView, error)
	MyAssignments(ctx context.Context, personID string, from time.Time) ([]dto.MyAssignmentView, error)
}

// AssignmentHandler exposes manual edit endpoints for draft schedules.
type AssignmentHandler struct {
	service assignmentService
}

// NewAssignmentHandler constructs the handler.
func NewAssignmentHandler(service assignmentService) *AssignmentHandler {
	return &AssignmentHandler{service: service}
}

// Replace godoc
// @Summary Put a person into a slot
// @Description The placement passes the full rule check before anything changes.
// @Description Whoever held the slot is bumped out.
// @Tags Assignments
// @Accept json
// @Produce json
// @Param id path string true "Assignment ID"
// @Param payload body dto.ReplaceAssignmentRequest true "Replacement person"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /assignments/{id} [put]
func (h *AssignmentHandler) Replace(c *gin.Context) {
	var req dto.ReplaceAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid replace payload"))
		return
	}
	view, err := h.service.Replace(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Clear godoc
// @Summary Empty a slot
// @Tags Assignments
// @Produce json
// @Param id path string true "Assignment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /assignments/{id}/clear [post]
func (h *AssignmentHandler) Clear(c *gin.Context) {
	view, err := h.service.Clear(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Swap godoc
// @Summary Exchange the occupants of two filled slots
// @Tags Assignments
// @Accept json
// @Produce json
// @Param payload body dto.SwapAssignmentsRequest true "Slots to swap"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /assignments/swap [post]
func (h *AssignmentHandler) Swap(c *gin.Context) {
	var req dto.SwapAssignmentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid swap payload"))
		return
	}
	views, err := h.service.Swap(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, views, nil)
}

// Move godoc
// @Summary Relocate an occupant to an empty slot
// @Tags Assignments
// @Accept json
// @Produce json
// @Param payload body dto.MoveAssignmentRequest true "Source and destination slots"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /assignments/move [post]
func (h *AssignmentHandler) Move(c *gin.Context) {
	var req dto.MoveAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid move payload"))
		return
	}
	views, err := h.service.Move(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, views, nil)
}

// MyAssignments godoc
// @Summary List a person's upcoming published assignments
// @Tags Assignments
// @Produce json
// @Param id path string true "Person ID"
// @Param from query string false "Start date (YYYY-MM-DD). Defaults to today"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /people/{id}/assignments [get]
func (h *AssignmentHandler) MyAssignments(c *gin.Context) {
	var from time.Time
	if raw := c.Query("from"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "from must be formatted YYYY-MM-DD"))
			return
		}
		from = parsed
	}
	views, err := h.service.MyAssignments(c.Request.Context(), c.Param("id"), from)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, views, nil)
}
