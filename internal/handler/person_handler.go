package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/parroquia-tools/turnos-api/internal/dto"
	"github.com/parroquia-tools/turnos-api/internal/models"
	appErrors "github.com/parroquia-tools/turnos-api/pkg/errors"
	"github.com/parroquia-tools/turnos-api/pkg/response"
)

type personService interface {
	List(ctx context.Context, filter models.PersonFilter) ([]models.Person, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Person, error)
	Create(ctx context.Context, req dto.CreatePersonRequest) (*models.Person, error)
	Update(ctx context.Context, id string, req dto.UpdatePersonRequest) (*models.Person, error)
	Deactivate(ctx context.Context, id string) error
	ListUnavailability(ctx context.Context, personID string) ([]models.Unavailability, error)
	AddUnavailability(ctx context.Context, personID string, req dto.AddUnavailabilityRequest) (*models.Unavailability, error)
	RemoveUnavailability(ctx context.Context, personID, windowID string) error
}

// PersonHandler exposes roster management endpoints.
type PersonHandler struct {
	service personService
}

// NewPersonHandler constructs the handler.
func NewPersonHandler(service personService) *PersonHandler {
	return &PersonHandler{service: service}
}

// List godoc
// @Summary List roster people
// @Tags People
// @Produce json
// @Param search query string false "Match against name or email"
// @Param active query boolean false "Filter by active flag"
// @Param jobId query string false "Only people qualified for this job"
// @Param page query int false "Page number (default 1)"
// @Param pageSize query int false "Page size (default 20, max 100)"
// @Success 200 {object} response.Envelope
// @Router /people [get]
func (h *PersonHandler) List(c *gin.Context) {
	filter := models.PersonFilter{
		Search: strings.TrimSpace(c.Query("search")),
		JobID:  strings.TrimSpace(c.Query("jobId")),
	}
	switch c.Query("active") {
	case "true":
		active := true
		filter.Active = &active
	case "false":
		active := false
		filter.Active = &active
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("pageSize", "20"))
	filter.SortBy = c.Query("sortBy")
	filter.SortOrder = c.Query("sortOrder")

	people, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, people, pagination)
}

// Get godoc
// @Summary Get one person with qualified jobs
// @Tags People
// @Produce json
// @Param id path string true "Person ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /people/{id} [get]
func (h *PersonHandler) Get(c *gin.Context) {
	person, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, person, nil)
}

// Create godoc
// @Summary Add a volunteer to the roster
// @Tags People
// @Accept json
// @Produce json
// @Param payload body dto.CreatePersonRequest true "Person payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /people [post]
func (h *PersonHandler) Create(c *gin.Context) {
	var req dto.CreatePersonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid person payload"))
		return
	}
	person, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, person)
}

// Update godoc
// @Summary Update a person
// @Tags People
// @Accept json
// @Produce json
// @Param id path string true "Person ID"
// @Param payload body dto.UpdatePersonRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /people/{id} [put]
func (h *PersonHandler) Update(c *gin.Context) {
	var req dto.UpdatePersonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid person payload"))
		return
	}
	person, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, person, nil)
}

// Deactivate godoc
// @Summary Deactivate a person
// @Description Soft delete. The person stops being scheduled but history is kept.
// @Tags People
// @Param id path string true "Person ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /people/{id} [delete]
func (h *PersonHandler) Deactivate(c *gin.Context) {
	if err := h.service.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListUnavailability godoc
// @Summary List a person's blocked date windows
// @Tags People
// @Produce json
// @Param id path string true "Person ID"
// @Success 200 {object} response.Envelope
// @Router /people/{id}/unavailability [get]
func (h *PersonHandler) ListUnavailability(c *gin.Context) {
	windows, err := h.service.ListUnavailability(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, windows, nil)
}

// AddUnavailability godoc
// @Summary Block a date window for a person
// @Tags People
// @Accept json
// @Produce json
// @Param id path string true "Person ID"
// @Param payload body dto.AddUnavailabilityRequest true "Window payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /people/{id}/unavailability [post]
func (h *PersonHandler) AddUnavailability(c *gin.Context) {
	var req dto.AddUnavailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid unavailability payload"))
		return
	}
	window, err := h.service.AddUnavailability(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, window)
}

// RemoveUnavailability godoc
// @Summary Remove a blocked window
// @Tags People
// @Param id path string true "Person ID"
// @Param windowId path string true "Unavailability window ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /people/{id}/unavailability/{windowId} [delete]
func (h *PersonHandler) RemoveUnavailability(c *gin.Context) {
	if err := h.service.RemoveUnavailability(c.Request.Context(), c.Param("id"), c.Param("windowId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
