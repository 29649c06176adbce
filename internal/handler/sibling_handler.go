package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/parroquia-tools/turnos-api/internal/dto"
	"github.com/parroquia-tools/turnos-api/internal/models"
	appErrors "github.com/parroquia-tools/turnos-api/pkg/errors"
	"github.com/parroquia-tools/turnos-api/pkg/response"
)

type siblingService interface {
	List(ctx context.Context) ([]models.SiblingGroup, error)
	Get(ctx context.Context, id string) (*models.SiblingGroup, error)
	Create(ctx context.Context, req dto.CreateSiblingGroupRequest) (*models.SiblingGroup, error)
	Update(ctx context.Context, id string, req dto.UpdateSiblingGroupRequest) (*models.SiblingGroup, error)
	Delete(ctx context.Context, id string) error
}

// SiblingHandler exposes sibling group endpoints.
type SiblingHandler struct {
	service siblingService
}

// NewSiblingHandler constructs the handler.
func NewSiblingHandler(service siblingService) *SiblingHandler {
	return &SiblingHandler{service: service}
}

// List godoc
// @Summary List sibling groups with members
// @Tags SiblingGroups
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /sibling-groups [get]
func (h *SiblingHandler) List(c *gin.Context) {
	groups, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, groups, nil)
}

// Get godoc
// @Summary Get one sibling group
// @Tags SiblingGroups
// @Produce json
// @Param id path string true "Group ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /sibling-groups/{id} [get]
func (h *SiblingHandler) Get(c *gin.Context) {
	group, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, group, nil)
}

// Create godoc
// @Summary Register a sibling group
// @Tags SiblingGroups
// @Accept json
// @Produce json
// @Param payload body dto.CreateSiblingGroupRequest true "Group payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /sibling-groups [post]
func (h *SiblingHandler) Create(c *gin.Context) {
	var req dto.CreateSiblingGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid sibling group payload"))
		return
	}
	group, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, group)
}

// Update godoc
// @Summary Update a sibling group
// @Tags SiblingGroups
// @Accept json
// @Produce json
// @Param id path string true "Group ID"
// @Param payload body dto.UpdateSiblingGroupRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /sibling-groups/{id} [put]
func (h *SiblingHandler) Update(c *gin.Context) {
	var req dto.UpdateSiblingGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid sibling group payload"))
		return
	}
	group, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, group, nil)
}

// Delete godoc
// @Summary Delete a sibling group
// @Tags SiblingGroups
// @Param id path string true "Group ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /sibling-groups/{id} [delete]
func (h *SiblingHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
