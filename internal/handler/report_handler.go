package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/parroquia-tools/turnos-api/internal/dto"
	"github.com/parroquia-tools/turnos-api/internal/middleware"
	appErrors "github.com/parroquia-tools/turnos-api/pkg/errors"
	"github.com/parroquia-tools/turnos-api/pkg/response"
)

type reportService interface {
	Fairness(ctx context.Context, year int) (*dto.FairnessReportResponse, bool, error)
	PersonHistory(ctx context.Context, personID string, limit int) (*dto.PersonHistoryResponse, error)
	MonthSummary(ctx context.Context, year, month int) (*dto.MonthSummaryResponse, bool, error)
}

// ReportHandler exposes read-side reporting endpoints.
type ReportHandler struct {
	service reportService
}

// NewReportHandler constructs the handler.
func NewReportHandler(service reportService) *ReportHandler {
	return &ReportHandler{service: service}
}

// Fairness godoc
// @Summary Rank the active roster by assignment load
// @Description Least served people come first. Cached until the next publish.
// @Tags Reports
// @Produce json
// @Param year query int false "Year (defaults to current)"
// @Success 200 {object} response.Envelope
// @Router /reports/fairness [get]
func (h *ReportHandler) Fairness(c *gin.Context) {
	year := 0
	if raw := c.Query("year"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "year must be a number"))
			return
		}
		year = parsed
	}

	start := time.Now()
	report, cacheHit, err := h.service.Fairness(c.Request.Context(), year)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	meta := middleware.ExtractMeta(c)
	if meta == nil {
		meta = map[string]interface{}{}
	}
	meta["processing_time_ms"] = time.Since(start).Milliseconds()
	response.JSON(c, http.StatusOK, report, nil, meta)
}

// PersonHistory godoc
// @Summary List a person's past services, newest first
// @Tags Reports
// @Produce json
// @Param id path string true "Person ID"
// @Param limit query int false "Max entries (default 20, max 100)"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /reports/people/{id}/history [get]
func (h *ReportHandler) PersonHistory(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "limit must be a number"))
			return
		}
		limit = parsed
	}
	report, err := h.service.PersonHistory(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// MonthSummary godoc
// @Summary Summarise a stored month's coverage
// @Tags Reports
// @Produce json
// @Param year query int true "Year"
// @Param month query int true "Month 1-12"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /reports/summary [get]
func (h *ReportHandler) MonthSummary(c *gin.Context) {
	year, err := strconv.Atoi(c.Query("year"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "year is required and must be a number"))
		return
	}
	month, err := strconv.Atoi(c.Query("month"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "month is required and must be a number"))
		return
	}

	start := time.Now()
	summary, cacheHit, err := h.service.MonthSummary(c.Request.Context(), year, month)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	meta := middleware.ExtractMeta(c)
	if meta == nil {
		meta = map[string]interface{}{}
	}
	meta["processing_time_ms"] = time.Since(start).Milliseconds()
	response.JSON(c, http.StatusOK, summary, nil, meta)
}
