package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parroquia-tools/turnos-api/internal/dto"
	"github.com/parroquia-tools/turnos-api/internal/models"
	appErrors "github.com/parroquia-tools/turnos-api/pkg/errors"
	"github.com/parroquia-tools/turnos-api/pkg/response"
)

type scheduleServiceMock struct {
	generateResp *dto.GenerateScheduleResponse
	generateErr  error
	saveResp     *dto.ScheduleDetailResponse
	saveErr      error
	savedWith    dto.SaveScheduleRequest
	publishErr   error
}

func (m *scheduleServiceMock) Generate(ctx context.Context, req dto.GenerateScheduleRequest) (*dto.GenerateScheduleResponse, error) {
	return m.generateResp, m.generateErr
}

func (m *scheduleServiceMock) Save(ctx context.Context, req dto.SaveScheduleRequest) (*dto.ScheduleDetailResponse, error) {
	m.savedWith = req
	return m.saveResp, m.saveErr
}

func (m *scheduleServiceMock) List(ctx context.Context, query dto.ScheduleQuery) ([]models.Schedule, error) {
	return nil, nil
}

func (m *scheduleServiceMock) Get(ctx context.Context, id string) (*dto.ScheduleDetailResponse, error) {
	return m.saveResp, m.saveErr
}

func (m *scheduleServiceMock) GetByMonth(ctx context.Context, year, month int) (*dto.ScheduleDetailResponse, error) {
	return m.saveResp, m.saveErr
}

func (m *scheduleServiceMock) Completeness(ctx context.Context, id string) (*dto.CompletenessView, error) {
	return &dto.CompletenessView{IsComplete: true}, nil
}

func (m *scheduleServiceMock) Publish(ctx context.Context, id string) (*dto.ScheduleDetailResponse, error) {
	return m.saveResp, m.publishErr
}

func (m *scheduleServiceMock) Unpublish(ctx context.Context, id string) (*dto.ScheduleDetailResponse, error) {
	return m.saveResp, nil
}

func (m *scheduleServiceMock) Archive(ctx context.Context, id string) (*dto.ScheduleDetailResponse, error) {
	return m.saveResp, nil
}

func (m *scheduleServiceMock) Delete(ctx context.Context, id string) error {
	return nil
}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) response.Envelope {
	t.Helper()
	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope
}

func TestScheduleHandlerGenerate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &scheduleServiceMock{
		generateResp: &dto.GenerateScheduleResponse{
			ProposalID: "prop-1",
			Year:       2026,
			Month:      2,
			Name:       "Febrero 2026",
		},
	}
	handler := NewScheduleHandler(mockSvc)

	payload, _ := json.Marshal(dto.GenerateScheduleRequest{Year: 2026, Month: 2})
	c, w := newGinContext(http.MethodPost, "/schedules/generate", payload)

	handler.Generate(c)
	require.Equal(t, http.StatusOK, w.Code)

	envelope := decodeEnvelope(t, w)
	data, ok := envelope.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "prop-1", data["proposalId"])
	assert.Equal(t, "Febrero 2026", data["name"])
}

func TestScheduleHandlerGenerateRejectsMalformedBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewScheduleHandler(&scheduleServiceMock{})

	c, w := newGinContext(http.MethodPost, "/schedules/generate", []byte(`{"year":"not-a-number"}`))

	handler.Generate(c)
	require.Equal(t, http.StatusBadRequest, w.Code)

	envelope := decodeEnvelope(t, w)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, appErrors.ErrValidation.Code, envelope.Error.Code)
}

func TestScheduleHandlerSaveTakesProposalFromPath(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &scheduleServiceMock{
		saveResp: &dto.ScheduleDetailResponse{ID: "sched-1", Status: string(models.ScheduleDraft)},
	}
	handler := NewScheduleHandler(mockSvc)

	c, w := newGinContext(http.MethodPost, "/schedules/prop-1/save", nil)
	c.Params = gin.Params{{Key: "id", Value: "prop-1"}}

	handler.Save(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "prop-1", mockSvc.savedWith.ProposalID)
}

func TestScheduleHandlerListRejectsBadYear(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewScheduleHandler(&scheduleServiceMock{})

	c, w := newGinContext(http.MethodGet, "/schedules?year=abc", nil)

	handler.List(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScheduleHandlerPublishPropagatesStateConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &scheduleServiceMock{
		publishErr: appErrors.Clone(appErrors.ErrStateConflict, "only draft schedules can be published"),
	}
	handler := NewScheduleHandler(mockSvc)

	c, w := newGinContext(http.MethodPost, "/schedules/sched-1/publish", nil)
	c.Params = gin.Params{{Key: "id", Value: "sched-1"}}

	handler.Publish(c)
	require.Equal(t, http.StatusConflict, w.Code)

	envelope := decodeEnvelope(t, w)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, appErrors.ErrStateConflict.Code, envelope.Error.Code)
}
