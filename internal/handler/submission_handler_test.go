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

	"github.com/noah-isme/odl-api/internal/dto"
	"github.com/noah-isme/odl-api/internal/middleware"
	"github.com/noah-isme/odl-api/internal/models"
	appErrors "github.com/noah-isme/odl-api/pkg/errors"
)

type submissionServiceMock struct {
	createResp   *models.Submission
	createErr    error
	getResp      *models.Submission
	getErr       error
	listResp     []models.Submission
	listErr      error
	lastQuery    dto.SubmissionQuery
	createCalled bool
	listCalled   bool
}

func (m *submissionServiceMock) Create(ctx context.Context, req dto.CreateSubmissionRequest, actor *models.JWTClaims) (*models.Submission, error) {
	m.createCalled = true
	return m.createResp, m.createErr
}

func (m *submissionServiceMock) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Submission, error) {
	return m.getResp, m.getErr
}

func (m *submissionServiceMock) List(ctx context.Context, query dto.SubmissionQuery, actor *models.JWTClaims) ([]models.Submission, error) {
	m.listCalled = true
	m.lastQuery = query
	return m.listResp, m.listErr
}

func TestSubmissionHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &submissionServiceMock{
		createResp: &models.Submission{ID: "s1", Status: models.SubmissionStatusSubmitted},
	}
	handler := NewSubmissionHandler(mockSvc)

	payload, _ := json.Marshal(dto.CreateSubmissionRequest{
		EventID:   "ev-1",
		MentorID:  "fac-1",
		AdvisorID: "fac-2",
	})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/submissions", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent, DepartmentID: "dept-1"})

	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, mockSvc.createCalled)
}

func TestSubmissionHandlerCreateInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &submissionServiceMock{}
	handler := NewSubmissionHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/submissions", bytes.NewBufferString(`{"eventId":`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent})

	handler.Create(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, mockSvc.createCalled)
}

func TestSubmissionHandlerListParsesQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &submissionServiceMock{listResp: []models.Submission{{ID: "s1"}}}
	handler := NewSubmissionHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/submissions?status=submitted,in_review&stage=mentor&pending=true&limit=10", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "fac-1", Role: models.RoleFaculty})

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mockSvc.listCalled)
	assert.Equal(t, models.StageMentor, mockSvc.lastQuery.Stage)
	assert.True(t, mockSvc.lastQuery.Pending)
	assert.Equal(t, 10, mockSvc.lastQuery.Limit)
	assert.Equal(t, []models.SubmissionStatus{
		models.SubmissionStatusSubmitted,
		models.SubmissionStatusInReview,
	}, mockSvc.lastQuery.Status)
}

func TestSubmissionHandlerGetForbidden(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &submissionServiceMock{getErr: appErrors.ErrForbidden}
	handler := NewSubmissionHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/submissions/s1", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "s1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "someone", Role: models.RoleStudent})

	handler.Get(c)
	require.Equal(t, http.StatusForbidden, w.Code)
}
