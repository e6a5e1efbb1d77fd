package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/odl-api/internal/middleware"
	"github.com/noah-isme/odl-api/internal/models"
	appErrors "github.com/noah-isme/odl-api/pkg/errors"
)

type notificationInboxMock struct {
	listResp       []models.Notification
	listErr        error
	count          int
	countErr       error
	markErr        error
	lastUnreadOnly bool
	markCalled     bool
}

func (m *notificationInboxMock) List(ctx context.Context, actor *models.JWTClaims, unreadOnly bool, limit, offset int) ([]models.Notification, error) {
	m.lastUnreadOnly = unreadOnly
	return m.listResp, m.listErr
}

func (m *notificationInboxMock) CountUnread(ctx context.Context, actor *models.JWTClaims) (int, error) {
	return m.count, m.countErr
}

func (m *notificationInboxMock) MarkRead(ctx context.Context, id string, actor *models.JWTClaims) error {
	m.markCalled = true
	return m.markErr
}

func TestNotificationHandlerListUnread(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &notificationInboxMock{
		listResp: []models.Notification{{ID: "n1", Category: models.NotificationCategoryApprovalRequest}},
	}
	handler := NewNotificationHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/notifications?unread=true", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "fac-1", Role: models.RoleFaculty})

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mockSvc.lastUnreadOnly)
}

func TestNotificationHandlerUnreadCount(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &notificationInboxMock{count: 4}
	handler := NewNotificationHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/notifications/unread-count", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "fac-1", Role: models.RoleFaculty})

	handler.UnreadCount(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"unread":4`)
}

func TestNotificationHandlerMarkReadNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &notificationInboxMock{markErr: appErrors.Clone(appErrors.ErrNotFound, "notification not found")}
	handler := NewNotificationHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/notifications/n1/read", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "n1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "fac-1", Role: models.RoleFaculty})

	handler.MarkRead(c)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.True(t, mockSvc.markCalled)
}
