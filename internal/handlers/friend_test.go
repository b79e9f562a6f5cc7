package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-sync/internal/friends"
	"chat-sync/internal/mocks"
	"chat-sync/internal/models"
)

func setupFriendRouter(wf *mocks.FriendWorkflowMock) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewFriendHandler(wf, nil)
	r := gin.New()
	r.Use(withUser("u1"))
	r.GET("/friends/requests", handler.ListRequests)
	r.POST("/friends/requests", handler.SendRequest)
	r.POST("/friends/requests/:id/accept", handler.AcceptRequest)
	r.DELETE("/friends/requests/:id", handler.RejectRequest)
	return r
}

func TestListFriendRequests(t *testing.T) {
	wf := new(mocks.FriendWorkflowMock)
	router := setupFriendRouter(wf)
	wf.On("Incoming", mock.Anything, "u1").Return([]models.FriendRequest{{ID: "u0u1", SenderID: "u0", ReceiverID: "u1"}}, nil).Once()
	wf.On("Outgoing", mock.Anything, "u1").Return(nil, nil).Once()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/friends/requests", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"outgoing":[]`)
	assert.Contains(t, rec.Body.String(), `"sender_id":"u0"`)
	wf.AssertExpectations(t)
}

func TestSendFriendRequestErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{friends.ErrSelfRequest, http.StatusBadRequest},
		{friends.ErrUnknownUser, http.StatusNotFound},
		{friends.ErrDuplicateRequest, http.StatusConflict},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		wf := new(mocks.FriendWorkflowMock)
		router := setupFriendRouter(wf)
		wf.On("Send", mock.Anything, "u1", "u2").Return(nil, tc.err).Once()

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/friends/requests", bytes.NewBufferString(`{"receiver_id":"u2"}`)))

		assert.Equal(t, tc.status, rec.Code, tc.err.Error())
		wf.AssertExpectations(t)
	}
}

func TestAcceptFriendRequest(t *testing.T) {
	wf := new(mocks.FriendWorkflowMock)
	router := setupFriendRouter(wf)
	wf.On("Accept", mock.Anything, "u0u1", "u1").Return(models.Conversation{ID: "u0u1"}, nil).Once()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/friends/requests/u0u1/accept", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"conversation_id":"u0u1"}`, rec.Body.String())
	wf.AssertExpectations(t)
}

func TestAcceptByNonReceiver(t *testing.T) {
	wf := new(mocks.FriendWorkflowMock)
	router := setupFriendRouter(wf)
	wf.On("Accept", mock.Anything, "u1u2", "u1").Return(nil, friends.ErrNotReceiver).Once()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/friends/requests/u1u2/accept", nil))

	require.Equal(t, http.StatusForbidden, rec.Code)
	wf.AssertExpectations(t)
}

func TestRejectFriendRequest(t *testing.T) {
	wf := new(mocks.FriendWorkflowMock)
	router := setupFriendRouter(wf)
	wf.On("Reject", mock.Anything, "u0u1", "u1").Return(nil).Once()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/friends/requests/u0u1", nil))

	require.Equal(t, http.StatusNoContent, rec.Code)
	wf.AssertExpectations(t)
}
