package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-sync/internal/chat"
	"chat-sync/internal/identity"
	"chat-sync/internal/mocks"
	"chat-sync/internal/models"
	"chat-sync/internal/repositories"
	"chat-sync/internal/storage"
)

type chatDeps struct {
	lister   *mocks.ChatListerMock
	chats    *mocks.ChatRepositoryMock
	contacts *mocks.ContactRepositoryMock
	messages *mocks.MessageRepositoryMock
	sender   *mocks.SenderMock
}

func (d chatDeps) assert(t *testing.T) {
	d.lister.AssertExpectations(t)
	d.chats.AssertExpectations(t)
	d.contacts.AssertExpectations(t)
	d.messages.AssertExpectations(t)
	d.sender.AssertExpectations(t)
}

func withUser(userID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("userID", userID)
		c.Next()
	}
}

func setupChatRouter(t *testing.T) (*gin.Engine, chatDeps) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	deps := chatDeps{
		lister:   new(mocks.ChatListerMock),
		chats:    new(mocks.ChatRepositoryMock),
		contacts: new(mocks.ContactRepositoryMock),
		messages: new(mocks.MessageRepositoryMock),
		sender:   new(mocks.SenderMock),
	}
	handler := NewChatHandler(deps.lister, deps.chats, deps.contacts, deps.messages, deps.sender, 1024)

	r := gin.New()
	r.Use(withUser("u1"))
	r.GET("/chats", handler.ListChats)
	r.POST("/chats/start", handler.StartChat)
	r.GET("/conversations/:id/messages", handler.GetMessages)
	r.POST("/conversations/:id/messages", handler.PostMessage)
	return r, deps
}

func TestListChatsSuccess(t *testing.T) {
	router, deps := setupChatRouter(t)
	deps.lister.On("Snapshot", mock.Anything, "u1").Return([]models.ChatPreview{
		{ConversationID: "c1", PeerID: "u2", Name: "bob", Avatar: "http://a/1.png"},
	}, nil).Once()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/chats", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Chats []models.ChatPreview `json:"chats"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Chats, 1)
	assert.Equal(t, "bob", resp.Chats[0].Name)
	deps.assert(t)
}

func TestListChatsError(t *testing.T) {
	router, deps := setupChatRouter(t)
	deps.lister.On("Snapshot", mock.Anything, "u1").Return(nil, assert.AnError).Once()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/chats", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	deps.assert(t)
}

func TestStartChatSuccess(t *testing.T) {
	router, deps := setupChatRouter(t)
	id := identity.DeriveConversationID("u1", "u2")
	deps.contacts.On("IsContact", mock.Anything, "u1", "u2").Return(true, nil).Once()
	deps.chats.On("CreateOrGetDirect", mock.Anything, "u1", "u2").
		Return(models.NewDirect(id, "u1", "u2", time.Now()), nil).Once()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/chats/start", bytes.NewBufferString(`{"peer_id":"u2"}`)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), id)
	deps.assert(t)
}

func TestStartChatRequiresContact(t *testing.T) {
	router, deps := setupChatRouter(t)
	deps.contacts.On("IsContact", mock.Anything, "u1", "u3").Return(false, nil).Once()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/chats/start", bytes.NewBufferString(`{"peer_id":"u3"}`)))

	require.Equal(t, http.StatusForbidden, rec.Code)
	deps.assert(t)
}

func TestStartChatWithSelf(t *testing.T) {
	router, deps := setupChatRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/chats/start", bytes.NewBufferString(`{"peer_id":"u1"}`)))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	deps.assert(t)
}

func TestGetMessagesForMember(t *testing.T) {
	router, deps := setupChatRouter(t)
	deps.chats.On("GetChat", mock.Anything, "c1").Return(models.NewDirect("c1", "u1", "u2", time.Now()), nil).Once()
	deps.messages.On("ListMessages", mock.Anything, "c1").Return([]models.Message{{ID: "m1", Text: "hi", SenderID: "u2"}}, nil).Once()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/conversations/c1/messages", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"m1"`)
	deps.assert(t)
}

func TestGetMessagesForOutsider(t *testing.T) {
	router, deps := setupChatRouter(t)
	deps.chats.On("GetChat", mock.Anything, "c1").Return(models.NewDirect("c1", "u2", "u3", time.Now()), nil).Once()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/conversations/c1/messages", nil))

	require.Equal(t, http.StatusForbidden, rec.Code)
	deps.assert(t)
}

func TestGetMessagesOfUncreatedDirectIsEmpty(t *testing.T) {
	router, deps := setupChatRouter(t)
	id := identity.DeriveConversationID("u1", "u2")
	deps.chats.On("GetChat", mock.Anything, id).Return(nil, repositories.ErrChatNotFound).Once()
	deps.messages.On("ListMessages", mock.Anything, id).Return(nil, nil).Once()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/conversations/"+id+"/messages?peer=u2", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"messages":[]}`, rec.Body.String())
	deps.assert(t)
}

func TestGetMessagesUnknownConversation(t *testing.T) {
	router, deps := setupChatRouter(t)
	deps.chats.On("GetChat", mock.Anything, "nope").Return(nil, repositories.ErrChatNotFound).Once()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/conversations/nope/messages?peer=u2", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
	deps.assert(t)
}

func TestPostMessageJSON(t *testing.T) {
	router, deps := setupChatRouter(t)
	deps.sender.On("Send", mock.Anything, chat.SendRequest{ConversationID: "c1", SenderID: "u1", Text: "hello", PeerID: "u2"}).
		Return(chat.SendResult{Sent: true, Message: models.Message{ID: "m9", Text: "hello"}}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/c1/messages", bytes.NewBufferString(`{"text":"hello","peer_id":"u2"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"m9"`)
	assert.NotContains(t, rec.Body.String(), "fanout_failed")
	deps.assert(t)
}

func TestPostMessageReportsFanoutFailures(t *testing.T) {
	router, deps := setupChatRouter(t)
	deps.sender.On("Send", mock.Anything, mock.Anything).Return(chat.SendResult{
		Sent:           true,
		Message:        models.Message{ID: "m9"},
		FanoutFailures: []chat.FanoutFailure{{UserID: "u2", Err: assert.AnError}},
	}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/c1/messages", bytes.NewBufferString(`{"text":"hello"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"fanout_failed":["u2"]`)
	deps.assert(t)
}

func TestPostMessageEmpty(t *testing.T) {
	router, deps := setupChatRouter(t)
	deps.sender.On("Send", mock.Anything, mock.Anything).Return(chat.SendResult{}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/c1/messages", bytes.NewBufferString(`{"text":"   "}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	deps.assert(t)
}

func TestPostMessageStageErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"not image", &chat.SendError{Stage: "image", Err: storage.ErrNotImage}, http.StatusUnsupportedMediaType},
		{"unknown conversation", &chat.SendError{Stage: "conversation", Err: repositories.ErrChatNotFound}, http.StatusNotFound},
		{"outsider", &chat.SendError{Stage: "conversation", Err: chat.ErrNotParticipant}, http.StatusForbidden},
		{"append", &chat.SendError{Stage: "append", Err: assert.AnError}, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router, deps := setupChatRouter(t)
			deps.sender.On("Send", mock.Anything, mock.Anything).Return(chat.SendResult{}, tc.err).Once()

			req := httptest.NewRequest(http.MethodPost, "/conversations/c1/messages", bytes.NewBufferString(`{"text":"x"}`))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			require.Equal(t, tc.status, rec.Code)
			deps.assert(t)
		})
	}
}

func multipartBody(t *testing.T, text string, image []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("text", text))
	if image != nil {
		part, err := w.CreateFormFile("image", "pic.png")
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestPostMessageMultipartImage(t *testing.T) {
	router, deps := setupChatRouter(t)
	image := []byte("\x89PNG\r\n\x1a\nfake")
	deps.sender.On("Send", mock.Anything, chat.SendRequest{ConversationID: "c1", SenderID: "u1", Image: image}).
		Return(chat.SendResult{Sent: true, Message: models.Message{ID: "m1", ImageRef: "images/c1/x.png"}}, nil).Once()

	body, contentType := multipartBody(t, "", image)
	req := httptest.NewRequest(http.MethodPost, "/conversations/c1/messages", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	deps.assert(t)
}

func TestPostMessageImageTooLarge(t *testing.T) {
	router, deps := setupChatRouter(t)

	body, contentType := multipartBody(t, "", bytes.Repeat([]byte{1}, 2048))
	req := httptest.NewRequest(http.MethodPost, "/conversations/c1/messages", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	deps.assert(t)
}
