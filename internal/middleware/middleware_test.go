package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"chat-sync/internal/auth"
)

type authenticatorMock struct {
	mock.Mock
}

func (m *authenticatorMock) Authenticate(ctx context.Context, token string) (auth.Claims, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(auth.Claims), args.Error(1)
}

func setupRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers = append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": c.GetString("userID")})
	})
	r.GET("/x", handlers...)
	return r
}

func TestAuthMiddleware(t *testing.T) {
	authn := new(authenticatorMock)
	authn.On("Authenticate", mock.Anything, "good").Return(auth.Claims{UserID: "u1", SessionID: "s1"}, nil)
	authn.On("Authenticate", mock.Anything, "bad").Return(auth.Claims{}, auth.ErrInvalidToken)
	router := setupRouter(AuthMiddleware(authn))

	cases := []struct {
		name   string
		header string
		query  string
		status int
	}{
		{"missing", "", "", http.StatusUnauthorized},
		{"malformed", "Token good", "", http.StatusUnauthorized},
		{"header", "Bearer good", "", http.StatusOK},
		{"query", "", "?token=good", http.StatusOK},
		{"invalid", "Bearer bad", "", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/x"+tc.query, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestRateLimit(t *testing.T) {
	pool := NewLimiterPool(0.001, 2)
	router := setupRouter(func(c *gin.Context) { c.Set("userID", "u1") }, RateLimit(pool))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	assert.True(t, pool.Allow("someone-else"))
}
