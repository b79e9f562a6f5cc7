package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"chat-sync/internal/auth"
	"chat-sync/internal/logger"
)

// Authenticator validates session tokens; auth.Service satisfies it.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (auth.Claims, error)
}

// AuthMiddleware validates the bearer token from the Authorization header,
// or from the token query parameter for websocket upgrades.
func AuthMiddleware(authenticator Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}

		claims, err := authenticator.Authenticate(c.Request.Context(), token)
		if err != nil {
			logger.Log.Debug("auth_rejected",
				zap.String("path", c.FullPath()),
				zap.String("headers", logger.SafeHeaders(c.Request)),
				zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set("userID", claims.UserID)
		c.Set("sessionID", claims.SessionID)
		c.Set("token", token)
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		token := c.Query("token")
		return token, token != ""
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
