package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"chat-sync/internal/storage"
)

// MediaHandler serves stored objects.
type MediaHandler struct {
	objects storage.ObjectStore
}

func NewMediaHandler(objects storage.ObjectStore) *MediaHandler {
	return &MediaHandler{objects: objects}
}

// Get handles GET /media/*path.
func (h *MediaHandler) Get(c *gin.Context) {
	path := strings.TrimPrefix(c.Param("path"), "/")
	if path == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "object not found"})
		return
	}
	obj, err := h.objects.Open(c.Request.Context(), path)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "object not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load object"})
		return
	}
	c.Header("Cache-Control", "private, max-age=86400")
	c.Data(http.StatusOK, obj.ContentType, obj.Data)
}
