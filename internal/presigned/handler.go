package presigned

import (
	"errors"
	"net/http"
	"time"

	"github.com/abduss/uploads/internal/auth"
	"github.com/abduss/uploads/internal/upload"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RegisterRoutes mounts the presigned link endpoint next to the upload routes.
func RegisterRoutes(group *gin.RouterGroup, service *Service) {
	h := &handler{service: service}
	group.GET("/uploads/:id/presigned-url", h.generateGetURL)
}

type handler struct {
	service *Service
}

func (h *handler) generateGetURL(c *gin.Context) {
	ownerID, ok := auth.RequireUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	uploadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid upload id"})
		return
	}

	var ttl time.Duration
	if raw := c.Query("ttl"); raw != "" {
		ttl, err = time.ParseDuration(raw)
		if err != nil || ttl <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ttl"})
			return
		}
	}

	link, err := h.service.GenerateGetURL(c.Request.Context(), uploadID, ownerID, ttl)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, link)
	case errors.Is(err, ErrInvalidTTL):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, upload.ErrUploadNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "upload not found"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate presigned url"})
	}
}
