package upload

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/abduss/uploads/internal/auth"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// multipartOverhead is the slack allowed on top of the file size for form boundaries and fields.
const multipartOverhead = 1 << 20

// RegisterRoutes mounts upload operations under the provided router group.
func RegisterRoutes(group *gin.RouterGroup, service *Service) {
	handler := &httpHandler{service: service}
	uploads := group.Group("/uploads")
	uploads.POST("", handler.uploadFile)
	uploads.GET("", handler.listUploads)
	uploads.GET("/file/:filename", handler.downloadFile)
	uploads.GET("/:id", handler.getUpload)
	uploads.PATCH("/:id/label", handler.updateLabel)
	uploads.DELETE("/:id", handler.deleteUpload)
}

type httpHandler struct {
	service *Service
}

type listQuery struct {
	Label  string `form:"label" binding:"omitempty,max=64"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=100"`
	Offset int    `form:"offset" binding:"omitempty,min=0"`
}

type updateLabelRequest struct {
	Label string `json:"label" binding:"required"`
}

func (h *httpHandler) uploadFile(c *gin.Context) {
	ownerID, ok := auth.RequireUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.service.maxFileSize+multipartOverhead)

	file, err := readFormFile(c, h.service.maxFileSize)
	if err != nil {
		writeError(c, err, "failed to read upload")
		return
	}

	var input Input
	if label, ok := c.GetPostForm("label"); ok {
		input.Label = &label
	}

	created, err := h.service.Upload(c.Request.Context(), file, input, ownerID, serverInfo(c))
	if err != nil {
		writeError(c, err, "failed to upload file")
		return
	}

	c.JSON(http.StatusCreated, created)
}

func (h *httpHandler) listUploads(c *gin.Context) {
	ownerID, ok := auth.RequireUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	list, err := h.service.GetUploads(c.Request.Context(), Filter{Label: q.Label, Limit: q.Limit, Offset: q.Offset}, ownerID)
	if err != nil {
		writeError(c, err, "failed to list uploads")
		return
	}

	c.JSON(http.StatusOK, list)
}

func (h *httpHandler) getUpload(c *gin.Context) {
	ownerID, ok := auth.RequireUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid upload id"})
		return
	}

	u, err := h.service.GetUpload(c.Request.Context(), id, ownerID)
	if err != nil {
		writeError(c, err, "failed to fetch upload")
		return
	}

	c.JSON(http.StatusOK, u)
}

func (h *httpHandler) updateLabel(c *gin.Context) {
	ownerID, ok := auth.RequireUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid upload id"})
		return
	}

	var req updateLabelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	u, err := h.service.UpdateUploadLabel(c.Request.Context(), id, req.Label, ownerID)
	if err != nil {
		writeError(c, err, "failed to update label")
		return
	}

	c.JSON(http.StatusOK, u)
}

func (h *httpHandler) deleteUpload(c *gin.Context) {
	ownerID, ok := auth.RequireUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid upload id"})
		return
	}

	if err := h.service.DeleteUpload(c.Request.Context(), id, ownerID); err != nil {
		writeError(c, err, "failed to delete upload")
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *httpHandler) downloadFile(c *gin.Context) {
	ownerID, ok := auth.RequireUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	filename := c.Param("filename")
	reader, err := h.service.GetFile(c.Request.Context(), filename, ownerID)
	if err != nil {
		writeError(c, err, "failed to download file")
		return
	}
	defer reader.Close()

	c.DataFromReader(http.StatusOK, -1, contentTypeFor(filename, ""), reader, nil)
}

// readFormFile returns nil, nil when the request carries no file part.
func readFormFile(c *gin.Context, maxSize int64) (*File, error) {
	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, ErrFileTooLarge
		}
		return nil, nil
	}
	if header.Size > maxSize {
		return nil, ErrFileTooLarge
	}

	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf, err := io.ReadAll(io.LimitReader(f, maxSize+1))
	if err != nil {
		return nil, err
	}

	return &File{
		OriginalName: header.Filename,
		ContentType:  contentTypeFor(header.Filename, header.Header.Get("Content-Type")),
		Buffer:       buf,
	}, nil
}

func serverInfo(c *gin.Context) ServerInfo {
	protocol := "http"
	if c.Request.TLS != nil {
		protocol = "https"
	}
	if forwarded := strings.TrimSpace(c.GetHeader("X-Forwarded-Proto")); forwarded != "" {
		protocol = strings.ToLower(strings.Split(forwarded, ",")[0])
	}
	return ServerInfo{Protocol: protocol, Host: c.Request.Host}
}

func contentTypeFor(filename, declared string) string {
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	if byExt := mime.TypeByExtension(path.Ext(filename)); byExt != "" {
		return byExt
	}
	return "application/octet-stream"
}

func writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrFileRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": ErrFileRequired.Error()})
	case errors.Is(err, ErrFileTooLarge):
		c.JSON(http.StatusBadRequest, gin.H{"error": "file too large"})
	case errors.Is(err, ErrUploadNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "upload not found"})
	case errors.Is(err, ErrObjectNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
	case errors.Is(err, ErrInvalidLabel):
		c.JSON(http.StatusConflict, gin.H{"error": "Invalid label"})
	default:
		_ = c.Error(err)
		if hub := sentrygin.GetHubFromContext(c); hub != nil {
			hub.CaptureException(err)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}
