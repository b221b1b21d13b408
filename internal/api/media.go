package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stwalsh4118/airwave/internal/db"
	"github.com/stwalsh4118/airwave/internal/models"
)

// CreateMediaRequest represents a request to register a catalog entry
type CreateMediaRequest struct {
	Title      string  `json:"title" binding:"required"`
	ShowName   *string `json:"show_name,omitempty"`
	Season     *int    `json:"season,omitempty"`
	Episode    *int    `json:"episode,omitempty"`
	DurationMs int64   `json:"duration_ms" binding:"required,gt=0"`
}

// MediaListResponse represents a list of catalog entries
type MediaListResponse struct {
	Media []*models.Media `json:"media"`
}

// MediaHandler handles media catalog API requests
type MediaHandler struct {
	media *db.MediaRepository
}

// NewMediaHandler creates a new media handler instance
func NewMediaHandler(media *db.MediaRepository) *MediaHandler {
	return &MediaHandler{media: media}
}

// Create handles POST /media
func (h *MediaHandler) Create(c *gin.Context) {
	var req CreateMediaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	m := models.NewMedia(req.Title, req.DurationMs)
	m.ShowName = req.ShowName
	m.Season = req.Season
	m.Episode = req.Episode

	if err := h.media.Create(c.Request.Context(), m); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create media"})
		return
	}
	c.JSON(http.StatusCreated, m)
}

// List handles GET /media?limit=&offset=
func (h *MediaHandler) List(c *gin.Context) {
	limit, ok := parseIntQuery(c, "limit", 100)
	if !ok {
		return
	}
	offset, ok := parseIntQuery(c, "offset", 0)
	if !ok {
		return
	}

	media, err := h.media.List(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list media"})
		return
	}
	c.JSON(http.StatusOK, MediaListResponse{Media: media})
}

// Get handles GET /media/:id
func (h *MediaHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid media id"})
		return
	}

	m, err := h.media.GetByID(c.Request.Context(), id)
	if err != nil {
		if db.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "media not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get media"})
		return
	}
	c.JSON(http.StatusOK, m)
}

// Delete handles DELETE /media/:id
func (h *MediaHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid media id"})
		return
	}

	if err := h.media.Delete(c.Request.Context(), id); err != nil {
		if db.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "media not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete media"})
		return
	}
	c.Status(http.StatusNoContent)
}

// parseIntQuery reads a non-negative integer query parameter with a default
func parseIntQuery(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name + " parameter"})
		return 0, false
	}
	return n, true
}

// SetupMediaRoutes registers media catalog routes
func SetupMediaRoutes(apiGroup *gin.RouterGroup, media *db.MediaRepository) {
	handler := NewMediaHandler(media)

	group := apiGroup.Group("/media")
	group.POST("", handler.Create)
	group.GET("", handler.List)
	group.GET("/:id", handler.Get)
	group.DELETE("/:id", handler.Delete)
}
