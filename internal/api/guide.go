package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/airwave/internal/guide"
	"github.com/stwalsh4118/airwave/internal/models"
)

// GuideChannelResponse is one channel's slice of the published guide
type GuideChannelResponse struct {
	Channel  *models.Channel       `json:"channel"`
	Programs []models.GuideProgram `json:"programs"`
}

// GuideResponse represents the published guide window
type GuideResponse struct {
	Channels    []GuideChannelResponse `json:"channels"`
	BuiltAtMs   int64                  `json:"built_at_ms"`
	WindowEndMs int64                  `json:"window_end_ms"`
}

// ChannelWindowResponse represents a one-off guide window for a single channel
type ChannelWindowResponse struct {
	Programs []models.GuideProgram `json:"programs"`
	FromMs   int64                 `json:"from_ms"`
	ToMs     int64                 `json:"to_ms"`
}

// GuideHandler handles guide-related API requests
type GuideHandler struct {
	guideService *guide.Service
	window       time.Duration
}

// NewGuideHandler creates a new guide handler instance
func NewGuideHandler(guideService *guide.Service, window time.Duration) *GuideHandler {
	return &GuideHandler{
		guideService: guideService,
		window:       window,
	}
}

// Get handles GET /guide
func (h *GuideHandler) Get(c *gin.Context) {
	cached, err := h.guideService.Get(c.Request.Context())
	if err != nil {
		if errors.Is(err, guide.ErrGuideNotReady) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "guide not built yet"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get guide"})
		return
	}

	resp := GuideResponse{
		Channels:    make([]GuideChannelResponse, 0, len(cached.Channels)),
		BuiltAtMs:   cached.BuiltAtMs,
		WindowEndMs: cached.WindowEndMs,
	}
	for _, cg := range cached.Channels {
		resp.Channels = append(resp.Channels, GuideChannelResponse{
			Channel:  cg.Channel,
			Programs: cg.Programs,
		})
	}
	c.JSON(http.StatusOK, resp)
}

// Refresh handles POST /guide/refresh. The rebuild runs detached; a refresh
// already in flight is collapsed rather than queued.
func (h *GuideHandler) Refresh(c *gin.Context) {
	go func() {
		_ = h.guideService.Refresh(context.Background(), h.window)
	}()
	c.JSON(http.StatusAccepted, gin.H{"status": "refresh started"})
}

// ChannelWindow handles GET /channels/:id/guide?from=&to=
func (h *GuideHandler) ChannelWindow(c *gin.Context) {
	id, ok := parseChannelID(c)
	if !ok {
		return
	}

	nowMs := time.Now().UnixMilli()
	fromMs, ok := parseMsQuery(c, "from", nowMs)
	if !ok {
		return
	}
	toMs, ok := parseMsQuery(c, "to", fromMs+h.window.Milliseconds())
	if !ok {
		return
	}
	if toMs <= fromMs {
		c.JSON(http.StatusBadRequest, gin.H{"error": "to must be after from"})
		return
	}

	programs, err := h.guideService.ChannelLineup(c.Request.Context(), id, fromMs, toMs)
	if err != nil {
		if errors.Is(err, guide.ErrChannelNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "channel not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build channel guide"})
		return
	}

	c.JSON(http.StatusOK, ChannelWindowResponse{
		Programs: programs,
		FromMs:   fromMs,
		ToMs:     toMs,
	})
}

// parseMsQuery reads an epoch-milliseconds query parameter with a default
func parseMsQuery(c *gin.Context, name string, def int64) (int64, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name + " parameter"})
		return 0, false
	}
	return ms, true
}

// SetupGuideRoutes registers guide routes
func SetupGuideRoutes(apiGroup *gin.RouterGroup, guideService *guide.Service, window time.Duration) {
	handler := NewGuideHandler(guideService, window)

	apiGroup.GET("/guide", handler.Get)
	apiGroup.POST("/guide/refresh", handler.Refresh)
	apiGroup.GET("/channels/:id/guide", handler.ChannelWindow)
}
