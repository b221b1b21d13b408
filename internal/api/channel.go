package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stwalsh4118/airwave/internal/channel"
	"github.com/stwalsh4118/airwave/internal/models"
	"github.com/stwalsh4118/airwave/internal/ondemand"
)

// Request/Response DTOs

// CreateChannelRequest represents a request to create a new channel
type CreateChannelRequest struct {
	Number                 int     `json:"number" binding:"required,gt=0"`
	Name                   string  `json:"name" binding:"required"`
	Icon                   *string `json:"icon,omitempty"`
	StartTimeMs            *int64  `json:"start_time_ms,omitempty"`
	GuideMinimumDurationMs int64   `json:"guide_minimum_duration_ms,omitempty"`
	Stealth                bool    `json:"stealth,omitempty"`
	OnDemand               bool    `json:"on_demand,omitempty"`
}

// UpdateChannelRequest represents a partial channel metadata update
type UpdateChannelRequest struct {
	Number                 *int    `json:"number,omitempty"`
	Name                   *string `json:"name,omitempty"`
	Icon                   *string `json:"icon,omitempty"`
	StartTimeMs            *int64  `json:"start_time_ms,omitempty"`
	GuideMinimumDurationMs *int64  `json:"guide_minimum_duration_ms,omitempty"`
	Stealth                *bool   `json:"stealth,omitempty"`
	OnDemand               *bool   `json:"on_demand,omitempty"`
}

// LineupItemRequest is the wire form of one lineup item
type LineupItemRequest struct {
	Kind            string  `json:"kind" binding:"required,oneof=content offline redirect"`
	DurationMs      int64   `json:"duration_ms" binding:"required,gt=0"`
	ContentID       *string `json:"content_id,omitempty"`
	CustomShowID    *string `json:"custom_show_id,omitempty"`
	TargetChannelID *string `json:"target_channel_id,omitempty"`
}

// ReplaceLineupRequest replaces a channel's programming wholesale
type ReplaceLineupRequest struct {
	Items []LineupItemRequest `json:"items" binding:"required"`
}

// PauseChannelRequest optionally pins the pause instant
type PauseChannelRequest struct {
	AtMs *int64 `json:"at_ms,omitempty"`
}

// ChannelListResponse represents a list of channels
type ChannelListResponse struct {
	Channels []*models.Channel `json:"channels"`
}

// LineupResponse represents a channel's lineup
type LineupResponse struct {
	Items           []LineupItemRequest `json:"items"`
	TotalDurationMs int64               `json:"total_duration_ms"`
	Version         int                 `json:"version"`
	LastUpdated     time.Time           `json:"last_updated"`
}

// ChannelHandler handles channel-related API requests
type ChannelHandler struct {
	channelService  *channel.ChannelService
	onDemandService *ondemand.Service
}

// NewChannelHandler creates a new channel handler instance
func NewChannelHandler(channelService *channel.ChannelService, onDemandService *ondemand.Service) *ChannelHandler {
	return &ChannelHandler{
		channelService:  channelService,
		onDemandService: onDemandService,
	}
}

// Create handles POST /channels
func (h *ChannelHandler) Create(c *gin.Context) {
	var req CreateChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	startMs := time.Now().UnixMilli()
	if req.StartTimeMs != nil {
		startMs = *req.StartTimeMs
	}

	ch := models.NewChannel(req.Number, req.Name, startMs)
	ch.Icon = req.Icon
	ch.GuideMinimumDurationMs = req.GuideMinimumDurationMs
	ch.Stealth = req.Stealth
	ch.OnDemand = req.OnDemand

	if err := h.channelService.CreateChannel(c.Request.Context(), ch); err != nil {
		if channel.IsDuplicateNumber(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "channel number already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create channel"})
		return
	}

	c.JSON(http.StatusCreated, ch)
}

// List handles GET /channels
func (h *ChannelHandler) List(c *gin.Context) {
	channels, err := h.channelService.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list channels"})
		return
	}
	c.JSON(http.StatusOK, ChannelListResponse{Channels: channels})
}

// Get handles GET /channels/:id
func (h *ChannelHandler) Get(c *gin.Context) {
	id, ok := parseChannelID(c)
	if !ok {
		return
	}

	ch, err := h.channelService.GetByID(c.Request.Context(), id)
	if err != nil {
		respondChannelError(c, err)
		return
	}
	c.JSON(http.StatusOK, ch)
}

// Update handles PUT /channels/:id
func (h *ChannelHandler) Update(c *gin.Context) {
	id, ok := parseChannelID(c)
	if !ok {
		return
	}

	var req UpdateChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ch, err := h.channelService.GetByID(c.Request.Context(), id)
	if err != nil {
		respondChannelError(c, err)
		return
	}

	if req.Number != nil {
		ch.Number = *req.Number
	}
	if req.Name != nil {
		ch.Name = *req.Name
	}
	if req.Icon != nil {
		ch.Icon = req.Icon
	}
	if req.StartTimeMs != nil {
		ch.StartTimeMs = *req.StartTimeMs
	}
	if req.GuideMinimumDurationMs != nil {
		ch.GuideMinimumDurationMs = *req.GuideMinimumDurationMs
	}
	if req.Stealth != nil {
		ch.Stealth = *req.Stealth
	}
	if req.OnDemand != nil {
		ch.OnDemand = *req.OnDemand
	}

	if err := h.channelService.UpdateChannel(c.Request.Context(), ch); err != nil {
		respondChannelError(c, err)
		return
	}
	c.JSON(http.StatusOK, ch)
}

// Delete handles DELETE /channels/:id
func (h *ChannelHandler) Delete(c *gin.Context) {
	id, ok := parseChannelID(c)
	if !ok {
		return
	}

	if err := h.channelService.DeleteChannel(c.Request.Context(), id, nil); err != nil {
		respondChannelError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetLineup handles GET /channels/:id/lineup
func (h *ChannelHandler) GetLineup(c *gin.Context) {
	id, ok := parseChannelID(c)
	if !ok {
		return
	}

	lu, err := h.channelService.GetLineup(c.Request.Context(), id)
	if err != nil {
		respondChannelError(c, err)
		return
	}
	c.JSON(http.StatusOK, toLineupResponse(lu))
}

// ReplaceLineup handles PUT /channels/:id/lineup
func (h *ChannelHandler) ReplaceLineup(c *gin.Context) {
	id, ok := parseChannelID(c)
	if !ok {
		return
	}

	var req ReplaceLineupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	items, err := toLineupItems(req.Items)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	lu, err := h.channelService.ReplaceLineup(c.Request.Context(), id, items)
	if err != nil {
		if errors.Is(err, channel.ErrInvalidItemDuration) || errors.Is(err, channel.ErrRedirectToSelf) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		respondChannelError(c, err)
		return
	}
	c.JSON(http.StatusOK, toLineupResponse(lu))
}

// Pause handles POST /channels/:id/pause
func (h *ChannelHandler) Pause(c *gin.Context) {
	id, ok := parseChannelID(c)
	if !ok {
		return
	}

	// The body is optional; an absent or malformed one pauses at wall time.
	var req PauseChannelRequest
	_ = c.ShouldBindJSON(&req)

	atMs := time.Now().UnixMilli()
	if req.AtMs != nil {
		atMs = *req.AtMs
	}

	if err := h.onDemandService.Pause(c.Request.Context(), id, atMs); err != nil {
		respondOnDemandError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Resume handles POST /channels/:id/resume
func (h *ChannelHandler) Resume(c *gin.Context) {
	id, ok := parseChannelID(c)
	if !ok {
		return
	}

	if err := h.onDemandService.Resume(c.Request.Context(), id); err != nil {
		respondOnDemandError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// parseChannelID extracts and validates the :id path parameter
func parseChannelID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid channel id"})
		return uuid.Nil, false
	}
	return id, true
}

func respondChannelError(c *gin.Context, err error) {
	switch {
	case channel.IsChannelNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": "channel not found"})
	case channel.IsDuplicateNumber(err):
		c.JSON(http.StatusConflict, gin.H{"error": "channel number already exists"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func respondOnDemandError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ondemand.ErrChannelNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "channel not found"})
	case ondemand.IsNotOnDemand(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": "channel is not in on-demand mode"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// toLineupItems converts wire items into the closed model variants
func toLineupItems(reqs []LineupItemRequest) ([]models.LineupItem, error) {
	items := make([]models.LineupItem, 0, len(reqs))
	for _, r := range reqs {
		switch models.ItemKind(r.Kind) {
		case models.ItemKindContent:
			if r.ContentID == nil {
				return nil, errors.New("content item requires content_id")
			}
			contentID, err := uuid.Parse(*r.ContentID)
			if err != nil {
				return nil, errors.New("invalid content_id")
			}
			item := models.ContentItem{DurationMs: r.DurationMs, ContentID: contentID}
			if r.CustomShowID != nil {
				showID, err := uuid.Parse(*r.CustomShowID)
				if err != nil {
					return nil, errors.New("invalid custom_show_id")
				}
				item.CustomShowID = &showID
			}
			items = append(items, item)
		case models.ItemKindOffline:
			items = append(items, models.OfflineItem{DurationMs: r.DurationMs})
		case models.ItemKindRedirect:
			if r.TargetChannelID == nil {
				return nil, errors.New("redirect item requires target_channel_id")
			}
			targetID, err := uuid.Parse(*r.TargetChannelID)
			if err != nil {
				return nil, errors.New("invalid target_channel_id")
			}
			items = append(items, models.RedirectItem{DurationMs: r.DurationMs, TargetChannelID: targetID})
		}
	}
	return items, nil
}

// toLineupResponse projects a lineup onto its wire form
func toLineupResponse(lu *models.Lineup) LineupResponse {
	items := make([]LineupItemRequest, 0, len(lu.Items))
	for _, item := range lu.Items {
		wire := LineupItemRequest{Kind: string(item.Kind()), DurationMs: item.ItemDurationMs()}
		switch it := item.(type) {
		case models.ContentItem:
			id := it.ContentID.String()
			wire.ContentID = &id
			if it.CustomShowID != nil {
				showID := it.CustomShowID.String()
				wire.CustomShowID = &showID
			}
		case models.RedirectItem:
			id := it.TargetChannelID.String()
			wire.TargetChannelID = &id
		}
		items = append(items, wire)
	}
	return LineupResponse{
		Items:           items,
		TotalDurationMs: lu.TotalDurationMs(),
		Version:         lu.Version,
		LastUpdated:     lu.LastUpdated,
	}
}

// SetupChannelRoutes registers channel routes
func SetupChannelRoutes(apiGroup *gin.RouterGroup, channelService *channel.ChannelService, onDemandService *ondemand.Service) {
	handler := NewChannelHandler(channelService, onDemandService)

	channels := apiGroup.Group("/channels")
	channels.POST("", handler.Create)
	channels.GET("", handler.List)
	channels.GET("/:id", handler.Get)
	channels.PUT("/:id", handler.Update)
	channels.DELETE("/:id", handler.Delete)
	channels.GET("/:id/lineup", handler.GetLineup)
	channels.PUT("/:id/lineup", handler.ReplaceLineup)
	channels.POST("/:id/pause", handler.Pause)
	channels.POST("/:id/resume", handler.Resume)
}
