package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/guttosm/dashwatch/internal/cache"
	"github.com/guttosm/dashwatch/internal/channel"
	"github.com/guttosm/dashwatch/internal/domain/dto"
	"github.com/guttosm/dashwatch/internal/middleware"
	"github.com/guttosm/dashwatch/internal/watcher"
)

// DebugHandler exposes operational introspection over the cache, the push
// channel, and the watcher's merged host view.
type DebugHandler struct {
	cache   *cache.Cache
	channel *channel.Channel
	watcher *watcher.Watcher
}

// NewDebugHandler creates a new DebugHandler.
func NewDebugHandler(c *cache.Cache, ch *channel.Channel, w *watcher.Watcher) *DebugHandler {
	return &DebugHandler{cache: c, channel: ch, watcher: w}
}

// Register registers debug and data routes on the router.
func (h *DebugHandler) Register(router *gin.Engine) {
	debug := router.Group("/debug")
	debug.GET("/cache", h.CacheStats)
	debug.POST("/cache/cleanup", h.CacheCleanup)
	debug.DELETE("/cache", h.CacheClear)
	debug.GET("/channel", h.ChannelStatus)
	debug.GET("/hosts", h.Hosts)

	api := router.Group("/api")
	api.GET("/dashboard", h.Dashboard)
	api.GET("/hosts/:hostname/metrics", h.HostMetrics)
}

// CacheStats returns entry count, total size, and a per-entry breakdown.
func (h *DebugHandler) CacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, dto.NewSuccess(h.cache.Stats(), middleware.GetRequestID(c)))
}

// CacheCleanup removes expired entries and reports the count removed.
func (h *DebugHandler) CacheCleanup(c *gin.Context) {
	removed := h.cache.CleanupExpired()
	c.JSON(http.StatusOK, dto.NewSuccess(gin.H{"removed": removed}, middleware.GetRequestID(c)))
}

// CacheClear removes every entry in the cache namespace.
func (h *DebugHandler) CacheClear(c *gin.Context) {
	removed := h.cache.InvalidateAll("")
	c.JSON(http.StatusOK, dto.NewSuccess(gin.H{"removed": removed}, middleware.GetRequestID(c)))
}

// ChannelStatus returns the channel connection snapshot.
func (h *DebugHandler) ChannelStatus(c *gin.Context) {
	c.JSON(http.StatusOK, dto.NewSuccess(h.channel.GetStatus(), middleware.GetRequestID(c)))
}

// Hosts returns the merged in-memory host view.
func (h *DebugHandler) Hosts(c *gin.Context) {
	c.JSON(http.StatusOK, dto.NewSuccess(h.watcher.Hosts(), middleware.GetRequestID(c)))
}

// Dashboard serves the cache-first dashboard snapshot. Only "no cached data
// and the fetch failed" surfaces as an error.
func (h *DebugHandler) Dashboard(c *gin.Context) {
	snapshot, err := h.watcher.Snapshot(c.Request.Context())
	if err != nil {
		resp := dto.NewError(dto.ErrCodeUpstream, err.Error())
		resp.RequestID = middleware.GetRequestID(c)
		c.JSON(http.StatusBadGateway, resp)
		return
	}
	c.JSON(http.StatusOK, dto.NewSuccess(snapshot, middleware.GetRequestID(c)))
}

// HostMetrics serves one host's cache-first time series.
func (h *DebugHandler) HostMetrics(c *gin.Context) {
	hostname := c.Param("hostname")
	if hostname == "" {
		resp := dto.NewError(dto.ErrCodeInvalidRequest, "hostname is required")
		resp.RequestID = middleware.GetRequestID(c)
		c.JSON(http.StatusBadRequest, resp)
		return
	}
	hm, err := h.watcher.HostMetrics(c.Request.Context(), hostname)
	if err != nil {
		resp := dto.NewError(dto.ErrCodeUpstream, err.Error())
		resp.RequestID = middleware.GetRequestID(c)
		c.JSON(http.StatusBadGateway, resp)
		return
	}
	c.JSON(http.StatusOK, dto.NewSuccess(hm, middleware.GetRequestID(c)))
}
