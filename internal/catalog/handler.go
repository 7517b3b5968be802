package catalog

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"reelcms/internal/auth"
	"reelcms/internal/manifest"
	"reelcms/internal/sync"
	"reelcms/pkg/models"
	"reelcms/pkg/utils"
)

// SourceHeader tells clients whether /api/works answered from the manifest
// or from the sample catalog.
const SourceHeader = "X-Catalog-Source"

type Handler struct {
	Service *Service
	Store   *manifest.Store
	Guard   auth.Guard
	Events  sync.Publisher
	Logger  *slog.Logger
}

func NewHandler(svc *Service, guard auth.Guard, events sync.Publisher, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Service: svc, Store: svc.Store, Guard: guard, Events: events, Logger: logger}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/works", h.Guard.Optional(), h.list)

	admin := rg.Group("", h.Guard.Require())
	admin.POST("/works", h.upsert)
	admin.POST("/works/bulk", h.bulk)
	admin.DELETE("/works/:slug", h.remove)
	admin.POST("/import-movies", h.importMovies)
}

func (h *Handler) list(c *gin.Context) {
	view, err := h.Service.Public(c.Request.Context(), auth.IsAuthenticated(c))
	if err != nil {
		utils.RespondError(c, h.Logger, err)
		return
	}
	if len(view.Promoted) > 0 {
		sync.Notify(h.Events, sync.Event{Type: sync.EventWorksPromoted, Slugs: view.Promoted, Count: len(view.Promoted)})
	}
	works := view.Works
	if works == nil {
		works = []models.Work{}
	}
	c.Header(SourceHeader, string(view.Source))
	c.JSON(http.StatusOK, works)
}

func (h *Handler) upsert(c *gin.Context) {
	var p models.Patch
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	item, err := h.Store.Upsert(c.Request.Context(), p)
	if err != nil {
		utils.RespondError(c, h.Logger, err)
		return
	}
	sync.Notify(h.Events, sync.Event{Type: sync.EventWorksChanged, Slugs: []string{item.Slug}, Count: 1})
	c.JSON(http.StatusOK, gin.H{"ok": true, "item": item})
}

type bulkReq struct {
	Slugs       []string        `json:"slugs"`
	Published   *bool           `json:"published"`
	ScheduledAt json.RawMessage `json:"scheduledAt"`
}

func (h *Handler) bulk(c *gin.Context) {
	var req bulkReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	change := manifest.BulkChange{Published: req.Published}
	if raw := strings.TrimSpace(string(req.ScheduledAt)); raw != "" && raw != "null" && raw != `""` {
		// unparseable schedules are ignored, like an absent one
		if ts := models.ParseTimestamp(req.ScheduledAt); ts.Valid() {
			change.ScheduledAt = &ts
		}
	}

	count, err := h.Store.BulkUpdate(c.Request.Context(), req.Slugs, change)
	if err != nil {
		utils.RespondError(c, h.Logger, err)
		return
	}
	sync.Notify(h.Events, sync.Event{Type: sync.EventWorksChanged, Slugs: req.Slugs, Count: count})
	c.JSON(http.StatusOK, gin.H{"ok": true, "count": count})
}

func (h *Handler) remove(c *gin.Context) {
	slug := c.Param("slug")
	if err := h.Store.Remove(c.Request.Context(), slug); err != nil {
		utils.RespondError(c, h.Logger, err)
		return
	}
	sync.Notify(h.Events, sync.Event{Type: sync.EventWorksChanged, Slugs: []string{slug}})
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type importReq struct {
	Mode             string `json:"mode"`
	DefaultPublished *bool  `json:"defaultPublished"`
}

func (h *Handler) importMovies(c *gin.Context) {
	var req importReq
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
	}
	mode, err := ParseImportMode(req.Mode)
	if err != nil {
		utils.RespondError(c, h.Logger, err)
		return
	}
	published := true
	if req.DefaultPublished != nil {
		published = *req.DefaultPublished
	}

	count, err := h.Service.Import(c.Request.Context(), mode, published)
	if err != nil {
		utils.RespondError(c, h.Logger, err)
		return
	}
	h.Logger.Info("works imported from media directory",
		slog.String("component", "catalog"),
		slog.String("mode", string(mode)),
		slog.Int("count", count),
	)
	sync.Notify(h.Events, sync.Event{Type: sync.EventWorksImported, Count: count})
	c.JSON(http.StatusOK, gin.H{"ok": true, "count": count})
}
