package site

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"reelcms/internal/auth"
	"reelcms/internal/sync"
	"reelcms/pkg/utils"
)

type Handler struct {
	Store  *Store
	Guard  auth.Guard
	Events sync.Publisher
	Logger *slog.Logger
}

func NewHandler(store *Store, guard auth.Guard, events sync.Publisher, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Store: store, Guard: guard, Events: events, Logger: logger}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/site", h.get)
	rg.POST("/site", h.Guard.Require(), h.update)
}

// get answers {} when the document cannot be read; the public pages then
// fall back to their built-in copy.
func (h *Handler) get(c *gin.Context) {
	content, err := h.Store.Get(c.Request.Context())
	if err != nil {
		h.Logger.Warn("site content unavailable", slog.String("component", "site"), slog.String("error", err.Error()))
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	c.JSON(http.StatusOK, content)
}

func (h *Handler) update(c *gin.Context) {
	var patch Content
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "site content must be a JSON object"})
		return
	}
	next, err := h.Store.Merge(c.Request.Context(), patch)
	if err != nil {
		utils.RespondError(c, h.Logger, err)
		return
	}
	sync.Notify(h.Events, sync.Event{Type: sync.EventSiteChanged})
	c.JSON(http.StatusOK, gin.H{"ok": true, "site": next})
}
