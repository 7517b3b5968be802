package media

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"reelcms/internal/auth"
	"reelcms/internal/manifest"
	"reelcms/internal/sync"
	"reelcms/pkg/utils"
)

// DefaultMaxUpload is the largest accepted upload.
const DefaultMaxUpload int64 = 1 << 30

type Handler struct {
	Pipeline  *Pipeline
	Store     *manifest.Store
	Guard     auth.Guard
	Events    sync.Publisher
	MaxUpload int64
	Logger    *slog.Logger
}

func NewHandler(p *Pipeline, store *manifest.Store, guard auth.Guard, events sync.Publisher, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Pipeline: p, Store: store, Guard: guard, Events: events, MaxUpload: DefaultMaxUpload, Logger: logger}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	admin := rg.Group("", h.Guard.Require())
	admin.POST("/upload", h.upload)
	admin.POST("/poster", h.poster)
	admin.POST("/normalize", h.normalize)
}

func (h *Handler) upload(c *gin.Context) {
	if h.MaxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUpload)
	}
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "file required"})
		return
	}
	posterSec := c.PostForm("posterSec")
	if posterSec == "" {
		posterSec = c.Query("posterSec")
	}

	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file unreadable"})
		return
	}
	defer f.Close()

	asset, err := h.Pipeline.Ingest(c.Request.Context(), Upload{Name: fh.Filename, Body: f}, ParseSeconds(posterSec))
	if err != nil {
		utils.RespondError(c, h.Logger, err)
		return
	}
	sync.Notify(h.Events, sync.Event{Type: sync.EventMediaIngested, Path: asset.URL})

	resp := gin.H{
		"ok":         true,
		"kind":       asset.Kind,
		"path":       asset.Path,
		"url":        asset.URL,
		"transcoded": asset.Transcoded,
	}
	if asset.VideoURL != "" {
		resp["videoUrl"] = asset.VideoURL
	}
	if asset.ImageURL != "" {
		resp["imageUrl"] = asset.ImageURL
	}
	if asset.PosterURL != "" {
		resp["poster"] = asset.PosterURL
		resp["posterUrl"] = asset.PosterURL
	}
	if asset.PosterError != "" {
		resp["posterError"] = asset.PosterError
	}
	c.JSON(http.StatusOK, resp)
}

type posterReq struct {
	VideoSrc  string          `json:"videoSrc"`
	PosterSec json.RawMessage `json:"posterSec"`
}

func (h *Handler) poster(c *gin.Context) {
	var req posterReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	url, err := h.Pipeline.RegeneratePoster(c.Request.Context(), req.VideoSrc, rawSeconds(req.PosterSec))
	if err != nil {
		utils.RespondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "poster": url, "posterUrl": url})
}

type normalizeReq struct {
	PosterSec json.RawMessage `json:"posterSec"`
}

func (h *Handler) normalize(c *gin.Context) {
	var req normalizeReq
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
	}
	sec := rawSeconds(req.PosterSec)
	if len(req.PosterSec) == 0 {
		sec = ParseSeconds(c.Query("posterSec"))
	}

	count, err := h.Pipeline.NormalizeStore(c.Request.Context(), h.Store, sec)
	if count > 0 {
		sync.Notify(h.Events, sync.Event{Type: sync.EventWorksNormalized, Count: count})
	}
	if err != nil {
		utils.RespondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "count": count})
}

// rawSeconds accepts a JSON number or a numeric string.
func rawSeconds(raw json.RawMessage) float64 {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return 0
	}
	var str string
	if json.Unmarshal(raw, &str) == nil {
		return ParseSeconds(str)
	}
	return ParseSeconds(s)
}
