package main

import (
	"context"
	"log/slog"
	"net/http"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"reelcms/internal/app"
	"reelcms/internal/auth"
	"reelcms/internal/catalog"
	"reelcms/internal/logging"
	"reelcms/internal/media"
	"reelcms/internal/site"
	synchub "reelcms/internal/sync"
)

// newRouter mounts the API, the event stream, health probes and the static
// site on one gin engine.
func newRouter(a *app.App, hub *synchub.Hub, guard auth.Guard, authHandler *auth.Handler) (*gin.Engine, error) {
	cfg := a.Config
	logger := a.Logger

	router := gin.New()
	router.Use(logging.GinLogger(logger), gin.Recovery())
	if err := router.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		return nil, err
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "storage": cfg.Storage.Backend})
	})

	router.GET("/ready", func(c *gin.Context) {
		stats := hub.Stats()
		ffmpeg := a.FFmpeg.Status()
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := a.Ping(ctx); err != nil {
			logger.Warn("readiness check failed", slog.String("error", err.Error()))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":     "not_ready",
				"storage":    "unavailable",
				"ffmpeg":     ffmpeg,
				"ws_clients": stats.WSClients,
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":     "ready",
			"storage":    "ok",
			"ffmpeg":     ffmpeg,
			"ws_clients": stats.WSClients,
		})
	})

	api := router.Group("/api")
	authHandler.RegisterRoutes(api)

	catalog.NewHandler(a.Catalog, guard, hub, logger).RegisterRoutes(api)

	mediaHandler := media.NewHandler(a.Pipeline, a.Works, guard, hub, logger)
	if cfg.HTTP.MaxUploadBytes > 0 {
		mediaHandler.MaxUpload = cfg.HTTP.MaxUploadBytes
	}
	mediaHandler.RegisterRoutes(api)

	site.NewHandler(a.Site, guard, hub, logger).RegisterRoutes(api)

	api.GET("/events", guard.Require(), synchub.WSHandler(hub, logger))

	seo := &site.SEO{Works: a.Works, BaseURL: cfg.HTTP.BaseURL, Pages: site.DefaultPages, Logger: logger}
	seo.RegisterRoutes(router)

	publicDir := cfg.Paths.PublicDir
	router.Static(a.Pipeline.URLPrefix(), a.Pipeline.MediaDir())
	router.GET("/admin", func(c *gin.Context) {
		c.File(filepath.Join(publicDir, "admin.html"))
	})

	hidden := hiddenPrefixes(publicDir, cfg.Paths.DataDir)
	files := http.FileServer(http.Dir(publicDir))
	router.NoRoute(func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		if isHidden(c.Request.URL.Path, hidden) {
			c.Status(http.StatusNotFound)
			return
		}
		files.ServeHTTP(c.Writer, c.Request)
	})

	return router, nil
}

// hiddenPrefixes lists the site paths that must not be served: the data
// directory when it sits inside the public root.
func hiddenPrefixes(publicDir, dataDir string) []string {
	absPublic, err1 := filepath.Abs(publicDir)
	absData, err2 := filepath.Abs(dataDir)
	if err1 != nil || err2 != nil {
		return nil
	}
	rel, err := filepath.Rel(absPublic, absData)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return nil
	}
	return []string{path.Join("/", filepath.ToSlash(rel))}
}

// isHidden rejects dotfiles and anything under a hidden prefix.
func isHidden(urlPath string, hidden []string) bool {
	clean := path.Clean("/" + urlPath)
	for _, seg := range strings.Split(clean, "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	for _, p := range hidden {
		if clean == p || strings.HasPrefix(clean, p+"/") {
			return true
		}
	}
	return false
}
