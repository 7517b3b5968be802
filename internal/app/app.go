// Package app opens the stores and services shared by the API server and
// reelctl from one Config.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"reelcms/internal/catalog"
	"reelcms/internal/docstore"
	"reelcms/internal/manifest"
	"reelcms/internal/media"
	"reelcms/internal/site"
	"reelcms/pkg/database"
	"reelcms/pkg/utils"
)

type App struct {
	Config *utils.Config
	Logger *slog.Logger

	Works    *manifest.Store
	Site     *site.Store
	Scanner  *catalog.Scanner
	Catalog  *catalog.Service
	FFmpeg   *media.FFmpeg
	Pipeline *media.Pipeline

	backend docstore.Backend
	db      *sql.DB
}

// Open selects the storage backend, creates the works and site documents
// when missing and wires the catalog and media services.
func Open(ctx context.Context, cfg *utils.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	switch cfg.Storage.Backend {
	case "sqlite":
		db, err := database.Open(database.Config{Path: cfg.Storage.SQLitePath})
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("db migrate: %w", err)
		}
		a.db = db
		a.backend = docstore.NewSQLiteBackend(db)
	default:
		fb, err := docstore.NewFileBackend(cfg.Paths.DataDir)
		if err != nil {
			return nil, err
		}
		a.backend = fb
	}

	a.Works = manifest.NewStore(docstore.New(a.backend, manifest.DocumentName))
	a.Site = site.NewStore(docstore.New(a.backend, site.DocumentName))
	if created, err := a.Works.Init(ctx); err != nil {
		_ = a.Close()
		return nil, err
	} else if created {
		logger.Info("created works manifest", slog.String("location", a.Works.Doc.Location()))
	}
	if created, err := a.Site.Init(ctx); err != nil {
		_ = a.Close()
		return nil, err
	} else if created {
		logger.Info("created site document", slog.String("location", a.Site.Doc.Location()))
	}

	a.FFmpeg = media.NewFFmpeg(cfg.Media.FFmpeg, cfg.Media.PosterWidth)
	a.Pipeline = media.NewPipeline(a.FFmpeg, cfg.Paths.PublicDir, cfg.Paths.MediaDir, cfg.Media.MaxConcurrent, logger)

	a.Scanner = catalog.NewScanner(a.Pipeline.MediaDir(), a.Pipeline.URLPrefix())
	if cfg.Catalog.Meta != "" {
		a.Scanner.Meta = cfg.Catalog.Meta
	}
	if cfg.Catalog.Role != "" {
		a.Scanner.Role = cfg.Catalog.Role
	}
	a.Catalog = catalog.NewService(a.Works, a.Scanner)
	a.Catalog.SampleFallback = cfg.Catalog.SampleFallback
	return a, nil
}

// ManifestFile is the on-disk path of the works document, or "" when the
// documents live in sqlite.
func (a *App) ManifestFile() string {
	if fb, ok := a.backend.(*docstore.FileBackend); ok {
		return fb.Location(manifest.DocumentName)
	}
	return ""
}

// Ping reads the works document.
func (a *App) Ping(ctx context.Context) error {
	_, err := a.Works.List(ctx)
	return err
}

func (a *App) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}
