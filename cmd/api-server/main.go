package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"reelcms/internal/app"
	"reelcms/internal/auth"
	"reelcms/internal/grpcserver"
	"reelcms/internal/logging"
	"reelcms/internal/manifest"
	synchub "reelcms/internal/sync"
	"reelcms/pkg/utils"
)

func main() {
	configPath := flag.String("config", "", "path to reelcms.toml")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := utils.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	gin.SetMode(gin.ReleaseMode)

	if cfg.Source != "" {
		logger.Info("config loaded", slog.String("file", cfg.Source))
	}
	for _, key := range cfg.InsecureDefaults() {
		logger.Warn("setting still at its development default", slog.String("key", key))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if st := a.FFmpeg.Status(); !st.Available {
		logger.Warn("ffmpeg unavailable; uploads are stored without transcoding", slog.String("detail", st.Detail))
	}

	hash, err := passwordHash(cfg.Auth)
	if err != nil {
		return err
	}
	guard := auth.Guard{
		Tokens: auth.TokenService{
			Secret:   []byte(cfg.Auth.JWTSecret),
			Issuer:   cfg.Auth.JWTIssuer,
			Duration: cfg.Auth.TokenTTL,
		},
		CookieName: cfg.Auth.CookieName,
	}
	attempts := auth.NewMemoryAttempts(auth.Limits{
		MaxAttempts: cfg.Auth.MaxAttempts,
		Window:      cfg.Auth.AttemptWindow,
		Block:       cfg.Auth.BlockDuration,
	})
	authHandler := auth.NewHandler(guard, hash, attempts)
	authHandler.SecureCookie = cfg.Auth.SecureCookie
	authHandler.Logger = logger

	hub := synchub.NewHub()
	defer hub.Close()

	router, err := newRouter(a, hub, guard, authHandler)
	if err != nil {
		return err
	}

	httpSrv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 3)
	var wg sync.WaitGroup

	sweeper := &manifest.Sweeper{
		Store:    a.Works,
		Interval: cfg.Schedule.SweepInterval,
		Logger:   logger,
		OnPromote: func(slugs []string) {
			hub.Publish(synchub.Event{Type: synchub.EventWorksPromoted, Slugs: slugs, Count: len(slugs)})
		},
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		sweeper.Run(ctx)
	}()

	if path := a.ManifestFile(); path != "" && cfg.Schedule.WatchManifest {
		watcher := &manifest.Watcher{
			Path:   path,
			Logger: logger,
			OnChange: func() {
				hub.Publish(synchub.Event{Type: synchub.EventManifestChanged, Path: path})
			},
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := watcher.Run(ctx); err != nil {
				logger.Warn("manifest watcher stopped", slog.String("error", err.Error()))
			}
		}()
	}

	var grpcSrv *grpcserver.Server
	if cfg.HTTP.GRPCAddr != "" {
		grpcSrv = grpcserver.NewServer(logger)
		wg.Add(2)
		go func() {
			defer wg.Done()
			grpcSrv.Monitor(ctx, 30*time.Second, map[string]grpcserver.Check{
				grpcserver.ServiceWorks: a.Ping,
				grpcserver.ServiceMedia: func(context.Context) error {
					if st := a.FFmpeg.Status(); !st.Available {
						return errors.New(st.Detail)
					}
					return nil
				},
			})
		}()
		go func() {
			defer wg.Done()
			if err := grpcSrv.ListenAndServe(cfg.HTTP.GRPCAddr); err != nil {
				errCh <- err
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("HTTP server listening",
			slog.String("addr", cfg.HTTP.Addr),
			slog.String("public_dir", cfg.Paths.PublicDir),
			slog.String("storage", cfg.Storage.Backend),
		)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case runErr = <-errCh:
		logger.Error("server error", slog.String("error", runErr.Error()))
	}
	stop()

	logger.Info("shutting down servers")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown error", slog.String("error", err.Error()))
	}
	if grpcSrv != nil {
		grpcSrv.Stop()
	}

	wg.Wait()
	logger.Info("servers stopped")
	return runErr
}

func passwordHash(cfg utils.AuthConfig) ([]byte, error) {
	if cfg.AdminPasswordHash != "" {
		return []byte(cfg.AdminPasswordHash), nil
	}
	return auth.HashPassword(cfg.AdminPassword)
}
