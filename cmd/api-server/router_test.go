package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"reelcms/internal/app"
	"reelcms/internal/auth"
	"reelcms/internal/catalog"
	synchub "reelcms/internal/sync"
	"reelcms/pkg/utils"
)

func newTestServer(t *testing.T) (*gin.Engine, *utils.Config) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	base := t.TempDir()
	cfg := &utils.Config{}
	cfg.Paths.PublicDir = base
	cfg.Paths.MediaDir = "movies"
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Storage.Backend = "file"
	cfg.Media.FFmpeg = "definitely-not-ffmpeg"
	cfg.Media.MaxConcurrent = 1
	cfg.Catalog.SampleFallback = true
	cfg.Auth.CookieName = auth.DefaultCookieName

	if err := os.WriteFile(filepath.Join(base, "index.html"), []byte("<h1>home</h1>"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(base, "admin.html"), []byte("<h1>admin</h1>"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(base, ".env"), []byte("SECRET=1"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(base, "movies"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(base, "movies", "reel.mp4"), []byte("not really a video"), 0o644); err != nil {
		t.Fatal(err)
	}

	a, err := app.Open(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("app.Open: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })

	hash, err := auth.HashPassword("secret")
	if err != nil {
		t.Fatal(err)
	}
	guard := auth.Guard{Tokens: auth.TokenService{Secret: []byte("k"), Duration: time.Hour}}
	authHandler := auth.NewHandler(guard, hash, nil)
	authHandler.Delay = func(int) time.Duration { return 0 }

	hub := synchub.NewHub()
	t.Cleanup(hub.Close)

	router, err := newRouter(a, hub, guard, authHandler)
	if err != nil {
		t.Fatalf("newRouter: %v", err)
	}
	return router, cfg
}

func get(r http.Handler, path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthAndReady(t *testing.T) {
	r, _ := newTestServer(t)

	if w := get(r, "/health"); w.Code != http.StatusOK {
		t.Fatalf("/health = %d", w.Code)
	}
	w := get(r, "/ready")
	if w.Code != http.StatusOK {
		t.Fatalf("/ready = %d %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"available":false`) {
		t.Fatalf("ready should report ffmpeg status: %s", w.Body.String())
	}
}

func TestAnonymousCatalogFallsBackToSample(t *testing.T) {
	r, _ := newTestServer(t)

	w := get(r, "/api/works")
	if w.Code != http.StatusOK {
		t.Fatalf("/api/works = %d", w.Code)
	}
	if got := w.Header().Get(catalog.SourceHeader); got != string(catalog.SourceSample) {
		t.Fatalf("source = %q", got)
	}
	if !strings.Contains(w.Body.String(), "/movies/reel.mp4") {
		t.Fatalf("sample should list the media folder: %s", w.Body.String())
	}
}

func TestLoginThenAdminRoutes(t *testing.T) {
	r, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"password":"secret"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("login = %d %s", w.Code, w.Body.String())
	}
	cookies := w.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("login should set the session cookie")
	}

	if w := get(r, "/api/me"); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous /api/me = %d", w.Code)
	}
	if w := get(r, "/api/me", cookies...); w.Code != http.StatusOK {
		t.Fatalf("/api/me = %d", w.Code)
	}

	w = get(r, "/api/works", cookies...)
	if got := w.Header().Get(catalog.SourceHeader); got != string(catalog.SourceManifest) {
		t.Fatalf("admin source = %q", got)
	}
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Fatalf("admin sees the real, empty manifest: %s", w.Body.String())
	}
}

func TestStaticSiteHidesDataAndDotfiles(t *testing.T) {
	r, _ := newTestServer(t)

	if w := get(r, "/"); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "home") {
		t.Fatalf("/ = %d %s", w.Code, w.Body.String())
	}
	if w := get(r, "/admin"); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "admin") {
		t.Fatalf("/admin = %d", w.Code)
	}
	if w := get(r, "/movies/reel.mp4"); w.Code != http.StatusOK {
		t.Fatalf("/movies/reel.mp4 = %d", w.Code)
	}
	for _, p := range []string{"/data/works.json", "/.env"} {
		if w := get(r, p); w.Code != http.StatusNotFound {
			t.Fatalf("%s = %d, want 404", p, w.Code)
		}
	}
	if w := get(r, "/robots.txt"); !strings.Contains(w.Body.String(), "Sitemap:") {
		t.Fatalf("robots.txt: %s", w.Body.String())
	}
}

func TestIsHidden(t *testing.T) {
	hidden := []string{"/data"}
	cases := map[string]bool{
		"/data":            true,
		"/data/works.json": true,
		"/database.html":   false,
		"/.git/config":     true,
		"/a/../data/x":     true,
		"/works.html":      false,
	}
	for p, want := range cases {
		if got := isHidden(p, hidden); got != want {
			t.Fatalf("isHidden(%q) = %v, want %v", p, got, want)
		}
	}
}
