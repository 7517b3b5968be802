package site

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"reelcms/internal/auth"
	"reelcms/internal/docstore"
	"reelcms/internal/manifest"
	"reelcms/pkg/models"
)

func newBackend(t *testing.T) docstore.Backend {
	t.Helper()
	b, err := docstore.NewFileBackend(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestMergeIsShallow(t *testing.T) {
	ctx := context.Background()
	s := NewStore(docstore.New(newBackend(t), DocumentName))
	if created, err := s.Init(ctx); err != nil || !created {
		t.Fatalf("init: %v %v", created, err)
	}

	next, err := s.Merge(ctx, Content{"info": json.RawMessage(`{"email":"new@example.com"}`)})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := next["profile"]; !ok {
		t.Fatal("untouched section lost")
	}
	var info map[string]any
	_ = json.Unmarshal(next["info"], &info)
	if len(info) != 1 || info["email"] != "new@example.com" {
		t.Fatalf("section should be replaced whole: %v", info)
	}
}

func TestSiteEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := NewStore(docstore.New(newBackend(t), DocumentName))
	tokens := auth.TokenService{Secret: []byte("k"), Duration: time.Hour}
	token, _, _ := tokens.Sign()
	r := gin.New()
	NewHandler(s, auth.Guard{Tokens: tokens}, nil, nil).RegisterRoutes(r.Group("/api"))

	// missing document answers {}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/site", nil))
	if w.Code != http.StatusOK || strings.TrimSpace(w.Body.String()) != "{}" {
		t.Fatalf("get without document: %d %s", w.Code, w.Body.String())
	}

	if _, err := s.Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/site", strings.NewReader(`{"info":{"email":"x@y.z"}}`))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated update: %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/site", strings.NewReader(`{"info":{"email":"x@y.z"}}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "x@y.z") || !strings.Contains(w.Body.String(), "profile") {
		t.Fatalf("update: %d %s", w.Code, w.Body.String())
	}
}

func TestSitemapListsOnlyVisibleWorks(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	works := manifest.NewStore(docstore.New(newBackend(t), manifest.DocumentName))
	if err := works.Replace(ctx, []models.Work{
		{Slug: "live", Title: "Live", Published: models.Published},
		{Slug: "legacy", Title: "Legacy"},
		{Slug: "draft", Title: "Draft", Published: models.Unpublished},
	}); err != nil {
		t.Fatal(err)
	}
	r := gin.New()
	(&SEO{Works: works, BaseURL: "https://troy.example/"}).RegisterRoutes(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sitemap.xml", nil))
	body := w.Body.String()
	if w.Code != http.StatusOK {
		t.Fatalf("sitemap: %d", w.Code)
	}
	for _, want := range []string{"https://troy.example/profile.html", "#project/live", "#project/legacy"} {
		if !strings.Contains(body, want) {
			t.Fatalf("%q missing from sitemap:\n%s", want, body)
		}
	}
	if strings.Contains(body, "draft") {
		t.Fatalf("unpublished work in sitemap:\n%s", body)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/robots.txt", nil))
	if !strings.HasPrefix(w.Body.String(), "User-agent: *\nAllow: /") {
		t.Fatalf("robots: %q", w.Body.String())
	}
}
