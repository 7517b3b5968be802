package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

func newTestHandler(t *testing.T) (*Handler, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	guard := Guard{Tokens: TokenService{Secret: []byte("test-secret"), Duration: time.Hour}}
	h := NewHandler(guard, hash, NewMemoryAttempts(Limits{MaxAttempts: 2, Window: time.Minute, Block: time.Minute}))
	h.Delay = func(int) time.Duration { return 0 }

	r := gin.New()
	h.RegisterRoutes(r.Group("/api"))
	r.GET("/api/peek", guard.Optional(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"admin": IsAuthenticated(c)})
	})
	return h, r
}

func login(r *gin.Engine, password string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"password":"`+password+`"}`))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "10.0.0.1:1234"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestLoginSetsCookieAccepted(t *testing.T) {
	_, r := newTestHandler(t)

	w := login(r, "secret")
	if w.Code != http.StatusOK {
		t.Fatalf("login status %d: %s", w.Code, w.Body.String())
	}
	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != DefaultCookieName || !cookies[0].HttpOnly {
		t.Fatalf("unexpected cookies: %+v", cookies)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(cookies[0])
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("me with cookie: %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+cookies[0].Value)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("me with bearer: %d", w.Code)
	}
}

func TestMeRejectsMissingAndForgedTokens(t *testing.T) {
	_, r := newTestHandler(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: %d", w.Code)
	}

	forged, _, _ := TokenService{Secret: []byte("other")}.Sign()
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+forged)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("forged token: %d", w.Code)
	}
}

func TestOptionalGuardNeverRejects(t *testing.T) {
	_, r := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/api/peek", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var body struct{ Admin bool }
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if w.Code != http.StatusOK || body.Admin {
		t.Fatalf("optional guard: %d %s", w.Code, w.Body.String())
	}
}

func TestLoginThrottle(t *testing.T) {
	_, r := newTestHandler(t)

	for i := 0; i < 2; i++ {
		if w := login(r, "wrong"); w.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: %d", i, w.Code)
		}
	}
	w := login(r, "secret")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected block after limit, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After")
	}
}

func TestMemoryAttemptsWindowAndReset(t *testing.T) {
	m := NewMemoryAttempts(Limits{MaxAttempts: 2, Window: time.Minute, Block: 5 * time.Minute})
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	m.Fail("ip", now)
	if n := m.Fail("ip", now.Add(2*time.Minute)); n != 1 {
		t.Fatalf("window should restart the count, got %d", n)
	}
	m.Fail("ip", now.Add(2*time.Minute))
	retry, ok := m.Allow("ip", now.Add(2*time.Minute))
	if ok || retry != 5*time.Minute {
		t.Fatalf("expected block, got ok=%v retry=%v", ok, retry)
	}
	if _, ok := m.Allow("ip", now.Add(8*time.Minute)); !ok {
		t.Fatal("block should expire")
	}
	m.Reset("ip")
	if _, ok := m.Allow("ip", now); !ok {
		t.Fatal("reset should clear the entry")
	}
}

func TestFailureDelayIsCapped(t *testing.T) {
	if FailureDelay(2) != 2*time.Second || FailureDelay(9) != 5*time.Second {
		t.Fatalf("unexpected delays %v %v", FailureDelay(2), FailureDelay(9))
	}
}
