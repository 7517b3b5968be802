package auth

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

type Handler struct {
	Guard        Guard
	PasswordHash []byte
	Attempts     AttemptStore
	// SecureCookie marks the session cookie HTTPS-only.
	SecureCookie bool
	Logger       *slog.Logger

	Now   func() time.Time
	Delay func(failures int) time.Duration
}

func NewHandler(guard Guard, passwordHash []byte, attempts AttemptStore) *Handler {
	if attempts == nil {
		attempts = NewMemoryAttempts(DefaultLimits)
	}
	return &Handler{
		Guard:        guard,
		PasswordHash: passwordHash,
		Attempts:     attempts,
		Logger:       slog.Default(),
		Now:          time.Now,
		Delay:        FailureDelay,
	}
}

// HashPassword returns the bcrypt hash stored for the admin password.
func HashPassword(password string) ([]byte, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/login", h.login)
	rg.POST("/logout", h.logout)
	rg.GET("/me", h.Guard.Require(), h.me)
}

type loginReq struct {
	Password string `json:"password"`
}

func (h *Handler) login(c *gin.Context) {
	ip := c.ClientIP()
	now := h.Now()

	if retry, ok := h.Attempts.Allow(ip, now); !ok {
		minutes := int(math.Ceil(retry.Minutes()))
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error": fmt.Sprintf("Too many login attempts. Try again in %d minutes.", minutes),
		})
		return
	}

	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		req.Password = ""
	}

	if req.Password == "" || bcrypt.CompareHashAndPassword(h.PasswordHash, []byte(req.Password)) != nil {
		failures := h.Attempts.Fail(ip, now)
		h.Logger.Warn("admin login failed",
			slog.String("component", "auth"),
			slog.String("client", ip),
			slog.Int("failures", failures),
		)
		if !wait(c.Request.Context(), h.Delay(failures)) {
			return
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	h.Attempts.Reset(ip)
	token, exp, err := h.Guard.Tokens.Sign()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token failed"})
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.Guard.cookieName(), token, int(time.Until(exp).Seconds()), "/", "", h.SecureCookie, true)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.Guard.cookieName(), "", -1, "/", "", h.SecureCookie, true)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) me(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
