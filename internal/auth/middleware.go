package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const CtxClaimsKey = "auth_claims"

// DefaultCookieName is the session cookie the admin UI logs in with.
const DefaultCookieName = "troy_token"

// Guard reads the admin token from the session cookie or an
// Authorization: Bearer header.
type Guard struct {
	Tokens     TokenService
	CookieName string
}

func (g Guard) cookieName() string {
	if g.CookieName == "" {
		return DefaultCookieName
	}
	return g.CookieName
}

func (g Guard) token(c *gin.Context) string {
	if v, err := c.Cookie(g.cookieName()); err == nil && v != "" {
		return v
	}
	h := c.GetHeader("Authorization")
	if len(h) > len("bearer ") && strings.EqualFold(h[:len("bearer ")], "bearer ") {
		return strings.TrimSpace(h[len("bearer "):])
	}
	return ""
}

func (g Guard) claims(c *gin.Context) *Claims {
	raw := g.token(c)
	if raw == "" {
		return nil
	}
	claims, err := g.Tokens.Parse(raw)
	if err != nil {
		return nil
	}
	return claims
}

// Optional records the caller's claims when a valid token is present and
// never rejects the request.
func (g Guard) Optional() gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims := g.claims(c); claims != nil {
			c.Set(CtxClaimsKey, claims)
		}
		c.Next()
	}
}

// Require rejects requests without a valid admin token.
func (g Guard) Require() gin.HandlerFunc {
	return func(c *gin.Context) {
		if g.token(c) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		claims := g.claims(c)
		if claims == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(CtxClaimsKey, claims)
		c.Next()
	}
}

func MustGetClaims(c *gin.Context) *Claims {
	v, ok := c.Get(CtxClaimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*Claims)
	return claims
}

// IsAuthenticated reports whether Optional or Require accepted a token for
// this request.
func IsAuthenticated(c *gin.Context) bool {
	return MustGetClaims(c) != nil
}
