package site

import (
	"encoding/xml"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"reelcms/internal/catalog"
	"reelcms/internal/manifest"
)

// DefaultPages are the static pages listed in the sitemap.
var DefaultPages = []string{"/", "/profile.html", "/info.html"}

// SEO serves robots.txt and a sitemap of the published works.
type SEO struct {
	Works *manifest.Store
	// BaseURL overrides the origin derived from the request.
	BaseURL string
	Pages   []string
	Logger  *slog.Logger
}

func (s *SEO) RegisterRoutes(r gin.IRoutes) {
	r.GET("/robots.txt", s.robots)
	r.GET("/sitemap.xml", s.sitemap)
}

func (s *SEO) robots(c *gin.Context) {
	c.String(http.StatusOK, "User-agent: *\nAllow: /\nSitemap: %s/sitemap.xml\n", s.origin(c))
}

type urlset struct {
	XMLName xml.Name `xml:"urlset"`
	Xmlns   string   `xml:"xmlns,attr"`
	URLs    []loc    `xml:"url"`
}

type loc struct {
	Loc string `xml:"loc"`
}

func (s *SEO) sitemap(c *gin.Context) {
	works, err := s.Works.List(c.Request.Context())
	if err != nil {
		if s.Logger != nil {
			s.Logger.Warn("sitemap failed", slog.String("component", "site"), slog.String("error", err.Error()))
		}
		c.Status(http.StatusInternalServerError)
		return
	}
	origin := s.origin(c)
	pages := s.Pages
	if len(pages) == 0 {
		pages = DefaultPages
	}

	set := urlset{Xmlns: "http://www.sitemaps.org/schemas/sitemap/0.9"}
	for _, p := range pages {
		set.URLs = append(set.URLs, loc{Loc: origin + p})
	}
	for _, w := range catalog.VisibleTo(works, false) {
		set.URLs = append(set.URLs, loc{Loc: origin + "/#project/" + url.PathEscape(w.Slug)})
	}

	out, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Data(http.StatusOK, "application/xml; charset=utf-8", append([]byte(xml.Header), out...))
}

func (s *SEO) origin(c *gin.Context) string {
	if s.BaseURL != "" {
		return strings.TrimRight(s.BaseURL, "/")
	}
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if p := c.GetHeader("X-Forwarded-Proto"); p != "" {
		scheme = strings.TrimSpace(strings.Split(p, ",")[0])
	}
	return scheme + "://" + c.Request.Host
}
