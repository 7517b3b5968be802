package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"reelcms/internal/apperr"
	"reelcms/pkg/models"
)

// VideoExtensions are the containers recognized as video files.
var VideoExtensions = []string{".mp4", ".mov", ".m4v", ".webm"}

// IsVideoFile reports whether name has a recognized video extension.
func IsVideoFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, v := range VideoExtensions {
		if ext == v {
			return true
		}
	}
	return false
}

var (
	categoryPool = []string{"commercials", "music-videos", "short-films", "feature-films"}
	typePool     = []string{"Brand Campaign", "Music Video", "Short Film", "Documentary"}
	clientPool   = []string{"Client A", "Client B", "Client C", "Client D"}
)

// Scanner builds placeholder works from the video files in a directory.
type Scanner struct {
	Dir       string
	URLPrefix string
	Meta      string
	Role      string
}

func NewScanner(dir, urlPrefix string) *Scanner {
	return &Scanner{Dir: dir, URLPrefix: urlPrefix, Meta: "Dir. TROY", Role: "Director"}
}

// Scan returns one work per recognized video file, ordered by file name.
// Placeholder categories, project types and clients are assigned
// round-robin in that order, so the result is deterministic. Names that
// slugify alike get -2, -3, ... suffixes in file-name order. A missing
// directory yields no works.
func (s *Scanner) Scan() ([]models.Work, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []models.Work{}, nil
		}
		return nil, apperr.Storage("scan media", s.Dir, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	works := make([]models.Work, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	i := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !IsVideoFile(name) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		base := strings.TrimSuffix(name, filepath.Ext(name))
		slug := uniqueSlug(Slugify(base, i), seen)

		w := models.Work{
			Slug:        slug,
			Title:       base,
			Meta:        s.Meta,
			Cats:        models.CategoriesOf(categoryPool[i%len(categoryPool)]),
			Kind:        models.KindVideo,
			VideoSrc:    s.url(name),
			ProjectType: typePool[i%len(typePool)],
			Date:        fmt.Sprint(info.ModTime().Year()),
			Role:        s.Role,
			ClientName:  clientPool[i%len(clientPool)],
			Published:   models.Published,
		}
		if _, err := os.Stat(filepath.Join(s.Dir, base+".jpg")); err == nil {
			w.Poster = s.url(base + ".jpg")
		}
		works = append(works, w)
		i++
	}
	return works, nil
}

// uniqueSlug suffixes slug with -2, -3, ... until it is not in seen, then
// records it.
func uniqueSlug(slug string, seen map[string]bool) string {
	out := slug
	for n := 2; seen[out]; n++ {
		out = fmt.Sprintf("%s-%d", slug, n)
	}
	seen[out] = true
	return out
}

func (s *Scanner) url(name string) string {
	prefix := s.URLPrefix
	if prefix == "" {
		prefix = "/movies"
	}
	return path.Join("/", prefix, name)
}

var foldAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

var lower = cases.Lower(language.Und)

// Slugify turns a file name into a URL-safe slug: accents are folded, the
// result lowercased, and every run of other characters becomes one '-'.
// Names with nothing left fall back to work-<index>.
func Slugify(name string, index int) string {
	folded, _, err := transform.String(foldAccents, name)
	if err != nil {
		folded = name
	}
	folded = lower.String(folded)

	var b strings.Builder
	dash := false
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	slug := strings.TrimRight(b.String(), "-")
	if slug == "" {
		return fmt.Sprintf("work-%d", index)
	}
	return slug
}
