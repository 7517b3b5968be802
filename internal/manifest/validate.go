package manifest

import (
	"regexp"
	"strings"

	"reelcms/internal/apperr"
	"reelcms/pkg/models"
)

var slugPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ValidSlug reports whether slug can be used unescaped in a URL path.
func ValidSlug(slug string) bool {
	return slugPattern.MatchString(slug)
}

// Validate checks the invariants of a single work before it is persisted.
func Validate(w models.Work) error {
	const op = "validate work"
	if strings.TrimSpace(w.Slug) == "" || strings.TrimSpace(w.Title) == "" {
		return apperr.Validation(op, "slug and title are required")
	}
	if !w.Kind.Known() {
		return apperr.Validation(op, "unknown kind "+string(w.Kind))
	}
	for _, m := range w.Media {
		if !m.Kind.Known() {
			return apperr.Validation(op, "unknown media kind "+string(m.Kind))
		}
	}
	switch w.Kind {
	case models.KindVideo:
		if w.VideoSource() == "" {
			return apperr.Validation(op, "video work needs a videoSrc")
		}
	case models.KindImage:
		if w.ImageSource() == "" {
			return apperr.Validation(op, "image work needs an imageSrc")
		}
	case models.KindYouTube:
		if strings.TrimSpace(w.YouTubeID) == "" {
			return apperr.Validation(op, "youtube work needs a youtubeId")
		}
	case models.KindVimeo:
		if strings.TrimSpace(w.VimeoID) == "" {
			return apperr.Validation(op, "vimeo work needs a vimeoId")
		}
	}
	return nil
}
