package catalog

import (
	"context"
	"strings"
	"time"

	"reelcms/internal/apperr"
	"reelcms/internal/manifest"
	"reelcms/pkg/models"
)

// Source labels where a View came from.
type Source string

const (
	SourceManifest Source = "manifest"
	SourceSample   Source = "sample"
)

// View is what one caller gets from the catalog.
type View struct {
	Works    []models.Work
	Source   Source
	Promoted []string
}

type Service struct {
	Store   *manifest.Store
	Scanner *Scanner
	// SampleFallback enables the placeholder catalog for anonymous callers
	// when nothing is visible.
	SampleFallback bool
}

func NewService(store *manifest.Store, scanner *Scanner) *Service {
	return &Service{Store: store, Scanner: scanner, SampleFallback: true}
}

// Public promotes due schedules, applies the access policy and falls back
// to the sample catalog when an anonymous caller would see nothing.
func (s *Service) Public(ctx context.Context, authenticated bool) (View, error) {
	works, promoted, err := s.Store.ListPromoted(ctx)
	if err != nil {
		return View{}, err
	}
	visible := VisibleTo(works, authenticated)
	if authenticated || len(visible) > 0 || !s.SampleFallback || s.Scanner == nil {
		return View{Works: visible, Source: SourceManifest, Promoted: promoted}, nil
	}

	sample, err := SampleCatalog(s.Scanner)
	if err != nil {
		return View{}, err
	}
	return View{Works: sample, Source: SourceSample, Promoted: promoted}, nil
}

type ImportMode string

const (
	ImportReplace ImportMode = "replace"
	ImportMerge   ImportMode = "merge"
)

// ParseImportMode accepts "replace" (the default when empty) or "merge".
func ParseImportMode(s string) (ImportMode, error) {
	switch ImportMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ImportReplace:
		return ImportReplace, nil
	case ImportMerge:
		return ImportMerge, nil
	}
	return "", apperr.Validation("import works", "mode must be replace or merge")
}

// Import builds a work for every video in the media directory and either
// replaces the manifest with them or merges them in by slug. On merge the
// fields already in the manifest win. It returns the resulting manifest size.
func (s *Service) Import(ctx context.Context, mode ImportMode, defaultPublished bool) (int, error) {
	if mode != ImportReplace && mode != ImportMerge {
		return 0, apperr.Validation("import works", "mode must be replace or merge")
	}
	scanned, err := s.Scanner.Scan()
	if err != nil {
		return 0, err
	}
	for i := range scanned {
		scanned[i].Published = models.PublishStateOf(defaultPublished)
	}

	works, err := s.Store.Apply(ctx, func(current []models.Work, now time.Time) ([]models.Work, bool, error) {
		ms := now.UnixMilli()
		if mode == ImportReplace {
			for i := range scanned {
				scanned[i].CreatedAt = ms
				scanned[i].UpdatedAt = ms
			}
			return scanned, true, nil
		}
		return mergeScanned(current, scanned, ms)
	})
	if err != nil {
		return 0, err
	}
	return len(works), nil
}

func mergeScanned(current, scanned []models.Work, ms int64) ([]models.Work, bool, error) {
	next := append([]models.Work(nil), current...)
	index := make(map[string]int, len(next))
	for i, w := range next {
		index[w.Slug] = i
	}
	for _, synth := range scanned {
		i, ok := index[synth.Slug]
		if !ok {
			synth.CreatedAt = ms
			synth.UpdatedAt = ms
			index[synth.Slug] = len(next)
			next = append(next, synth)
			continue
		}
		existing, err := models.PatchOf(next[i])
		if err != nil {
			return nil, false, apperr.Validation("import works", "invalid work "+synth.Slug+": "+err.Error())
		}
		merged, err := models.Merge(synth, existing)
		if err != nil {
			return nil, false, apperr.Validation("import works", "invalid work "+synth.Slug+": "+err.Error())
		}
		merged.UpdatedAt = ms
		if merged.CreatedAt == 0 {
			merged.CreatedAt = ms
		}
		next[i] = merged
	}
	return next, true, nil
}
