// Package manifest is the durable collection of portfolio works. The whole
// collection is one JSON document; every mutation rewrites it.
package manifest

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"reelcms/internal/apperr"
	"reelcms/internal/docstore"
	"reelcms/pkg/models"
)

// DocumentName is the name of the manifest document on its backend.
const DocumentName = "works"

type Store struct {
	Doc *docstore.Doc
	Now func() time.Time
}

func NewStore(doc *docstore.Doc) *Store {
	return &Store{Doc: doc, Now: time.Now}
}

// Init creates an empty manifest when none exists.
func (s *Store) Init(ctx context.Context) (bool, error) {
	return s.Doc.Ensure(ctx, []models.Work{})
}

// List returns the manifest in persisted order.
func (s *Store) List(ctx context.Context) ([]models.Work, error) {
	var works []models.Work
	if err := s.Doc.Read(ctx, &works); err != nil {
		return nil, err
	}
	return works, nil
}

// ListPromoted promotes due schedules, persists when anything changed, and
// returns the resulting manifest together with the promoted slugs.
func (s *Store) ListPromoted(ctx context.Context) ([]models.Work, []string, error) {
	var works []models.Work
	var promoted []string
	err := s.Doc.Update(ctx, &works, func() (bool, error) {
		promoted = promoteDue(works, s.Now())
		return len(promoted) > 0, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return works, promoted, nil
}

// Promote applies due schedules and returns the promoted slugs.
func (s *Store) Promote(ctx context.Context) ([]string, error) {
	_, promoted, err := s.ListPromoted(ctx)
	return promoted, err
}

// Upsert creates or merges the work keyed by the patch's slug.
func (s *Store) Upsert(ctx context.Context, p models.Patch) (models.Work, error) {
	slug := strings.TrimSpace(p.String("slug"))
	title := strings.TrimSpace(p.String("title"))
	if slug == "" || title == "" {
		return models.Work{}, apperr.Validation("upsert work", "slug and title are required")
	}
	if !ValidSlug(slug) {
		return models.Work{}, apperr.Validation("upsert work", "slug must contain only letters, digits, '-', '_' or '.'")
	}
	explicit, hasExplicit, err := publishedFrom(p)
	if err != nil {
		return models.Work{}, err
	}

	var works []models.Work
	var result models.Work
	err = s.Doc.Update(ctx, &works, func() (bool, error) {
		now := s.Now()
		idx := indexOf(works, slug)

		var base models.Work
		if idx >= 0 {
			base = works[idx]
		}
		merged, err := models.Merge(base, p)
		if err != nil {
			return false, apperr.Validation("upsert work", "invalid work: "+err.Error())
		}
		merged.Slug = slug
		merged.UpdatedAt = now.UnixMilli()

		switch {
		case hasExplicit:
			merged.Published = explicit
		case idx >= 0 && base.Published == models.PublishUnspecified:
			// legacy records were public; keep them so, but explicitly
			merged.Published = models.Published
		case idx >= 0:
			merged.Published = base.Published
		default:
			merged.Published = models.Unpublished
		}

		if idx >= 0 && base.CreatedAt != 0 {
			merged.CreatedAt = base.CreatedAt
		} else if idx < 0 || merged.CreatedAt == 0 {
			merged.CreatedAt = now.UnixMilli()
		}
		settleSchedule(&merged, now)

		if err := Validate(merged); err != nil {
			return false, err
		}

		if idx >= 0 {
			works[idx] = merged
		} else {
			works = append([]models.Work{merged}, works...)
		}
		result = merged
		return true, nil
	})
	if err != nil {
		return models.Work{}, err
	}
	return result, nil
}

// Remove deletes the work with slug. Removing an absent slug is not an error.
func (s *Store) Remove(ctx context.Context, slug string) error {
	slug = strings.TrimSpace(slug)
	var works []models.Work
	return s.Doc.Update(ctx, &works, func() (bool, error) {
		kept := works[:0]
		for _, w := range works {
			if w.Slug != slug {
				kept = append(kept, w)
			}
		}
		changed := len(kept) != len(works)
		works = kept
		return changed, nil
	})
}

// BulkChange carries the fields a bulk update may set. A nil field is left
// untouched.
type BulkChange struct {
	Published   *bool
	ScheduledAt *models.Timestamp
}

// BulkUpdate applies ch to every work whose slug is listed and returns how
// many were touched. A valid schedule forces the work unpublished; an
// explicit publish without one clears any schedule.
func (s *Store) BulkUpdate(ctx context.Context, slugs []string, ch BulkChange) (int, error) {
	wanted := make(map[string]struct{}, len(slugs))
	for _, slug := range slugs {
		if slug = strings.TrimSpace(slug); slug != "" {
			wanted[slug] = struct{}{}
		}
	}
	if len(wanted) == 0 {
		return 0, apperr.Validation("bulk update", "slugs required")
	}

	var works []models.Work
	count := 0
	err := s.Doc.Update(ctx, &works, func() (bool, error) {
		now := s.Now().UnixMilli()
		for i := range works {
			w := &works[i]
			if _, ok := wanted[w.Slug]; !ok {
				continue
			}
			if ch.Published != nil {
				w.Published = models.PublishStateOf(*ch.Published)
			}
			scheduling := ch.ScheduledAt != nil && ch.ScheduledAt.Valid()
			if ch.Published != nil && *ch.Published && !scheduling {
				// publishing now supersedes a pending schedule
				w.ScheduledAt = nil
			}
			if scheduling {
				ts := models.TimestampMillis(ch.ScheduledAt.Millis())
				w.ScheduledAt = &ts
				w.Published = models.Unpublished
			}
			w.UpdatedAt = now
			count++
		}
		return count > 0, nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Apply runs fn over the manifest inside one locked read-modify-write cycle.
// fn returns the new collection and whether it should be persisted.
func (s *Store) Apply(ctx context.Context, fn func(works []models.Work, now time.Time) ([]models.Work, bool, error)) ([]models.Work, error) {
	var works []models.Work
	err := s.Doc.Update(ctx, &works, func() (bool, error) {
		next, changed, err := fn(works, s.Now())
		if err != nil {
			return false, err
		}
		works = next
		return changed, nil
	})
	if err != nil {
		return nil, err
	}
	return works, nil
}

// Replace overwrites the whole manifest.
func (s *Store) Replace(ctx context.Context, works []models.Work) error {
	if works == nil {
		works = []models.Work{}
	}
	return s.Doc.Write(ctx, works)
}

func indexOf(works []models.Work, slug string) int {
	for i := range works {
		if works[i].Slug == slug {
			return i
		}
	}
	return -1
}

func publishedFrom(p models.Patch) (models.PublishState, bool, error) {
	raw, ok := p["published"]
	if !ok {
		return models.PublishUnspecified, false, nil
	}
	var b *bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return models.PublishUnspecified, false, apperr.Validation("upsert work", "published must be a boolean")
	}
	if b == nil {
		return models.PublishUnspecified, false, nil
	}
	return models.PublishStateOf(*b), true, nil
}

// settleSchedule keeps published and scheduledAt mutually exclusive: a
// pending schedule hides the work, and an already published work drops a
// schedule that has passed.
func settleSchedule(w *models.Work, now time.Time) {
	if w.ScheduledAt == nil || !w.ScheduledAt.Valid() {
		return
	}
	if !w.ScheduledAt.Due(now) {
		w.Published = models.Unpublished
		return
	}
	if w.Published == models.Published {
		w.ScheduledAt = nil
	}
}
