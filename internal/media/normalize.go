package media

import (
	"context"
	"time"

	"reelcms/internal/manifest"
	"reelcms/pkg/models"
)

// NormalizeStore re-encodes every work in store and relinks the ones whose
// video did not change meanwhile. Replacements finished before a failure
// are still saved; the failure is returned alongside their count.
func (p *Pipeline) NormalizeStore(ctx context.Context, store *manifest.Store, posterSec float64) (int, error) {
	works, err := store.List(ctx)
	if err != nil {
		return 0, err
	}
	reps, normErr := p.NormalizeAll(ctx, works, posterSec)

	count := 0
	if len(reps) > 0 {
		_, err := store.Apply(ctx, func(current []models.Work, now time.Time) ([]models.Work, bool, error) {
			count = ApplyReplacements(current, reps, now)
			return current, count > 0, nil
		})
		if err != nil {
			return 0, err
		}
	}
	return count, normErr
}
