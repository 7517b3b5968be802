// Package catalog decides what the public site sees: the access policy over
// the manifest, the sample catalog shown while the manifest has nothing
// public, and importing works from the media directory.
package catalog

import "reelcms/pkg/models"

// VisibleTo returns the works a caller may read. Authenticated callers get
// every work; anonymous callers get everything not explicitly unpublished.
func VisibleTo(works []models.Work, authenticated bool) []models.Work {
	if authenticated {
		return works
	}
	out := make([]models.Work, 0, len(works))
	for _, w := range works {
		if w.Published.Visible() {
			out = append(out, w)
		}
	}
	return out
}
