package sync

import "time"

const (
	EventWorksChanged    = "works.changed"
	EventWorksPromoted   = "works.promoted"
	EventWorksImported   = "works.imported"
	EventWorksNormalized = "works.normalized"
	EventManifestChanged = "manifest.changed"
	EventSiteChanged     = "site.changed"
	EventMediaIngested   = "media.ingested"
)

type Event struct {
	Type  string    `json:"type"`
	Slugs []string  `json:"slugs,omitempty"`
	Path  string    `json:"path,omitempty"`
	Count int       `json:"count,omitempty"`
	At    time.Time `json:"at"`
}

// Publisher receives change events. Handlers take a Publisher so tests can
// run without a hub.
type Publisher interface {
	Publish(Event)
}

// Notify publishes e when p is set.
func Notify(p Publisher, e Event) {
	if p != nil {
		p.Publish(e)
	}
}
