package models

import (
	"encoding/json"
	"reflect"
	"strings"
)

// Kind selects which media fields of a Work are meaningful.
type Kind string

const (
	KindVideo   Kind = "video"
	KindImage   Kind = "image"
	KindYouTube Kind = "youtube"
	KindVimeo   Kind = "vimeo"
)

// Known reports whether k is one of the supported kinds. The empty kind is
// accepted; the public scripts infer it from the media fields.
func (k Kind) Known() bool {
	switch k {
	case "", KindVideo, KindImage, KindYouTube, KindVimeo:
		return true
	}
	return false
}

// MediaItem is one asset of a multi-asset gallery.
type MediaItem struct {
	Kind     Kind   `json:"kind,omitempty"`
	VideoSrc string `json:"videoSrc,omitempty"`
	ImageSrc string `json:"imageSrc,omitempty"`
	Src      string `json:"src,omitempty"`
	Poster   string `json:"poster,omitempty"`
}

// Work is one portfolio entry. Keys the struct does not know about are kept
// in Extra and written back unchanged.
type Work struct {
	Slug        string       `json:"slug"`
	Title       string       `json:"title"`
	Meta        string       `json:"meta,omitempty"`
	Desc        string       `json:"desc,omitempty"`
	ProjectType string       `json:"projectType,omitempty"`
	Date        string       `json:"date,omitempty"`
	Role        string       `json:"role,omitempty"`
	ClientName  string       `json:"clientName,omitempty"`
	Link        string       `json:"link,omitempty"`
	Cats        Categories   `json:"cats,omitzero"`
	Kind        Kind         `json:"kind,omitempty"`
	VideoSrc    string       `json:"videoSrc,omitempty"`
	ImageSrc    string       `json:"imageSrc,omitempty"`
	Poster      string       `json:"poster,omitempty"`
	YouTubeID   string       `json:"youtubeId,omitempty"`
	VimeoID     string       `json:"vimeoId,omitempty"`
	Media       []MediaItem  `json:"media,omitempty"`
	Published   PublishState `json:"published,omitempty"`
	ScheduledAt *Timestamp   `json:"scheduledAt,omitempty"`
	PinHero     bool         `json:"pinHero,omitempty"`
	ThumbSec    *float64     `json:"thumbSec,omitempty"`
	CreatedAt   int64        `json:"createdAt,omitempty"`
	UpdatedAt   int64        `json:"updatedAt,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

type workFields Work

var knownKeys = func() map[string]struct{} {
	keys := make(map[string]struct{})
	t := reflect.TypeOf(workFields{})
	for i := 0; i < t.NumField(); i++ {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
		if name != "" && name != "-" {
			keys[name] = struct{}{}
		}
	}
	return keys
}()

func (w *Work) UnmarshalJSON(b []byte) error {
	var f workFields
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(b, &all); err != nil {
		return err
	}
	for k := range knownKeys {
		delete(all, k)
	}
	f.Extra = nil
	if len(all) > 0 {
		f.Extra = all
	}
	*w = Work(f)
	return nil
}

func (w Work) MarshalJSON() ([]byte, error) {
	b, err := json.Marshal(workFields(w))
	if err != nil || len(w.Extra) == 0 {
		return b, err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	for k, v := range w.Extra {
		if _, known := knownKeys[k]; known {
			continue
		}
		m[k] = v
	}
	return json.Marshal(m)
}

// VideoSource returns the top-level videoSrc, falling back to the first
// video item of the gallery.
func (w Work) VideoSource() string {
	if s := strings.TrimSpace(w.VideoSrc); s != "" {
		return s
	}
	for _, m := range w.Media {
		if m.Kind != "" && m.Kind != KindVideo {
			continue
		}
		if s := strings.TrimSpace(m.VideoSrc); s != "" {
			return s
		}
	}
	return ""
}

// ImageSource returns the top-level imageSrc, falling back to the first
// image item of the gallery.
func (w Work) ImageSource() string {
	if s := strings.TrimSpace(w.ImageSrc); s != "" {
		return s
	}
	for _, m := range w.Media {
		if m.Kind != "" && m.Kind != KindImage {
			continue
		}
		if s := strings.TrimSpace(m.ImageSrc); s != "" {
			return s
		}
		if m.Kind == KindImage && strings.TrimSpace(m.Src) != "" {
			return strings.TrimSpace(m.Src)
		}
	}
	return ""
}

// Patch is a partial Work as sent by the admin UI. Merging is key-level:
// every key present in the patch replaces the same key of the base record.
type Patch map[string]json.RawMessage

func (p Patch) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// String returns the string value of key, or "" when absent or not a string.
func (p Patch) String(key string) string {
	raw, ok := p[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// PatchOf converts a full Work into a Patch carrying all of its set keys.
func PatchOf(w Work) (Patch, error) {
	b, err := json.Marshal(w)
	if err != nil {
		return nil, err
	}
	var p Patch
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, err
	}
	return p, nil
}

// Merge overlays p onto base and decodes the result.
func Merge(base Work, p Patch) (Work, error) {
	merged, err := PatchOf(base)
	if err != nil {
		return Work{}, err
	}
	for k, v := range p {
		merged[k] = v
	}
	b, err := json.Marshal(merged)
	if err != nil {
		return Work{}, err
	}
	var out Work
	if err := json.Unmarshal(b, &out); err != nil {
		return Work{}, err
	}
	return out, nil
}
