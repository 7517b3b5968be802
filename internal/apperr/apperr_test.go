package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestStatusFollowsKindThroughWrapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", Validation("upsert", "slug and title are required"), http.StatusBadRequest},
		{"not found", NotFound("poster", "/movies/a.mp4"), http.StatusNotFound},
		{"storage", Storage("list", "data/works.json", errors.New("boom")), http.StatusInternalServerError},
		{"media", MediaProcessing("transcode", "a.mov", errors.New("exit 1")), http.StatusInternalServerError},
		{"dependency", DependencyUnavailable("normalize", "ffmpeg"), http.StatusInternalServerError},
		{"wrapped", fmt.Errorf("handler: %w", Validation("bulk", "slugs required")), http.StatusBadRequest},
		{"plain", errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Status(tc.err); got != tc.want {
				t.Fatalf("Status() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestMessageHidesStorageDetail(t *testing.T) {
	err := Storage("list", "/srv/data/works.json", errors.New("unexpected end of JSON input"))
	if got := Message(err); got != "storage unavailable" {
		t.Fatalf("Message() = %q", got)
	}
	if !Is(err, KindStorage) {
		t.Fatal("expected storage kind")
	}
	if errors.Unwrap(err) == nil {
		t.Fatal("expected wrapped cause")
	}
}
