package docstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"reelcms/internal/apperr"
	"reelcms/pkg/database"
)

func newFileDoc(t *testing.T) (*Doc, string) {
	t.Helper()
	dir := t.TempDir()
	b, err := NewFileBackend(dir)
	if err != nil {
		t.Fatalf("new backend: %v", err)
	}
	return New(b, "works"), dir
}

func TestReadMissingDocumentIsStorageError(t *testing.T) {
	doc, _ := newFileDoc(t)
	var out []string
	err := doc.Read(context.Background(), &out)
	if !apperr.Is(err, apperr.KindStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
	if !errors.Is(err, ErrNotExist) {
		t.Fatalf("expected ErrNotExist in chain, got %v", err)
	}
}

func TestReadMalformedDocumentIsStorageError(t *testing.T) {
	doc, dir := newFileDoc(t)
	if err := os.WriteFile(filepath.Join(dir, "works.json"), []byte("[{"), 0o644); err != nil {
		t.Fatal(err)
	}
	var out []map[string]any
	if err := doc.Read(context.Background(), &out); !apperr.Is(err, apperr.KindStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
}

func TestEnsureThenUpdate(t *testing.T) {
	ctx := context.Background()
	doc, dir := newFileDoc(t)

	created, err := doc.Ensure(ctx, []string{})
	if err != nil || !created {
		t.Fatalf("ensure: created=%v err=%v", created, err)
	}
	created, err = doc.Ensure(ctx, []string{"ignored"})
	if err != nil || created {
		t.Fatalf("second ensure should be a no-op: created=%v err=%v", created, err)
	}

	var items []string
	err = doc.Update(ctx, &items, func() (bool, error) {
		items = append(items, "a")
		return true, nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	var got []string
	if err := doc.Read(ctx, &got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 1 || got[0] != "a" {
		t.Fatalf("unexpected document: %v", got)
	}

	leftovers, _ := filepath.Glob(filepath.Join(dir, ".works-*.tmp"))
	if len(leftovers) != 0 {
		t.Fatalf("temp files left behind: %v", leftovers)
	}
}

func TestUpdateErrorWritesNothing(t *testing.T) {
	ctx := context.Background()
	doc, _ := newFileDoc(t)
	if _, err := doc.Ensure(ctx, []string{"keep"}); err != nil {
		t.Fatal(err)
	}

	var items []string
	boom := apperr.Validation("test", "nope")
	err := doc.Update(ctx, &items, func() (bool, error) {
		items = nil
		return true, boom
	})
	if err != boom {
		t.Fatalf("expected fn error unchanged, got %v", err)
	}
	var got []string
	_ = doc.Read(ctx, &got)
	if len(got) != 1 {
		t.Fatalf("document changed after failed update: %v", got)
	}
}

func TestSQLiteBackendRoundTrip(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	doc := New(NewSQLiteBackend(db), "site")
	var missing map[string]any
	if err := doc.Read(ctx, &missing); !errors.Is(err, ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
	if err := doc.Write(ctx, map[string]string{"title": "x"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := doc.Write(ctx, map[string]string{"title": "y"}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	var got map[string]string
	if err := doc.Read(ctx, &got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got["title"] != "y" {
		t.Fatalf("unexpected document: %v", got)
	}
}

func TestSQLiteUpdatesFromSeparateHandlesDoNotLoseWrites(t *testing.T) {
	ctx := context.Background()
	cfg := database.Config{Path: filepath.Join(t.TempDir(), "shared.db")}

	docs := make([]*Doc, 2)
	for i := range docs {
		db, err := database.Open(cfg)
		if err != nil {
			t.Fatalf("open handle %d: %v", i, err)
		}
		defer db.Close()
		if i == 0 {
			if err := database.Migrate(db); err != nil {
				t.Fatalf("migrate: %v", err)
			}
		}
		docs[i] = New(NewSQLiteBackend(db), "counter")
	}
	if _, err := docs[0].Ensure(ctx, map[string]int{"n": 0}); err != nil {
		t.Fatalf("ensure: %v", err)
	}

	const rounds = 20
	var wg sync.WaitGroup
	errs := make(chan error, len(docs)*rounds)
	for _, doc := range docs {
		wg.Add(1)
		go func(doc *Doc) {
			defer wg.Done()
			for range rounds {
				var c map[string]int
				errs <- doc.Update(ctx, &c, func() (bool, error) {
					c["n"]++
					return true, nil
				})
			}
		}(doc)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("update: %v", err)
		}
	}

	var got map[string]int
	if err := docs[1].Read(ctx, &got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got["n"] != len(docs)*rounds {
		t.Fatalf("expected %d increments, got %d", len(docs)*rounds, got["n"])
	}
}
