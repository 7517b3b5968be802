// Package docstore persists whole JSON documents. Every mutation is a full
// read-modify-write of one document, serialized in-process by Doc and across
// processes by the backend lock.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"reelcms/internal/apperr"
)

// ErrNotExist is returned by backends when the document was never written.
var ErrNotExist = errors.New("document does not exist")

type Backend interface {
	Load(ctx context.Context, name string) ([]byte, error)
	Save(ctx context.Context, name string, data []byte) error
	// Lock excludes other processes from the document until unlock is
	// called. Loads and saves of name in between belong to the locked cycle;
	// unlock reports whether they were made durable.
	Lock(ctx context.Context, name string) (unlock func() error, err error)
	Location(name string) string
}

// Doc is one named document on a backend.
type Doc struct {
	backend Backend
	name    string
	mu      sync.Mutex
}

func New(backend Backend, name string) *Doc {
	return &Doc{backend: backend, name: name}
}

func (d *Doc) Name() string { return d.name }

// Location describes where the document lives, for logs and errors.
func (d *Doc) Location() string { return d.backend.Location(d.name) }

// Read decodes the current document into v. A missing or malformed document
// is a storage error.
func (d *Doc) Read(ctx context.Context, v any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.load(ctx, "read "+d.name, v)
}

// Write replaces the document with v.
func (d *Doc) Write(ctx context.Context, v any) (err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	unlock, err := d.backend.Lock(ctx, d.name)
	if err != nil {
		return apperr.Storage("lock "+d.name, d.Location(), err)
	}
	defer d.release(unlock, "write "+d.name, &err)
	return d.save(ctx, "write "+d.name, v)
}

// Update loads the document into v, runs fn and writes v back when fn
// reports a change. The whole cycle holds both the in-process and the
// backend lock. Errors from fn are returned unchanged and nothing is written.
func (d *Doc) Update(ctx context.Context, v any, fn func() (changed bool, err error)) (err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	unlock, err := d.backend.Lock(ctx, d.name)
	if err != nil {
		return apperr.Storage("lock "+d.name, d.Location(), err)
	}
	defer d.release(unlock, "update "+d.name, &err)

	if err := d.load(ctx, "update "+d.name, v); err != nil {
		return err
	}
	changed, err := fn()
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	return d.save(ctx, "update "+d.name, v)
}

// Ensure writes initial when the document does not exist yet.
func (d *Doc) Ensure(ctx context.Context, initial any) (created bool, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	unlock, err := d.backend.Lock(ctx, d.name)
	if err != nil {
		return false, apperr.Storage("lock "+d.name, d.Location(), err)
	}
	defer d.release(unlock, "ensure "+d.name, &err)

	_, err = d.backend.Load(ctx, d.name)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, ErrNotExist) {
		return false, apperr.Storage("ensure "+d.name, d.Location(), err)
	}
	if err := d.save(ctx, "ensure "+d.name, initial); err != nil {
		return false, err
	}
	return true, nil
}

// release runs unlock and reports its failure through errp unless an
// earlier error is already set.
func (d *Doc) release(unlock func() error, op string, errp *error) {
	if uerr := unlock(); uerr != nil && *errp == nil {
		*errp = apperr.Storage(op, d.Location(), uerr)
	}
}

func (d *Doc) load(ctx context.Context, op string, v any) error {
	b, err := d.backend.Load(ctx, d.name)
	if err != nil {
		return apperr.Storage(op, d.Location(), err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return apperr.Storage(op, d.Location(), fmt.Errorf("decode: %w", err))
	}
	return nil
}

func (d *Doc) save(ctx context.Context, op string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return apperr.Storage(op, d.Location(), fmt.Errorf("encode: %w", err))
	}
	if err := d.backend.Save(ctx, d.name, b); err != nil {
		return apperr.Storage(op, d.Location(), err)
	}
	return nil
}
