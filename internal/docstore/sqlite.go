package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
)

// SQLiteBackend stores documents as rows of the documents table. Lock opens
// a write transaction (the database is opened with _txlock=immediate), so a
// read-modify-write cycle excludes writers in other processes until unlock
// commits it.
type SQLiteBackend struct {
	DB *sql.DB

	mu  sync.Mutex
	txs map[string]*sql.Tx
}

func NewSQLiteBackend(db *sql.DB) *SQLiteBackend {
	return &SQLiteBackend{DB: db, txs: make(map[string]*sql.Tx)}
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// q returns the open transaction for name, or the database itself.
func (b *SQLiteBackend) q(name string) querier {
	b.mu.Lock()
	defer b.mu.Unlock()
	if tx, ok := b.txs[name]; ok {
		return tx
	}
	return b.DB
}

func (b *SQLiteBackend) Location(name string) string {
	return "sqlite:documents/" + name
}

func (b *SQLiteBackend) Load(ctx context.Context, name string) ([]byte, error) {
	var body string
	err := b.q(name).QueryRowContext(ctx, `
		SELECT body FROM documents WHERE name = ?
	`, name).Scan(&body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotExist, name)
		}
		return nil, fmt.Errorf("load document: %w", err)
	}
	return []byte(body), nil
}

func (b *SQLiteBackend) Save(ctx context.Context, name string, data []byte) error {
	_, err := b.q(name).ExecContext(ctx, `
		INSERT INTO documents (name, body, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(name) DO UPDATE SET
			body = excluded.body,
			updated_at = CURRENT_TIMESTAMP
	`, name, string(data))
	if err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	return nil
}

func (b *SQLiteBackend) Lock(ctx context.Context, name string) (func() error, error) {
	// the tx outlives this call, so it must not be tied to a request context
	tx, err := b.DB.BeginTx(context.WithoutCancel(ctx), nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	b.mu.Lock()
	if b.txs == nil {
		b.txs = make(map[string]*sql.Tx)
	}
	b.txs[name] = tx
	b.mu.Unlock()

	return func() error {
		b.mu.Lock()
		delete(b.txs, name)
		b.mu.Unlock()
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit transaction: %w", err)
		}
		return nil
	}, nil
}
