package artifact

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cognix/cognix/internal/intent"
	"github.com/cognix/cognix/internal/store"
)

// Cache reads and writes bundles in the embedded store.
type Cache struct {
	store *store.Store
}

func NewCache(st *store.Store) *Cache {
	return &Cache{store: st}
}

// FingerprintOf computes the cache key for an intent under a schema
// version. Semantically equal intents collide here on purpose.
func FingerprintOf(schemaVersion string, q intent.QueryIntent) (string, error) {
	return intent.Fingerprint(schemaVersion, q)
}

// Lookup returns the bundle stored under fingerprint, or (nil, nil) on a
// miss. Corrupt stored data surfaces as a *Error, not a miss.
func (c *Cache) Lookup(ctx context.Context, fingerprint string) (*Bundle, error) {
	var raw []byte
	err := c.store.QueryRow(ctx,
		`SELECT bundle FROM artifacts WHERE fingerprint = ?`, fingerprint,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &Error{Op: "lookup", Fingerprint: fingerprint, Err: err}
	}

	b, err := Unmarshal(raw)
	if err != nil {
		return nil, &Error{Op: "lookup", Fingerprint: fingerprint, Err: err}
	}
	return b, nil
}

// Store writes the bundle unless its fingerprint is already present. The
// conflict clause makes the write idempotent under concurrency: losers of
// the race are silent no-ops, so a fingerprint is written at most once.
func (c *Cache) Store(ctx context.Context, b *Bundle) error {
	raw, err := b.Marshal()
	if err != nil {
		return &Error{Op: "store", Fingerprint: b.Fingerprint, Err: err}
	}

	_, err = c.store.Exec(ctx,
		`INSERT INTO artifacts (fingerprint, schema_version, bundle, row_count, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(fingerprint) DO NOTHING`,
		b.Fingerprint, b.SchemaVersion, raw, b.Table.RowCount, b.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return &Error{Op: "store", Fingerprint: b.Fingerprint, Err: err}
	}
	return nil
}

// Summary is one row of the artifact listing.
type Summary struct {
	Fingerprint   string    `json:"fingerprint"`
	SchemaVersion string    `json:"schema_version"`
	RowCount      int       `json:"row_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// List enumerates stored bundles, newest first.
func (c *Cache) List(ctx context.Context) ([]Summary, error) {
	rows, err := c.store.Query(ctx,
		`SELECT fingerprint, schema_version, row_count, created_at
		 FROM artifacts
		 ORDER BY created_at DESC, fingerprint ASC`)
	if err != nil {
		return nil, &Error{Op: "list", Err: err}
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var s Summary
		var createdAt string
		if err := rows.Scan(&s.Fingerprint, &s.SchemaVersion, &s.RowCount, &createdAt); err != nil {
			return nil, &Error{Op: "list", Err: err}
		}
		s.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, &Error{Op: "list", Err: fmt.Errorf("parse created_at %q: %w", createdAt, err)}
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, &Error{Op: "list", Err: err}
	}
	return out, nil
}

// Count returns how many bundles are stored.
func (c *Cache) Count(ctx context.Context) (int, error) {
	var n int
	if err := c.store.QueryRow(ctx, `SELECT COUNT(*) FROM artifacts`).Scan(&n); err != nil {
		return 0, &Error{Op: "count", Err: err}
	}
	return n, nil
}
