package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenInMemory(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	// Artifact schema applied.
	var name string
	err = s.QueryRow(context.Background(),
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'artifacts'`).Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "artifacts", name)
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cognix.db")

	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	_, err = s2.Exec(context.Background(),
		`INSERT INTO artifacts (fingerprint, schema_version, bundle, row_count, created_at)
		 VALUES ('fp', 'v1', '{}', 0, '2026-01-01T00:00:00Z')`)
	assert.NoError(t, err)
}
