package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testColumns() []Column {
	return []Column{
		{Name: "sales", Type: Numeric},
		{Name: "region", Type: Categorical, Domain: []string{"West", "East", "Central", "South", "North"}},
		{Name: "order_date", Type: Temporal},
	}
}

func TestNewRejectsDuplicateColumn(t *testing.T) {
	cols := append(testColumns(), Column{Name: "sales", Type: Numeric})
	_, err := New("superstore", "superstore", "", cols)
	assert.ErrorContains(t, err, "duplicate column")
}

func TestNewRejectsInvalidType(t *testing.T) {
	_, err := New("superstore", "superstore", "", []Column{{Name: "x", Type: "blob"}})
	assert.ErrorContains(t, err, "invalid type")
}

func TestNewRejectsDomainOnNonCategorical(t *testing.T) {
	_, err := New("superstore", "superstore", "", []Column{
		{Name: "sales", Type: Numeric, Domain: []string{"a"}},
	})
	assert.ErrorContains(t, err, "not categorical")
}

func TestVersionIsContentAddressed(t *testing.T) {
	r1, err := New("superstore", "superstore", "", testColumns())
	require.NoError(t, err)
	r2, err := New("superstore", "superstore", "", testColumns())
	require.NoError(t, err)

	assert.Equal(t, r1.Version(), r2.Version(), "same columns must yield same version")
	assert.Len(t, r1.Version(), 64)

	// Column declaration order must not affect the version.
	reversed := []Column{testColumns()[2], testColumns()[1], testColumns()[0]}
	r3, err := New("superstore", "superstore", "", reversed)
	require.NoError(t, err)
	assert.Equal(t, r1.Version(), r3.Version())

	// A changed domain must.
	cols := testColumns()
	cols[1].Domain = []string{"West"}
	r4, err := New("superstore", "superstore", "", cols)
	require.NoError(t, err)
	assert.NotEqual(t, r1.Version(), r4.Version())
}

func TestExplicitVersionPinned(t *testing.T) {
	r, err := New("superstore", "superstore", "v42", testColumns())
	require.NoError(t, err)
	assert.Equal(t, "v42", r.Version())
}

func TestInDomain(t *testing.T) {
	r, err := New("superstore", "superstore", "", testColumns())
	require.NoError(t, err)

	assert.True(t, r.InDomain("region", "West"))
	assert.False(t, r.InDomain("region", "Atlantis"))
	// Columns without a declared domain accept anything.
	assert.True(t, r.InDomain("sales", "whatever"))
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "superstore.cue")
	src := `
dataset: {
	name:  "superstore"
	table: "superstore"
	columns: [
		{name: "sales", type: "numeric"},
		{name: "region", type: "categorical", domain: ["West", "East"]},
		{name: "order_date", type: "temporal"},
	]
}
`
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	reg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "superstore", reg.Name())
	assert.Equal(t, "superstore", reg.Table())
	assert.Len(t, reg.Columns(), 3)

	col, ok := reg.Column("region")
	require.True(t, ok)
	assert.Equal(t, Categorical, col.Type)
	assert.Equal(t, []string{"West", "East"}, col.Domain)
}

func TestLoadFileRejectsBadType(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.cue")
	src := `
dataset: {
	name:  "x"
	table: "x"
	columns: [{name: "a", type: "vector"}]
}
`
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	_, err := LoadFile(path)
	assert.ErrorContains(t, err, "invalid type")
}
