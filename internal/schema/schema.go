// Package schema holds the dataset's column metadata. A Registry is
// built once at process start and is read-only afterward; every
// downstream step validates against it.
package schema

import (
	"fmt"
	"sort"

	"github.com/cognix/cognix/internal/canonical"
)

// ColumnType classifies a dataset column for validation and compilation.
type ColumnType string

const (
	Numeric     ColumnType = "numeric"
	Categorical ColumnType = "categorical"
	Temporal    ColumnType = "temporal"
	Text        ColumnType = "text"
)

// ValidColumnType reports whether t is one of the declared column types.
func ValidColumnType(t ColumnType) bool {
	switch t {
	case Numeric, Categorical, Temporal, Text:
		return true
	}
	return false
}

// Column describes one dataset column. Domain lists the allowed values
// for categorical columns; empty means unconstrained.
type Column struct {
	Name   string
	Type   ColumnType
	Domain []string
}

// Registry is the immutable schema for one dataset. Safe for unlimited
// concurrent reads after construction.
type Registry struct {
	name    string
	table   string
	columns []Column
	byName  map[string]Column
	version string
}

// New builds a Registry. Column names must be unique and types valid.
// The version tag defaults to a content hash of the columns; pass a
// non-empty version to pin it explicitly.
func New(name, table, version string, columns []Column) (*Registry, error) {
	if name == "" {
		return nil, fmt.Errorf("schema: dataset name is required")
	}
	if table == "" {
		return nil, fmt.Errorf("schema: table name is required")
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("schema: at least one column is required")
	}

	byName := make(map[string]Column, len(columns))
	for _, c := range columns {
		if c.Name == "" {
			return nil, fmt.Errorf("schema: column with empty name")
		}
		if !ValidColumnType(c.Type) {
			return nil, fmt.Errorf("schema: column %q has invalid type %q", c.Name, c.Type)
		}
		if _, dup := byName[c.Name]; dup {
			return nil, fmt.Errorf("schema: duplicate column %q", c.Name)
		}
		if len(c.Domain) > 0 && c.Type != Categorical {
			return nil, fmt.Errorf("schema: column %q declares a domain but is not categorical", c.Name)
		}
		byName[c.Name] = c
	}

	cols := make([]Column, len(columns))
	copy(cols, columns)

	if version == "" {
		v, err := contentVersion(name, cols)
		if err != nil {
			return nil, err
		}
		version = v
	}

	return &Registry{
		name:    name,
		table:   table,
		columns: cols,
		byName:  byName,
		version: version,
	}, nil
}

// Name returns the dataset name.
func (r *Registry) Name() string { return r.name }

// Table returns the analytical store table holding the dataset.
func (r *Registry) Table() string { return r.table }

// Version returns the schema version tag used in fingerprints.
func (r *Registry) Version() string { return r.version }

// Columns returns a copy of the column list in declaration order.
func (r *Registry) Columns() []Column {
	out := make([]Column, len(r.columns))
	copy(out, r.columns)
	return out
}

// Column looks up a column by name.
func (r *Registry) Column(name string) (Column, bool) {
	c, ok := r.byName[name]
	return c, ok
}

// HasColumn reports whether the column exists.
func (r *Registry) HasColumn(name string) bool {
	_, ok := r.byName[name]
	return ok
}

// InDomain reports whether value is allowed for the named categorical
// column. Columns without a declared domain accept any value.
func (r *Registry) InDomain(name, value string) bool {
	c, ok := r.byName[name]
	if !ok || len(c.Domain) == 0 {
		return true
	}
	for _, v := range c.Domain {
		if v == value {
			return true
		}
	}
	return false
}

// contentVersion hashes the schema into a stable version tag. Columns
// are keyed by name so declaration order does not affect the version.
func contentVersion(name string, columns []Column) (string, error) {
	cols := make(map[string]any, len(columns))
	for _, c := range columns {
		entry := map[string]any{"type": string(c.Type)}
		if len(c.Domain) > 0 {
			domain := make([]string, len(c.Domain))
			copy(domain, c.Domain)
			sort.Strings(domain)
			vals := make([]any, len(domain))
			for i, d := range domain {
				vals[i] = d
			}
			entry["domain"] = vals
		}
		cols[c.Name] = entry
	}

	obj := map[string]any{
		"dataset": name,
		"columns": cols,
	}
	h, err := canonical.HashObject(canonical.DomainSchema, obj)
	if err != nil {
		return "", fmt.Errorf("schema version: %w", err)
	}
	return h, nil
}
