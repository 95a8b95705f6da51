package dataset

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/cognix/cognix/internal/schema"
	"github.com/cognix/cognix/internal/store"
)

// LoadCSV ingests a CSV file into the analytical store's dataset table.
// The header row must contain every schema column; extra CSV columns
// are silently skipped. Returns the number of rows loaded.
//
// Existing rows for the table are replaced: loading happens once at
// process start and the table is read-only afterward.
func LoadCSV(ctx context.Context, st *store.Store, reg *schema.Registry, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read csv header: %w", err)
	}

	cols := reg.Columns()
	indices := make([]int, len(cols))
	for i, col := range cols {
		indices[i] = -1
		for j, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), col.Name) {
				indices[i] = j
				break
			}
		}
		if indices[i] == -1 {
			return 0, fmt.Errorf("csv is missing schema column %q", col.Name)
		}
	}

	if err := createTable(ctx, st, reg); err != nil {
		return 0, err
	}

	tx, err := st.DB().BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin load: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM `+quote(reg.Table())); err != nil {
		return 0, fmt.Errorf("clear table: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, insertSQL(reg))
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	count := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("read csv row %d: %w", count+2, err)
		}

		args := make([]any, len(cols))
		for i, col := range cols {
			raw := ""
			if indices[i] < len(record) {
				raw = strings.TrimSpace(record[indices[i]])
			}
			v, err := coerce(col, raw)
			if err != nil {
				return 0, fmt.Errorf("csv row %d, column %q: %w", count+2, col.Name, err)
			}
			args[i] = v
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, fmt.Errorf("insert row %d: %w", count+2, err)
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit load: %w", err)
	}
	return count, nil
}

func createTable(ctx context.Context, st *store.Store, reg *schema.Registry) error {
	cols := reg.Columns()
	defs := make([]string, len(cols))
	for i, c := range cols {
		sqlType := "TEXT"
		if c.Type == schema.Numeric {
			sqlType = "REAL"
		}
		defs[i] = quote(c.Name) + " " + sqlType
	}
	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quote(reg.Table()), strings.Join(defs, ", "))
	if _, err := st.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	return nil
}

func insertSQL(reg *schema.Registry) string {
	cols := reg.Columns()
	names := make([]string, len(cols))
	marks := make([]string, len(cols))
	for i, c := range cols {
		names[i] = quote(c.Name)
		marks[i] = "?"
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quote(reg.Table()), strings.Join(names, ", "), strings.Join(marks, ", "))
}

// coerce converts a raw CSV value per the column's declared type.
// Empty values become NULL.
func coerce(col schema.Column, raw string) (any, error) {
	if raw == "" {
		return nil, nil
	}
	if col.Type == schema.Numeric {
		f, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
		if err != nil {
			return nil, fmt.Errorf("not a number: %q", raw)
		}
		return f, nil
	}
	return raw, nil
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}
