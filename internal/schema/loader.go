package schema

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
)

// Schema definitions are authored in CUE so that column types and
// categorical domains are checked at load time, before any query runs.
// Expected shape:
//
//	dataset: {
//		name:  "superstore"
//		table: "superstore"
//		columns: [
//			{name: "sales", type: "numeric"},
//			{name: "region", type: "categorical", domain: ["West", "East"]},
//			{name: "order_date", type: "temporal"},
//		]
//	}

// datasetDecl mirrors the CUE dataset declaration.
type datasetDecl struct {
	Name    string       `json:"name"`
	Table   string       `json:"table"`
	Version string       `json:"version"`
	Columns []columnDecl `json:"columns"`
}

type columnDecl struct {
	Name   string   `json:"name"`
	Type   string   `json:"type"`
	Domain []string `json:"domain"`
}

// LoadDir evaluates the CUE package in dir and builds a Registry from
// its dataset declaration.
func LoadDir(dir string) (*Registry, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("schema dir not found: %s", dir)
	}
	if err != nil {
		return nil, fmt.Errorf("schema dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances in %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("loading CUE files: %w", inst.Err)
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("building CUE value: %w", err)
	}

	return registryFromValue(value)
}

// LoadFile evaluates a single CUE file and builds a Registry. Used by
// tests and the CLI's --schema flag.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema file: %w", err)
	}

	ctx := cuecontext.New()
	value := ctx.CompileBytes(data, cue.Filename(path))
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("compiling CUE: %w", err)
	}

	return registryFromValue(value)
}

func registryFromValue(value cue.Value) (*Registry, error) {
	dsVal := value.LookupPath(cue.ParsePath("dataset"))
	if !dsVal.Exists() {
		return nil, fmt.Errorf("schema: missing top-level dataset declaration")
	}

	var decl datasetDecl
	if err := dsVal.Decode(&decl); err != nil {
		return nil, fmt.Errorf("decoding dataset declaration: %w", err)
	}

	columns := make([]Column, 0, len(decl.Columns))
	for _, c := range decl.Columns {
		columns = append(columns, Column{
			Name:   c.Name,
			Type:   ColumnType(c.Type),
			Domain: c.Domain,
		})
	}

	return New(decl.Name, decl.Table, decl.Version, columns)
}
