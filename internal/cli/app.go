package cli

import (
	"os"

	"github.com/cognix/cognix/internal/artifact"
	"github.com/cognix/cognix/internal/engine"
	"github.com/cognix/cognix/internal/narrate"
	"github.com/cognix/cognix/internal/pipeline"
	"github.com/cognix/cognix/internal/resolver"
	"github.com/cognix/cognix/internal/schema"
	"github.com/cognix/cognix/internal/store"
	"github.com/cognix/cognix/internal/viz"
)

// App bundles the wired components a command needs.
type App struct {
	Store    *store.Store
	Registry *schema.Registry
	Cache    *artifact.Cache
	Pipeline *pipeline.Pipeline
}

// Close releases the app's store.
func (a *App) Close() error {
	return a.Store.Close()
}

// openStore opens the database named by the root flags.
func openStore(opts *RootOptions) (*store.Store, error) {
	st, err := store.Open(opts.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

// loadRegistry loads the schema definition named by the root flags,
// accepting either a single .cue file or a directory of them.
func loadRegistry(opts *RootOptions) (*schema.Registry, error) {
	if opts.Schema == "" {
		return nil, NewExitError(ExitCommandError, "a schema definition is required (--schema)")
	}
	info, err := os.Stat(opts.Schema)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to read schema path", err)
	}
	var reg *schema.Registry
	if info.IsDir() {
		reg, err = schema.LoadDir(opts.Schema)
	} else {
		reg, err = schema.LoadFile(opts.Schema)
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load schema", err)
	}
	return reg, nil
}

// openApp wires the full pipeline. The completion service comes from the
// GEMINI_API_KEY environment variable; without it, questions cannot be
// resolved but cached artifacts are still readable.
func openApp(opts *RootOptions) (*App, error) {
	st, err := openStore(opts)
	if err != nil {
		return nil, err
	}
	reg, err := loadRegistry(opts)
	if err != nil {
		st.Close()
		return nil, err
	}

	completer, generator, err := buildCompleter()
	if err != nil {
		st.Close()
		return nil, err
	}

	cache := artifact.NewCache(st)
	p := pipeline.New(
		reg,
		resolver.New(completer),
		engine.New(st),
		viz.NewSelector(),
		narrate.New(generator),
		cache,
	)

	return &App{Store: st, Registry: reg, Cache: cache, Pipeline: p}, nil
}

func buildCompleter() (resolver.Completer, narrate.Completer, error) {
	key := os.Getenv("GEMINI_API_KEY")
	if key == "" {
		return nil, nil, NewExitError(ExitCommandError,
			"GEMINI_API_KEY is not set; the completion service is required to resolve questions")
	}
	g := resolver.NewGemini(resolver.GeminiConfig{
		APIKey: key,
		Model:  os.Getenv("GEMINI_MODEL"),
	})
	return g, g, nil
}
