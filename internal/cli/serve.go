package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"

	"github.com/cognix/cognix/internal/pipeline"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP query API",
		Long: `Start an HTTP server exposing the query pipeline and the artifact
cache.

Routes:
  POST /api/query                  {"question": "..."}
  GET  /api/artifacts              list stored bundles
  GET  /api/artifacts/{fingerprint} fetch one bundle
  GET  /api/schema                 schema summary
  GET  /health                     liveness check`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", ":8080", "listen address")
	return cmd
}

func runServe(opts *ServeOptions) error {
	app, err := openApp(opts.RootOptions)
	if err != nil {
		return err
	}
	defer app.Close()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	h := &apiHandler{app: app}
	h.routes(r)

	srv := &http.Server{
		Addr:              opts.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("serving", "addr", opts.Addr, "schema_version", app.Registry.Version())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return WrapExitError(ExitCommandError, "server failed", err)
	}
	return nil
}

type apiHandler struct {
	app *App
}

func (h *apiHandler) routes(r chi.Router) {
	r.Get("/health", h.health)
	r.Post("/api/query", h.query)
	r.Get("/api/artifacts", h.listArtifacts)
	r.Get("/api/artifacts/{fingerprint}", h.getArtifact)
	r.Get("/api/schema", h.schema)
}

type queryRequest struct {
	Question string `json:"question"`
}

type queryResponse struct {
	Bundle   any  `json:"bundle"`
	CacheHit bool `json:"cache_hit"`
	Degraded bool `json:"degraded,omitempty"`
}

type errorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (h *apiHandler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *apiHandler) query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Question == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Kind: "bad_request", Message: "body must be {\"question\": \"...\"}"})
		return
	}

	res, err := h.app.Pipeline.Run(r.Context(), req.Question)
	if err != nil {
		var failure *pipeline.Failure
		if errors.As(err, &failure) {
			writeJSON(w, statusFor(failure.Kind), errorResponse{Kind: string(failure.Kind), Message: failure.Message()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{Kind: "internal", Message: "request failed"})
		return
	}
	writeJSON(w, http.StatusOK, queryResponse{Bundle: res.Bundle, CacheHit: res.CacheHit, Degraded: res.Degraded})
}

func (h *apiHandler) listArtifacts(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Cache.List(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Kind: "cache", Message: "failed to list artifacts"})
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *apiHandler) getArtifact(w http.ResponseWriter, r *http.Request) {
	fingerprint := chi.URLParam(r, "fingerprint")
	b, err := h.app.Cache.Lookup(r.Context(), fingerprint)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Kind: "cache", Message: "failed to read artifact"})
		return
	}
	if b == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Kind: "not_found", Message: fmt.Sprintf("no artifact with fingerprint %s", fingerprint)})
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *apiHandler) schema(w http.ResponseWriter, r *http.Request) {
	reg := h.app.Registry
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    reg.Name(),
		"table":   reg.Table(),
		"version": reg.Version(),
		"columns": reg.Columns(),
	})
}

// statusFor maps a pipeline failure kind to an HTTP status. Unresolvable
// questions are the caller's to fix; the rest are on us.
func statusFor(kind pipeline.FailureKind) int {
	switch kind {
	case pipeline.KindIntentUnresolvable:
		return http.StatusUnprocessableEntity
	case pipeline.KindExecution, pipeline.KindCache:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write response", "err", err)
	}
}
