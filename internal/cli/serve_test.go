package cli

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognix/cognix/internal/artifact"
	"github.com/cognix/cognix/internal/engine"
	"github.com/cognix/cognix/internal/narrate"
	"github.com/cognix/cognix/internal/pipeline"
	"github.com/cognix/cognix/internal/resolver"
	"github.com/cognix/cognix/internal/store"
	"github.com/cognix/cognix/internal/testutil"
	"github.com/cognix/cognix/internal/viz"
)

func testAPI(t *testing.T, completer resolver.Completer) *chi.Mux {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	_, err = st.Exec(ctx, `CREATE TABLE "superstore" ("sales" REAL, "profit" REAL, "region" TEXT, "category" TEXT, "order_date" TEXT, "customer" TEXT)`)
	require.NoError(t, err)
	_, err = st.Exec(ctx, `INSERT INTO "superstore" VALUES (100, 20, 'West', 'Furniture', '2024-01-05', 'Acme')`)
	require.NoError(t, err)
	_, err = st.Exec(ctx, `INSERT INTO "superstore" VALUES (250, 60, 'East', 'Technology', '2024-02-10', 'Globex')`)
	require.NoError(t, err)

	reg := testutil.RetailSchema(t)
	cache := artifact.NewCache(st)
	app := &App{
		Store:    st,
		Registry: reg,
		Cache:    cache,
		Pipeline: pipeline.New(
			reg,
			resolver.New(completer),
			engine.New(st),
			viz.NewSelector(),
			narrate.New(nil),
			cache,
			pipeline.WithClock(testutil.FixedClock()),
		),
	}

	r := chi.NewRouter()
	(&apiHandler{app: app}).routes(r)
	return r
}

const totalSalesProposal = `{"measure": {"column": "sales", "agg": "sum"}, "dimensions": [], "filters": [], "confidence": 0.99, "reasoning": "single aggregate"}`

func TestHealthEndpoint(t *testing.T) {
	r := testAPI(t, testutil.Script(totalSalesProposal))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "ok"}`, rec.Body.String())
}

func TestQueryEndpoint(t *testing.T) {
	r := testAPI(t, testutil.Script(totalSalesProposal))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(`{"question": "Show total sales"}`))
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Bundle   artifact.Bundle `json:"bundle"`
		CacheHit bool            `json:"cache_hit"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.CacheHit)
	assert.Equal(t, 1, resp.Bundle.Table.RowCount)
	assert.Equal(t, viz.SingleValue, resp.Bundle.Viz.Kind)
	assert.NotEmpty(t, resp.Bundle.Fingerprint)
}

func TestQueryEndpointRejectsEmptyBody(t *testing.T) {
	r := testAPI(t, testutil.Script(totalSalesProposal))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(`{}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueryEndpointUnresolvable(t *testing.T) {
	bad := `{"measure": {"column": "revenue", "agg": "sum"}, "dimensions": [], "filters": []}`
	r := testAPI(t, testutil.Script(bad))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(`{"question": "Total revenue"}`))
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "intent_unresolvable", resp.Kind)
}

func TestArtifactEndpoints(t *testing.T) {
	r := testAPI(t, testutil.Script(totalSalesProposal))

	// Populate the cache through the query endpoint.
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(`{"question": "Show total sales"}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/artifacts", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list []artifact.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/artifacts/"+list[0].Fingerprint, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var b artifact.Bundle
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &b))
	assert.Equal(t, list[0].Fingerprint, b.Fingerprint)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/artifacts/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSchemaEndpoint(t *testing.T) {
	r := testAPI(t, testutil.Script(totalSalesProposal))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/schema", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"superstore"`)
	assert.Contains(t, rec.Body.String(), `"order_date"`)
}
