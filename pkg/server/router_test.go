package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"offer-clv/pkg/dashboard"
	"offer-clv/pkg/models"
)

type envelope struct {
	Status  string          `json:"status"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestRouter(t *testing.T, refresh dashboard.RefreshFunc, dataRoot string) (http.Handler, *dashboard.Dashboard) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	dash := dashboard.New("2021-04-30", refresh, logger)
	return NewRouter(NewHandler(dash, dataRoot, 0, logger)), dash
}

func okRefresh(context.Context) (models.AggregateResult, error) {
	return models.AggregateResult{
		Summary: models.MetricSummary{
			Total:                 3,
			ControlCLV:            -10,
			ExperimentalCLV:       2040,
			ControlRepeaters:      0,
			ExperimentalRepeaters: 2,
		},
		EventsPriced:    3,
		UnmatchedOffers: []string{},
	}, nil
}

func do(t *testing.T, h http.Handler, method, path string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var env envelope
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestHealthz(t *testing.T) {
	h, _ := newTestRouter(t, okRefresh, "")
	rec, env := do(t, h, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", env.Message)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestSummary_NotReadyBeforeLoad(t *testing.T) {
	h, _ := newTestRouter(t, okRefresh, "")
	rec, env := do(t, h, http.MethodGet, "/api/summary")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "NOT_READY", env.Code)
}

func TestDashboard_EmptyState(t *testing.T) {
	h, _ := newTestRouter(t, okRefresh, "")
	rec, env := do(t, h, http.MethodGet, "/api/dashboard")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Equal(t, "empty", body["status"])
	assert.Equal(t, "2021-04-30", body["asOf"])
	assert.NotContains(t, body, "charts")
}

func TestLoadedEndpoints(t *testing.T) {
	h, dash := newTestRouter(t, okRefresh, "")
	require.NoError(t, dash.Refresh(context.Background()))

	rec, env := do(t, h, http.MethodGet, "/api/summary")
	require.Equal(t, http.StatusOK, rec.Code)
	var res models.AggregateResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, 3, res.Summary.Total)
	assert.Equal(t, 2040.0, res.Summary.ExperimentalCLV)

	rec, env = do(t, h, http.MethodGet, "/api/dashboard")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Status string `json:"status"`
		Charts struct {
			Repeaters struct {
				Data []struct {
					Label string  `json:"label"`
					Angle float64 `json:"angle"`
				} `json:"data"`
			} `json:"repeaters"`
			CLV struct {
				Data []struct {
					X string  `json:"x"`
					Y float64 `json:"y"`
				} `json:"data"`
			} `json:"clv"`
		} `json:"charts"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Equal(t, "loaded", body.Status)
	require.Len(t, body.Charts.Repeaters.Data, 2)
	assert.Equal(t, 2.0, body.Charts.Repeaters.Data[1].Angle)
	require.Len(t, body.Charts.CLV.Data, 2)
	assert.Equal(t, "Experiment group", body.Charts.CLV.Data[0].X)
	assert.Equal(t, 2.04, body.Charts.CLV.Data[0].Y)

	rec, _ = do(t, h, http.MethodGet, "/api/charts/clv?format=csv")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Equal(t, "category,value\nExperiment group,2.04\nControl group,-0.01\n", rec.Body.String())

	rec, env = do(t, h, http.MethodGet, "/api/charts/repeaters")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", env.Status)

	rec, env = do(t, h, http.MethodGet, "/api/charts/repeaters?format=xml")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Code)
}

func TestReload_Failure(t *testing.T) {
	h, _ := newTestRouter(t, func(context.Context) (models.AggregateResult, error) {
		return models.AggregateResult{}, errors.New("history: fetch failed")
	}, "")

	rec, env := do(t, h, http.MethodPost, "/api/reload")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "LOAD_FAILED", env.Code)

	rec, env = do(t, h, http.MethodGet, "/api/summary")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "LOAD_FAILED", env.Code)
	assert.Equal(t, "history: fetch failed", env.Message)

	rec, env = do(t, h, http.MethodGet, "/api/dashboard")
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Equal(t, "failed", body["status"])
	assert.Equal(t, "history: fetch failed", body["error"])
}

func TestReload_Success(t *testing.T) {
	h, _ := newTestRouter(t, okRefresh, "")
	rec, env := do(t, h, http.MethodPost, "/api/reload")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Equal(t, "loaded", body["status"])
	assert.Contains(t, body, "charts")
}

func TestReload_ClientAbortDoesNotFailLoad(t *testing.T) {
	var (
		calls   int
		loadErr error
	)
	started := make(chan struct{})
	release := make(chan struct{})
	h, dash := newTestRouter(t, func(ctx context.Context) (models.AggregateResult, error) {
		calls++
		res, _ := okRefresh(ctx)
		if calls == 1 {
			res.Summary.Total = 7
			return res, nil
		}
		close(started)
		<-release
		if loadErr = ctx.Err(); loadErr != nil {
			return models.AggregateResult{}, loadErr
		}
		res.Summary.Total = 8
		return res, nil
	}, "")
	require.NoError(t, dash.Refresh(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodPost, "/api/reload", nil).WithContext(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.ServeHTTP(httptest.NewRecorder(), req)
	}()

	<-started
	cancel()
	close(release)
	<-done

	assert.NoError(t, loadErr)
	snap := dash.Snapshot()
	assert.Equal(t, dashboard.StatusLoaded, snap.Status)
	require.NotNil(t, snap.Result)
	assert.Equal(t, 8, snap.Result.Summary.Total)

	rec, _ := do(t, h, http.MethodGet, "/api/summary")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDataFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "data"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "data", "offer_lookup.csv"), []byte("offer_id,offervalue\n1,10\n"), 0o644))

	h, _ := newTestRouter(t, okRefresh, root)
	rec, _ := do(t, h, http.MethodGet, "/data/offer_lookup.csv")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "offer_id,offervalue\n1,10\n", rec.Body.String())

	rec, _ = do(t, h, http.MethodGet, "/data/nope.csv")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
