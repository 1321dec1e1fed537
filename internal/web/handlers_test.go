package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jal-drishti/streamd/internal/config"
	"github.com/jal-drishti/streamd/internal/events"
	"github.com/jal-drishti/streamd/internal/health"
	"github.com/jal-drishti/streamd/internal/logger"
	"github.com/jal-drishti/streamd/internal/scheduler"
	"github.com/jal-drishti/streamd/internal/telemetry"
)

type fakePipeline struct{ status scheduler.Status }

func (f *fakePipeline) Status() scheduler.Status { return f.status }

type fakeWorker struct{ ok, failed uint64 }

func (f *fakeWorker) Stats() (uint64, uint64) { return f.ok, f.failed }

func newTestServer(t *testing.T) (*Server, *config.Service) {
	t.Helper()

	cfg := config.Default()
	cfg.Web.Enabled = true
	configSvc := config.NewService(cfg, "", logger.NewNopLogger())

	collector := telemetry.NewCollector(
		&fakePipeline{status: scheduler.Status{TargetFPS: 10}},
		&fakeWorker{ok: 5},
		func() uint64 { return 0 },
		time.Minute,
		logger.NewNopLogger(),
	)

	store, err := events.NewStore(filepath.Join(t.TempDir(), "events.db"), 0, logger.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	checks := health.NewRegistry(logger.NewNopLogger())
	checks.Register(&health.SystemChecker{})

	srv := NewServer(configSvc, NewHub(logger.NewNopLogger()), collector, checks, store, nil, logger.NewNopLogger())
	srv.setupRoutes()
	return srv, configSvc
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	srv.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestHandleStatus(t *testing.T) {
	srv, _ := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	srv.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Pipeline telemetry.PipelineMetrics `json:"pipeline"`
		Clients  int                       `json:"clients"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, float64(10), body.Pipeline.Scheduler.TargetFPS)
	assert.Equal(t, uint64(5), body.Pipeline.InferenceOK)
	assert.Equal(t, 0, body.Clients)
}

func TestHandleListEvents(t *testing.T) {
	srv, _ := newTestServer(t)

	event := events.NewEvent(events.TypeSafeModeEntered)
	event.Message = "engine unreachable"
	require.NoError(t, srv.store.SaveEvent(context.Background(), event))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/events?type=safe_mode_entered", nil)
	srv.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Events []*events.Event `json:"events"`
		Count  int             `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, 1, body.Count)
	assert.Equal(t, events.TypeSafeModeEntered, body.Events[0].Type)
}

func TestHandleListEventsInvalidLimit(t *testing.T) {
	srv, _ := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/events?limit=nope", nil)
	srv.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleGetConfig(t *testing.T) {
	srv, _ := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/config", nil)
	srv.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var cfg config.Config
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cfg))
	assert.Equal(t, 10, cfg.Stream.TargetFPS)
}

func TestHandleUpdateConfig(t *testing.T) {
	srv, configSvc := newTestServer(t)

	var notified int
	configSvc.OnChange(func(ctx context.Context, old, updated *config.Config) {
		notified++
	})

	body := bytes.NewBufferString(`{"target_fps": 25}`)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/config", body)
	req.Header.Set("Content-Type", "application/json")
	srv.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 25, configSvc.Get().Stream.TargetFPS)
	assert.Equal(t, 1, notified)
}

func TestHandleUpdateConfigRejectsInvalidFPS(t *testing.T) {
	srv, configSvc := newTestServer(t)

	body := bytes.NewBufferString(`{"target_fps": 120}`)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/config", body)
	req.Header.Set("Content-Type", "application/json")
	srv.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 10, configSvc.Get().Stream.TargetFPS)
}

func TestHandleUpdateConfigEmptyBody(t *testing.T) {
	srv, _ := newTestServer(t)

	body := bytes.NewBufferString(`{}`)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/config", body)
	req.Header.Set("Content-Type", "application/json")
	srv.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleUploadWithoutPushSource(t *testing.T) {
	srv, _ := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ws/upload", nil)
	srv.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
