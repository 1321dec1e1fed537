package inference

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jal-drishti/streamd/internal/logger"
)

func TestRemoteEngineInfer(t *testing.T) {
	var gotPath string
	var gotImage string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		var req struct {
			Image string `json:"image"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		gotImage = req.Image

		json.NewEncoder(w).Encode(map[string]interface{}{
			"detections": []map[string]interface{}{
				{"bbox": []int{1, 2, 3, 4}, "confidence": 0.9, "label": "anomaly"},
			},
			"max_confidence": 0.9,
			"state":          StateConfirmedThreat,
			"latency_ms":     42.0,
		})
	}))
	defer ts.Close()

	e := NewRemoteEngine(RemoteEngineConfig{ServiceURL: ts.URL}, logger.NewNopLogger())
	result, err := e.Infer(context.Background(), testFrame())
	if err != nil {
		t.Fatalf("infer failed: %v", err)
	}

	if gotPath != "/api/v1/inference" {
		t.Errorf("request path = %s, want /api/v1/inference", gotPath)
	}
	if _, err := base64.StdEncoding.DecodeString(gotImage); err != nil {
		t.Errorf("image payload is not valid base64: %v", err)
	}
	if result.State != StateConfirmedThreat || result.MaxConfidence != 0.9 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.LatencyMs != 42.0 {
		t.Errorf("latency = %.1f, want the service-reported 42.0", result.LatencyMs)
	}
	if len(result.Detections) != 1 || result.Detections[0].BBox != [4]int{1, 2, 3, 4} {
		t.Fatalf("unexpected detections: %+v", result.Detections)
	}
}

func TestRemoteEngineFillsMissingState(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"detections":     []interface{}{},
			"max_confidence": 0.5,
		})
	}))
	defer ts.Close()

	e := NewRemoteEngine(RemoteEngineConfig{ServiceURL: ts.URL}, logger.NewNopLogger())
	result, err := e.Infer(context.Background(), testFrame())
	if err != nil {
		t.Fatalf("infer failed: %v", err)
	}
	if result.State != StatePotentialAnomaly {
		t.Fatalf("state = %s, want derived %s", result.State, StatePotentialAnomaly)
	}
}

func TestRemoteEngineServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model crashed", http.StatusInternalServerError)
	}))
	defer ts.Close()

	e := NewRemoteEngine(RemoteEngineConfig{ServiceURL: ts.URL}, logger.NewNopLogger())
	if _, err := e.Infer(context.Background(), testFrame()); err == nil {
		t.Fatal("expected error for 500 response")
	}
}

func TestRemoteEngineUnreachable(t *testing.T) {
	e := NewRemoteEngine(RemoteEngineConfig{ServiceURL: "http://127.0.0.1:1"}, logger.NewNopLogger())
	if _, err := e.Infer(context.Background(), testFrame()); err == nil {
		t.Fatal("expected error for unreachable service")
	}
}

func TestRemoteEngineHealthCheck(t *testing.T) {
	ready := false
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health/ready" {
			t.Errorf("health path = %s, want /health/ready", r.URL.Path)
		}
		if !ready {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	e := NewRemoteEngine(RemoteEngineConfig{ServiceURL: ts.URL}, logger.NewNopLogger())
	if err := e.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected error while not ready")
	}

	ready = true
	if err := e.HealthCheck(context.Background()); err != nil {
		t.Fatalf("health check failed: %v", err)
	}
}
