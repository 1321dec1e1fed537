package inference

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jal-drishti/streamd/internal/logger"
	"github.com/jal-drishti/streamd/internal/source"
)

// RemoteEngine is an HTTP client for the external ML service. Frames are
// JPEG-encoded and sent base64 over JSON; the service owns device selection,
// enhancement and its own latency bounds.
type RemoteEngine struct {
	serviceURL  string
	httpClient  *http.Client
	logger      *logger.Logger
	jpegQuality int
}

// RemoteEngineConfig contains configuration for the remote engine
type RemoteEngineConfig struct {
	ServiceURL  string
	Timeout     time.Duration
	JPEGQuality int
}

type inferRequest struct {
	Image string `json:"image"` // Base64-encoded JPEG
}

type inferResponse struct {
	Detections    []Detection `json:"detections"`
	MaxConfidence float32     `json:"max_confidence"`
	State         string      `json:"state"`
	LatencyMs     float64     `json:"latency_ms"`
}

// NewRemoteEngine creates a new client for the external ML service
func NewRemoteEngine(cfg RemoteEngineConfig, log *logger.Logger) *RemoteEngine {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	quality := cfg.JPEGQuality
	if quality == 0 {
		quality = 85
	}

	return &RemoteEngine{
		serviceURL:  cfg.ServiceURL,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		logger:      log,
		jpegQuality: quality,
	}
}

// Infer sends one frame to the ML service and returns its detections
func (e *RemoteEngine) Infer(ctx context.Context, frame source.Frame) (*Result, error) {
	jpegData, err := source.EncodeJPEG(frame, e.jpegQuality)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}

	req := inferRequest{Image: base64.StdEncoding.EncodeToString(jpegData)}
	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/inference", e.serviceURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	startTime := time.Now()
	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ML service returned status %d: %s", resp.StatusCode, string(body))
	}

	var inferResp inferResponse
	if err := json.Unmarshal(body, &inferResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	result := &Result{
		Detections:    inferResp.Detections,
		MaxConfidence: inferResp.MaxConfidence,
		State:         inferResp.State,
		LatencyMs:     inferResp.LatencyMs,
	}
	if result.State == "" {
		result.State = StateFor(result.MaxConfidence)
	}
	if result.LatencyMs == 0 {
		result.LatencyMs = float64(time.Since(startTime).Milliseconds())
	}

	e.logger.Debug("Inference completed",
		"detections", len(result.Detections),
		"state", result.State,
		"latency_ms", result.LatencyMs,
	)
	return result, nil
}

// HealthCheck checks whether the ML service is ready
func (e *RemoteEngine) HealthCheck(ctx context.Context) error {
	url := fmt.Sprintf("%s/health/ready", e.serviceURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ML service health check failed: status %d", resp.StatusCode)
	}
	return nil
}
