package inference

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/jal-drishti/streamd/internal/source"
)

// ErrSimFailure is returned by SimEngine when scripted to fail.
var ErrSimFailure = errors.New("simulated inference failure")

// SimEngine is a scriptable engine used when no ML service is available and
// as a test double: fixed or jittered latency, an optional failure rate, and
// randomized detections.
type SimEngine struct {
	latency     time.Duration
	jitter      time.Duration
	failureRate float64
	mu          sync.Mutex
	rng         *rand.Rand
	calls       uint64
}

// SimEngineConfig contains simulated engine configuration
type SimEngineConfig struct {
	Latency     time.Duration // Base latency per call (default 50ms)
	Jitter      time.Duration // Uniform jitter added to latency
	FailureRate float64       // Probability in [0,1] of a failed call
	Seed        int64         // RNG seed (0 = time-based)
}

// NewSimEngine creates a simulated inference engine
func NewSimEngine(cfg SimEngineConfig) *SimEngine {
	latency := cfg.Latency
	if latency == 0 {
		latency = 50 * time.Millisecond
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &SimEngine{
		latency:     latency,
		jitter:      cfg.Jitter,
		failureRate: cfg.FailureRate,
		rng:         rand.New(rand.NewSource(seed)),
	}
}

// Infer simulates one detection pass over the frame
func (e *SimEngine) Infer(ctx context.Context, frame source.Frame) (*Result, error) {
	e.mu.Lock()
	delay := e.latency
	if e.jitter > 0 {
		delay += time.Duration(e.rng.Int63n(int64(e.jitter)))
	}
	fail := e.rng.Float64() < e.failureRate
	confidence := float32(e.rng.Float64())
	e.calls++
	e.mu.Unlock()

	start := time.Now()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(delay):
	}

	if fail {
		return nil, ErrSimFailure
	}

	var detections []Detection
	if confidence > confidenceThreshold {
		detections = append(detections, Detection{
			BBox:       [4]int{frame.Width / 4, frame.Height / 4, 3 * frame.Width / 4, 3 * frame.Height / 4},
			Confidence: confidence,
			Label:      "anomaly",
		})
	}

	return &Result{
		Detections:    detections,
		MaxConfidence: confidence,
		State:         StateFor(confidence),
		LatencyMs:     float64(time.Since(start).Milliseconds()),
	}, nil
}

// Calls returns how many inference calls have been made
func (e *SimEngine) Calls() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}
