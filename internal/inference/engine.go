// Package inference defines the boundary to the anomaly detection engine.
// The engine is an opaque, slow, possibly failing call; everything that
// wraps it (serialization, safe-mode, pacing) lives elsewhere.
package inference

import (
	"context"

	"github.com/jal-drishti/streamd/internal/source"
)

// System states derived from detection confidence
const (
	StateSafeMode         = "SAFE_MODE"
	StatePotentialAnomaly = "POTENTIAL_ANOMALY"
	StateConfirmedThreat  = "CONFIRMED_THREAT"
)

// Confidence thresholds for state mapping. Owned by the inference layer,
// never by the scheduler.
const (
	confidenceThreshold     = 0.40
	highConfidenceThreshold = 0.75
)

// Detection is a single detected object
type Detection struct {
	BBox       [4]int  `json:"bbox"` // x1, y1, x2, y2
	Confidence float32 `json:"confidence"`
	Label      string  `json:"label"`
}

// Result is the output of one inference call
type Result struct {
	Detections    []Detection `json:"detections"`
	MaxConfidence float32     `json:"max_confidence"`
	State         string      `json:"state"`
	LatencyMs     float64     `json:"latency_ms"`
}

// Engine performs anomaly detection on a single frame. Infer may block for
// tens to hundreds of milliseconds and may fail; callers must never invoke
// it with more than one call in flight.
type Engine interface {
	Infer(ctx context.Context, frame source.Frame) (*Result, error)
}

// StateFor maps a maximum detection confidence to a system state
func StateFor(maxConfidence float32) string {
	switch {
	case maxConfidence > highConfidenceThreshold:
		return StateConfirmedThreat
	case maxConfidence > confidenceThreshold:
		return StatePotentialAnomaly
	default:
		return StateSafeMode
	}
}
