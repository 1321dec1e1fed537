// Package envelope defines the JSON messages published to result and raw
// frame subscribers.
package envelope

import (
	"encoding/base64"
	"time"

	"github.com/jal-drishti/streamd/internal/inference"
)

// System statuses
const (
	StatusSafeMode  = "safe_mode"
	StatusRecovered = "recovered"
	StatusConnected = "connected"
	StatusError     = "error"
)

// Kind discriminates envelope types on the wire
type Kind string

const (
	KindSystem   Kind = "system"
	KindData     Kind = "data"
	KindRawFrame Kind = "RAW_FRAME"
)

// Envelope is the interface implemented by all published messages
type Envelope interface {
	EnvelopeKind() Kind
}

// System carries a status transition (safe mode entered/exited, connection
// lifecycle). Payload is always null on the wire.
type System struct {
	Type    Kind        `json:"type"`
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Payload interface{} `json:"payload"`
}

// EnvelopeKind implements Envelope
func (System) EnvelopeKind() Kind { return KindSystem }

// NewSystem creates a system envelope
func NewSystem(status, message string) System {
	return System{Type: KindSystem, Status: status, Message: message}
}

// SystemInfo carries scheduler-side metadata attached to data envelopes
type SystemInfo struct {
	FPS       float64 `json:"fps"`
	LatencyMs float64 `json:"latency_ms"`
}

// Data carries one inference result, flattened for consumers
type Data struct {
	Type          Kind                  `json:"type"`
	Detections    []inference.Detection `json:"detections"`
	MaxConfidence float32               `json:"max_confidence"`
	State         string                `json:"state"`
	FrameID       uint64                `json:"frame_id"`
	System        SystemInfo            `json:"system"`
}

// EnvelopeKind implements Envelope
func (Data) EnvelopeKind() Kind { return KindData }

// NewData creates a data envelope from an inference result
func NewData(result *inference.Result, frameID uint64, fps float64) Data {
	detections := result.Detections
	if detections == nil {
		detections = []inference.Detection{}
	}
	return Data{
		Type:          KindData,
		Detections:    detections,
		MaxConfidence: result.MaxConfidence,
		State:         result.State,
		FrameID:       frameID,
		System: SystemInfo{
			FPS:       fps,
			LatencyMs: result.LatencyMs,
		},
	}
}

// RawFrame carries one transport-encoded video frame
type RawFrame struct {
	Type       Kind    `json:"type"`
	FrameID    uint64  `json:"frame_id"`
	Timestamp  float64 `json:"timestamp"`  // Unix seconds
	Image      string  `json:"image"`      // Base64-encoded JPEG
	Resolution [2]int  `json:"resolution"` // [height, width]
}

// EnvelopeKind implements Envelope
func (RawFrame) EnvelopeKind() Kind { return KindRawFrame }

// NewRawFrame creates a raw frame envelope from transport-encoded JPEG bytes
func NewRawFrame(jpegData []byte, frameID uint64, capturedAt time.Time, width, height int) RawFrame {
	return RawFrame{
		Type:       KindRawFrame,
		FrameID:    frameID,
		Timestamp:  float64(capturedAt.UnixNano()) / float64(time.Second),
		Image:      base64.StdEncoding.EncodeToString(jpegData),
		Resolution: [2]int{height, width},
	}
}
