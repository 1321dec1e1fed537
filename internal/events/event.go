// Package events persists notable pipeline transitions: safe-mode
// episodes and confirmed detections.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/jal-drishti/streamd/internal/inference"
)

// Event types
const (
	TypeSafeModeEntered = "safe_mode_entered"
	TypeSafeModeExited  = "safe_mode_exited"
	TypeDetection       = "detection"
)

// Event is one persisted pipeline occurrence
type Event struct {
	ID            string                `json:"id"`
	Type          string                `json:"type"`
	State         string                `json:"state,omitempty"`
	FrameID       uint64                `json:"frame_id,omitempty"`
	MaxConfidence float32               `json:"max_confidence,omitempty"`
	Message       string                `json:"message,omitempty"`
	Detections    []inference.Detection `json:"detections,omitempty"`
	Timestamp     time.Time             `json:"timestamp"`
}

// NewEvent creates an event with a fresh ID and the current time
func NewEvent(eventType string) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now(),
	}
}

// NewDetectionEvent creates an event for one confirmed inference result
func NewDetectionEvent(result *inference.Result, frameID uint64) *Event {
	e := NewEvent(TypeDetection)
	e.State = result.State
	e.FrameID = frameID
	e.MaxConfidence = result.MaxConfidence
	e.Detections = result.Detections
	return e
}
