// Package source provides frame sources for the scheduler: looping file
// decode, live webcam, RTSP streams and push-fed uploads all satisfy the
// same Source contract.
package source

import (
	"errors"
	"time"
)

// ErrStopped is returned by Read after Stop has been called.
var ErrStopped = errors.New("source stopped")

// Frame is an owned RGB24 pixel buffer with its position in the stream.
// Seq starts at 0 and increases by exactly 1 per frame read from a source.
type Frame struct {
	Data       []byte // Raw RGB24 pixels, len = Width*Height*3
	Width      int
	Height     int
	Seq        uint64
	CapturedAt time.Time
}

// Clone returns a deep copy of the frame
func (f Frame) Clone() Frame {
	data := make([]byte, len(f.Data))
	copy(data, f.Data)
	c := f
	c.Data = data
	return c
}

// Source yields successive frames for one stream session.
//
// Read blocks until a frame is available and returns ErrStopped once the
// source has been stopped. Looping sources never return an end-of-stream
// error on their own; push sources keep waiting while connected.
type Source interface {
	// Read returns the next frame in sequence order.
	Read() (Frame, error)

	// Stop terminates any blocked Read promptly. Idempotent.
	Stop()
}
