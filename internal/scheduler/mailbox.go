package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/jal-drishti/streamd/internal/source"
)

// Mailbox is the single-slot hand-off between the scheduler and the
// inference worker. Capacity is exactly one: while a frame sits unclaimed
// in the slot every further submission is rejected, never queued and
// never overwritten. This is what keeps the inference stage working on
// at most one pending frame no matter how far it falls behind.
type Mailbox struct {
	slot     chan source.Frame
	accepted atomic.Uint64
	rejected atomic.Uint64
}

// NewMailbox creates an empty single-slot mailbox
func NewMailbox() *Mailbox {
	return &Mailbox{
		slot: make(chan source.Frame, 1),
	}
}

// TrySubmit offers a frame to the slot without blocking. It reports
// whether the frame was accepted; a rejected frame leaves the occupant
// untouched.
func (m *Mailbox) TrySubmit(frame source.Frame) bool {
	select {
	case m.slot <- frame:
		m.accepted.Add(1)
		return true
	default:
		m.rejected.Add(1)
		return false
	}
}

// Receive blocks until a frame is available, the timeout elapses, or ctx
// is done. The timeout bounds how long a consumer goes without observing
// shutdown; callers loop on the false return.
func (m *Mailbox) Receive(ctx context.Context, timeout time.Duration) (source.Frame, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case frame := <-m.slot:
		return frame, true
	case <-timer.C:
		return source.Frame{}, false
	case <-ctx.Done():
		return source.Frame{}, false
	}
}

// Stats returns how many submissions were accepted and rejected
func (m *Mailbox) Stats() (accepted, rejected uint64) {
	return m.accepted.Load(), m.rejected.Load()
}
