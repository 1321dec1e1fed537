package events

import (
	"context"
	"sync"

	"github.com/jal-drishti/streamd/internal/broadcast"
	"github.com/jal-drishti/streamd/internal/envelope"
	"github.com/jal-drishti/streamd/internal/inference"
	"github.com/jal-drishti/streamd/internal/logger"
)

// Recorder subscribes to the result bus and persists safe-mode
// transitions and confirmed-threat detections. It deduplicates the
// per-frame safe-mode announcements the scheduler publishes while
// inference is down, so each episode is stored once.
type Recorder struct {
	store   *Store
	results *broadcast.Bus[envelope.Envelope]
	logger  *logger.Logger

	wg        sync.WaitGroup
	inEpisode bool
}

// NewRecorder creates a recorder writing to store
func NewRecorder(store *Store, results *broadcast.Bus[envelope.Envelope], log *logger.Logger) *Recorder {
	return &Recorder{
		store:   store,
		results: results,
		logger:  log,
	}
}

// Start launches the recording loop. Call Wait after cancelling ctx.
func (r *Recorder) Start(ctx context.Context) {
	ch, unsub := r.results.Subscribe()
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer unsub()
		for {
			select {
			case env, ok := <-ch:
				if !ok {
					return
				}
				r.record(ctx, env)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Wait blocks until the recording loop has exited
func (r *Recorder) Wait() {
	r.wg.Wait()
}

func (r *Recorder) record(ctx context.Context, env envelope.Envelope) {
	var event *Event

	switch msg := env.(type) {
	case envelope.System:
		switch msg.Status {
		case envelope.StatusSafeMode:
			if r.inEpisode {
				return
			}
			r.inEpisode = true
			event = NewEvent(TypeSafeModeEntered)
			event.Message = msg.Message
		case envelope.StatusRecovered:
			if !r.inEpisode {
				return
			}
			r.inEpisode = false
			event = NewEvent(TypeSafeModeExited)
			event.Message = msg.Message
		default:
			return
		}
	case envelope.Data:
		if msg.State != inference.StateConfirmedThreat {
			return
		}
		event = NewDetectionEvent(&inference.Result{
			Detections:    msg.Detections,
			MaxConfidence: msg.MaxConfidence,
			State:         msg.State,
		}, msg.FrameID)
	default:
		return
	}

	if err := r.store.SaveEvent(ctx, event); err != nil {
		r.logger.Error("Failed to save event", "event_type", event.Type, "error", err)
	}
}
