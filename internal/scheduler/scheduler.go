// Package scheduler contains the frame pacing loop, the single-slot
// mailbox in front of the inference worker, and the safe-mode machine
// that governs behavior while inference is failing.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jal-drishti/streamd/internal/broadcast"
	"github.com/jal-drishti/streamd/internal/envelope"
	"github.com/jal-drishti/streamd/internal/logger"
	"github.com/jal-drishti/streamd/internal/source"
)

// Scheduler paces frames from a source at the target rate. Every frame is
// broadcast raw regardless of pacing; frames arriving faster than the
// target interval are dropped from the inference path only. Submission to
// the worker is opportunistic through the mailbox and is throttled to one
// probe per recovery interval while safe mode is engaged.
type Scheduler struct {
	src              source.Source
	mailbox          *Mailbox
	safe             *safeMode
	results          *broadcast.Bus[envelope.Envelope]
	raw              *broadcast.Bus[source.Frame]
	recoveryInterval time.Duration
	log              *logger.Logger

	intervalNs atomic.Int64
	rebase     atomic.Bool
	wg         sync.WaitGroup

	emitted   atomic.Uint64
	droppedML atomic.Uint64
	probes    atomic.Uint64

	fpsMu       sync.Mutex
	windowStart time.Time
	windowCount int
	currentFPS  float64
}

// New creates a scheduler pacing src at targetFPS
func New(src source.Source, mailbox *Mailbox, safe *safeMode, results *broadcast.Bus[envelope.Envelope], raw *broadcast.Bus[source.Frame], targetFPS float64, recoveryInterval time.Duration, log *logger.Logger) *Scheduler {
	s := &Scheduler{
		src:              src,
		mailbox:          mailbox,
		safe:             safe,
		results:          results,
		raw:              raw,
		recoveryInterval: recoveryInterval,
		log:              log,
	}
	s.setInterval(targetFPS)
	return s
}

func (s *Scheduler) setInterval(fps float64) {
	if fps <= 0 {
		fps = 10
	}
	s.intervalNs.Store(int64(float64(time.Second) / fps))
}

// SetTargetFPS changes the pacing rate. The pacing baseline is rebased on
// the next frame so the accumulated schedule of the old rate does not
// register as drift under the new one.
func (s *Scheduler) SetTargetFPS(fps float64) {
	s.setInterval(fps)
	s.rebase.Store(true)
	s.log.Info("target fps updated", "fps", fps)
}

// TargetFPS returns the current pacing rate
func (s *Scheduler) TargetFPS() float64 {
	return float64(time.Second) / float64(s.intervalNs.Load())
}

// Start launches the pacing loop. Call Wait after cancelling ctx or
// stopping the source to join it.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Wait blocks until the pacing loop has exited
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	s.log.Info("frame scheduler started", "target_fps", s.TargetFPS())

	var start time.Time
	var id uint64
	started := false

	for {
		frame, err := s.src.Read()
		if err != nil {
			if errors.Is(err, source.ErrStopped) || ctx.Err() != nil {
				s.log.Info("frame scheduler stopped")
				return
			}
			// A read error that is not a clean stop is fatal: the
			// source owns its own retry semantics, the loop does not.
			s.log.Error("source read failed, stopping scheduler", "error", err)
			return
		}
		if ctx.Err() != nil {
			s.log.Info("frame scheduler stopped")
			return
		}

		// A new stream (seq 0) or a rate change restarts the pacing
		// clock from this frame.
		if frame.Seq == 0 || !started || s.rebase.Swap(false) {
			start = time.Now()
			id = 0
			started = true
		}

		interval := time.Duration(s.intervalNs.Load())
		drift := time.Since(start) - time.Duration(id)*interval

		// Raw delivery is unconditional; pacing only governs what the
		// inference stage sees. The mailbox gets its own copy so the
		// raw path and the inference path never share a pixel buffer.
		s.raw.Publish(frame)
		s.emitted.Add(1)
		s.tickFPS()

		switch {
		case drift > interval:
			s.droppedML.Add(1)
		case s.safe.Active():
			if s.safe.ShouldProbe(s.recoveryInterval) {
				s.probes.Add(1)
				s.mailbox.TrySubmit(frame.Clone())
			} else {
				s.results.Publish(envelope.NewSystem(envelope.StatusSafeMode, "inference unavailable, running in safe mode"))
			}
		default:
			s.mailbox.TrySubmit(frame.Clone())
		}

		id++
		if wait := time.Until(start.Add(time.Duration(id) * interval)); wait > 0 {
			if !sleepCtx(ctx, wait) {
				s.log.Info("frame scheduler stopped")
				return
			}
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Scheduler) tickFPS() {
	s.fpsMu.Lock()
	defer s.fpsMu.Unlock()

	now := time.Now()
	if s.windowStart.IsZero() {
		s.windowStart = now
	}
	if elapsed := now.Sub(s.windowStart); elapsed >= time.Second {
		s.currentFPS = float64(s.windowCount) / elapsed.Seconds()
		s.windowCount = 0
		s.windowStart = now
	}
	s.windowCount++
}

// FPS returns the measured delivery rate over the last completed window
func (s *Scheduler) FPS() float64 {
	s.fpsMu.Lock()
	defer s.fpsMu.Unlock()
	return s.currentFPS
}

// Status is a point-in-time view of the scheduler for status reporting
type Status struct {
	TargetFPS       float64        `json:"target_fps"`
	MeasuredFPS     float64        `json:"measured_fps"`
	FramesEmitted   uint64         `json:"frames_emitted"`
	FramesDroppedML uint64         `json:"frames_dropped_ml"`
	MailboxAccepted uint64         `json:"mailbox_accepted"`
	MailboxRejected uint64         `json:"mailbox_rejected"`
	RecoveryProbes  uint64         `json:"recovery_probes"`
	SafeMode        SafeModeStatus `json:"safe_mode"`
}

// Status returns current counters and safe-mode state
func (s *Scheduler) Status() Status {
	accepted, rejected := s.mailbox.Stats()
	return Status{
		TargetFPS:       s.TargetFPS(),
		MeasuredFPS:     s.FPS(),
		FramesEmitted:   s.emitted.Load(),
		FramesDroppedML: s.droppedML.Load(),
		MailboxAccepted: accepted,
		MailboxRejected: rejected,
		RecoveryProbes:  s.probes.Load(),
		SafeMode:        s.safe.Snapshot(),
	}
}
