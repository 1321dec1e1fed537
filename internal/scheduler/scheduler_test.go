package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jal-drishti/streamd/internal/broadcast"
	"github.com/jal-drishti/streamd/internal/envelope"
	"github.com/jal-drishti/streamd/internal/logger"
	"github.com/jal-drishti/streamd/internal/source"
)

type stubSource struct {
	frames chan source.Frame
}

func (s *stubSource) Read() (source.Frame, error) {
	frame, ok := <-s.frames
	if !ok {
		return source.Frame{}, source.ErrStopped
	}
	return frame, nil
}

func (s *stubSource) Stop() {}

func newTestScheduler(src source.Source, safe *safeMode, targetFPS float64, recovery time.Duration) (*Scheduler, *broadcast.Bus[envelope.Envelope], *broadcast.Bus[source.Frame]) {
	mailbox := NewMailbox()
	results := broadcast.NewBus[envelope.Envelope](64)
	raw := broadcast.NewBus[source.Frame](64)
	s := New(src, mailbox, safe, results, raw, targetFPS, recovery, logger.NewNopLogger())
	return s, results, raw
}

func TestSchedulerBroadcastsEveryFrame(t *testing.T) {
	src := &stubSource{frames: make(chan source.Frame, 8)}
	for i := 0; i < 5; i++ {
		src.frames <- source.Frame{Seq: uint64(i)}
	}
	close(src.frames)

	var safe safeMode
	s, results, raw := newTestScheduler(src, &safe, 50, time.Hour)
	defer results.Close()
	defer raw.Close()
	rawCh, unsub := raw.Subscribe()
	defer unsub()

	s.Start(context.Background())
	s.Wait()

	for want := 0; want < 5; want++ {
		select {
		case frame := <-rawCh:
			if frame.Seq != uint64(want) {
				t.Fatalf("raw frame %d out of order, got seq %d", want, frame.Seq)
			}
		case <-time.After(time.Second):
			t.Fatalf("raw broadcast missing frame %d", want)
		}
	}

	st := s.Status()
	if st.FramesEmitted != 5 {
		t.Fatalf("frames emitted = %d, want 5", st.FramesEmitted)
	}
	// No consumer drains the mailbox, so exactly one in-schedule frame
	// occupies the slot and later eligible frames are rejected.
	if st.MailboxAccepted != 1 {
		t.Fatalf("mailbox accepted = %d, want 1", st.MailboxAccepted)
	}
}

func TestSchedulerDropsLateFramesFromInference(t *testing.T) {
	src := &stubSource{frames: make(chan source.Frame)}
	var safe safeMode
	s, results, raw := newTestScheduler(src, &safe, 20, time.Hour) // 50ms interval
	defer results.Close()
	defer raw.Close()

	s.Start(context.Background())

	src.frames <- source.Frame{Seq: 0}
	// Arrive well past the slot for frame 1: drift exceeds one interval,
	// so the frame is dropped from the inference path only.
	time.Sleep(250 * time.Millisecond)
	src.frames <- source.Frame{Seq: 1}
	close(src.frames)
	s.Wait()

	st := s.Status()
	if st.FramesEmitted != 2 {
		t.Fatalf("frames emitted = %d, want 2 (raw delivery is unconditional)", st.FramesEmitted)
	}
	if st.FramesDroppedML == 0 {
		t.Fatal("late frame should have been dropped from the inference path")
	}
}

func TestSchedulerSafeModeWithholdsSubmissions(t *testing.T) {
	src := &stubSource{frames: make(chan source.Frame, 8)}
	for i := 0; i < 3; i++ {
		src.frames <- source.Frame{Seq: uint64(i)}
	}
	close(src.frames)

	var safe safeMode
	safe.Enter("seeded")
	s, results, raw := newTestScheduler(src, &safe, 50, time.Hour)
	defer results.Close()
	defer raw.Close()
	resCh, unsub := results.Subscribe()
	defer unsub()

	s.Start(context.Background())
	s.Wait()

	st := s.Status()
	if st.RecoveryProbes != 0 || st.MailboxAccepted != 0 {
		t.Fatalf("no submissions expected inside the recovery interval, got probes=%d accepted=%d",
			st.RecoveryProbes, st.MailboxAccepted)
	}

	// Every withheld frame announces safe mode to subscribers.
	select {
	case env := <-resCh:
		sys, ok := env.(envelope.System)
		if !ok || sys.Status != envelope.StatusSafeMode {
			t.Fatalf("expected safe_mode envelope, got %+v", env)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a safe_mode envelope for withheld frames")
	}
}

func TestSchedulerProbesOncePerRecoveryInterval(t *testing.T) {
	src := &stubSource{frames: make(chan source.Frame, 8)}
	for i := 0; i < 4; i++ {
		src.frames <- source.Frame{Seq: uint64(i)}
	}
	close(src.frames)

	var safe safeMode
	safe.Enter("seeded")
	// Zero interval: every eligible frame qualifies as a probe.
	s, results, raw := newTestScheduler(src, &safe, 50, 0)
	defer results.Close()
	defer raw.Close()

	s.Start(context.Background())
	s.Wait()

	st := s.Status()
	if st.RecoveryProbes == 0 {
		t.Fatal("expected recovery probes once the interval elapsed")
	}
	if st.MailboxAccepted != 1 {
		t.Fatalf("mailbox accepted = %d, want 1 (slot never drained)", st.MailboxAccepted)
	}
}

type failingSource struct {
	reads atomic.Uint64
}

func (s *failingSource) Read() (source.Frame, error) {
	s.reads.Add(1)
	return source.Frame{}, errors.New("decoder exited")
}

func (s *failingSource) Stop() {}

func TestSchedulerExitsOnSourceReadError(t *testing.T) {
	src := &failingSource{}
	var safe safeMode
	s, results, raw := newTestScheduler(src, &safe, 20, time.Hour)
	defer results.Close()
	defer raw.Close()

	s.Start(context.Background())

	done := make(chan struct{})
	go func() {
		s.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler kept running after a fatal source read error")
	}

	if got := src.reads.Load(); got != 1 {
		t.Fatalf("source read %d times, want 1 (read errors are not retried)", got)
	}
}

func TestSchedulerClonesFrameForInference(t *testing.T) {
	src := &stubSource{frames: make(chan source.Frame, 1)}
	orig := source.Frame{Seq: 0, Data: []byte{1, 2, 3}, Width: 1, Height: 1}
	src.frames <- orig
	close(src.frames)

	var safe safeMode
	s, results, raw := newTestScheduler(src, &safe, 50, time.Hour)
	defer results.Close()
	defer raw.Close()

	s.Start(context.Background())
	s.Wait()

	got, ok := s.mailbox.Receive(context.Background(), time.Second)
	if !ok {
		t.Fatal("expected the frame in the mailbox")
	}
	if &got.Data[0] == &orig.Data[0] {
		t.Fatal("inference frame shares the raw frame's pixel buffer")
	}
	got.Data[0] = 9
	if orig.Data[0] != 1 {
		t.Fatal("mutating the inference copy leaked into the raw frame")
	}
}

func TestSchedulerStopsWithContext(t *testing.T) {
	src := &stubSource{frames: make(chan source.Frame, 1)}
	var safe safeMode
	s, results, raw := newTestScheduler(src, &safe, 10, time.Hour)
	defer results.Close()
	defer raw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	src.frames <- source.Frame{Seq: 0}
	cancel()
	close(src.frames)

	done := make(chan struct{})
	go func() {
		s.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancellation")
	}
}
