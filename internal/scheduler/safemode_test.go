package scheduler

import (
	"testing"
	"time"
)

func TestSafeModeEnterIsIdempotent(t *testing.T) {
	var s safeMode

	if !s.Enter("first failure") {
		t.Fatal("first enter should report the transition")
	}
	if s.Enter("second failure") {
		t.Fatal("enter while already engaged should not report a transition")
	}
	if !s.Active() {
		t.Fatal("safe mode should be active")
	}

	if !s.Exit() {
		t.Fatal("exit should report the transition")
	}
	if s.Exit() {
		t.Fatal("exit while already normal should not report a transition")
	}
	if s.Active() {
		t.Fatal("safe mode should be inactive after exit")
	}
}

func TestSafeModeRefreshesReasonOnRepeatedFailures(t *testing.T) {
	var s safeMode

	s.Enter("first failure")
	if s.Enter("second failure") {
		t.Fatal("enter while already engaged should not report a transition")
	}
	if got := s.Snapshot().Reason; got != "second failure" {
		t.Fatalf("reason = %q, want the latest failure", got)
	}
	if got := s.Snapshot().Episodes; got != 1 {
		t.Fatalf("episodes = %d, want 1 (same episode)", got)
	}
}

func TestSafeModeProbeGating(t *testing.T) {
	var s safeMode

	if s.ShouldProbe(0) {
		t.Fatal("no probes outside safe mode")
	}

	s.Enter("failure")
	if s.ShouldProbe(time.Hour) {
		t.Fatal("probe should be withheld inside the recovery interval")
	}
	if !s.ShouldProbe(0) {
		t.Fatal("probe should be allowed once the interval has elapsed")
	}
}

func TestSafeModeSnapshot(t *testing.T) {
	var s safeMode

	s.Enter("engine unreachable")
	st := s.Snapshot()
	if !st.Active || st.Reason != "engine unreachable" || st.Episodes != 1 {
		t.Fatalf("unexpected snapshot: %+v", st)
	}

	s.Exit()
	s.Enter("again")
	if got := s.Snapshot().Episodes; got != 2 {
		t.Fatalf("episodes = %d, want 2", got)
	}
}
