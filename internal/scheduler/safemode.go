package scheduler

import (
	"sync"
	"time"
)

// safeMode tracks whether the inference stage is known to be failing and
// gates the periodic recovery probes sent while it is. All transitions
// are serialized by the mutex so enter and exit each fire exactly once
// per episode.
type safeMode struct {
	mu          sync.Mutex
	active      bool
	enteredAt   time.Time
	lastAttempt time.Time
	reason      string
	episodes    uint64
}

// Enter switches to safe mode. It returns true only on the transition
// from normal operation; repeated failures while already in safe mode
// refresh the reason and return false.
func (s *safeMode) Enter(reason string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		s.reason = reason
		return false
	}
	s.active = true
	s.enteredAt = time.Now()
	s.lastAttempt = s.enteredAt
	s.reason = reason
	s.episodes++
	return true
}

// Exit returns to normal operation. It returns true only on the
// transition out of safe mode.
func (s *safeMode) Exit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return false
	}
	s.active = false
	s.reason = ""
	return true
}

// Active reports whether safe mode is currently engaged
func (s *safeMode) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// ShouldProbe reports whether enough time has passed since the last
// recovery attempt to send another probe frame, and records the attempt
// when it has. Returns false outside safe mode.
func (s *safeMode) ShouldProbe(interval time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return false
	}
	if time.Since(s.lastAttempt) < interval {
		return false
	}
	s.lastAttempt = time.Now()
	return true
}

// Snapshot returns the current state for status reporting
func (s *safeMode) Snapshot() SafeModeStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := SafeModeStatus{
		Active:   s.active,
		Reason:   s.reason,
		Episodes: s.episodes,
	}
	if s.active {
		st.DurationMs = time.Since(s.enteredAt).Milliseconds()
	}
	return st
}

// SafeModeStatus is a point-in-time view of the safe-mode machine
type SafeModeStatus struct {
	Active     bool   `json:"active"`
	Reason     string `json:"reason,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
	Episodes   uint64 `json:"episodes"`
}
