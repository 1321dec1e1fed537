package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jal-drishti/streamd/internal/logger"
)

type fakeService struct {
	name     string
	startErr error
	stopErr  error
	log      *[]string
}

func (f *fakeService) Start(ctx context.Context) error {
	*f.log = append(*f.log, "start:"+f.name)
	return f.startErr
}

func (f *fakeService) Stop(ctx context.Context) error {
	*f.log = append(*f.log, "stop:"+f.name)
	return f.stopErr
}

func (f *fakeService) Name() string { return f.name }

func TestManagerStartsInOrderStopsInReverse(t *testing.T) {
	var log []string
	m := NewManager(logger.NewNopLogger(), time.Second)
	m.Register(&fakeService{name: "a", log: &log})
	m.Register(&fakeService{name: "b", log: &log})
	m.Register(&fakeService{name: "c", log: &log})

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := m.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	want := []string{"start:a", "start:b", "start:c", "stop:c", "stop:b", "stop:a"}
	if len(log) != len(want) {
		t.Fatalf("got %v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("got %v, want %v", log, want)
		}
	}
}

func TestManagerRollsBackOnStartFailure(t *testing.T) {
	var log []string
	m := NewManager(logger.NewNopLogger(), time.Second)
	m.Register(&fakeService{name: "a", log: &log})
	m.Register(&fakeService{name: "b", startErr: errors.New("boom"), log: &log})
	m.Register(&fakeService{name: "c", log: &log})

	if err := m.Start(context.Background()); err == nil {
		t.Fatal("expected start error")
	}

	want := []string{"start:a", "start:b", "stop:a"}
	if len(log) != len(want) {
		t.Fatalf("got %v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("got %v, want %v", log, want)
		}
	}
}

func TestManagerStopContinuesPastErrors(t *testing.T) {
	var log []string
	m := NewManager(logger.NewNopLogger(), time.Second)
	m.Register(&fakeService{name: "a", log: &log})
	m.Register(&fakeService{name: "b", stopErr: errors.New("boom"), log: &log})

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := m.Stop(); err == nil {
		t.Fatal("expected stop error to surface")
	}

	// Both services were still stopped.
	want := []string{"start:a", "start:b", "stop:b", "stop:a"}
	if len(log) != len(want) {
		t.Fatalf("got %v, want %v", log, want)
	}
}
