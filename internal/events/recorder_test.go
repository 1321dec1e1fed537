package events

import (
	"context"
	"testing"
	"time"

	"github.com/jal-drishti/streamd/internal/broadcast"
	"github.com/jal-drishti/streamd/internal/envelope"
	"github.com/jal-drishti/streamd/internal/inference"
	"github.com/jal-drishti/streamd/internal/logger"
)

func waitForCount(t *testing.T, store *Store, eventType string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		count, err := store.CountEvents(context.Background(), eventType)
		if err != nil {
			t.Fatalf("count failed: %v", err)
		}
		if count == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	count, _ := store.CountEvents(context.Background(), eventType)
	t.Fatalf("event count for %q = %d, want %d", eventType, count, want)
}

func TestRecorderDeduplicatesSafeModeEpisode(t *testing.T) {
	store := newTestStore(t, 0)
	results := broadcast.NewBus[envelope.Envelope](16)
	defer results.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := NewRecorder(store, results, logger.NewNopLogger())
	rec.Start(ctx)

	// One episode: the first announcement opens it, repeats are noise.
	results.Publish(envelope.NewSystem(envelope.StatusSafeMode, "inference degraded"))
	results.Publish(envelope.NewSystem(envelope.StatusSafeMode, "still degraded"))
	results.Publish(envelope.NewSystem(envelope.StatusSafeMode, "still degraded"))
	results.Publish(envelope.NewSystem(envelope.StatusRecovered, "inference recovered"))

	waitForCount(t, store, TypeSafeModeEntered, 1)
	waitForCount(t, store, TypeSafeModeExited, 1)

	cancel()
	rec.Wait()
}

func TestRecorderPersistsConfirmedThreatsOnly(t *testing.T) {
	store := newTestStore(t, 0)
	results := broadcast.NewBus[envelope.Envelope](16)
	defer results.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := NewRecorder(store, results, logger.NewNopLogger())
	rec.Start(ctx)

	results.Publish(envelope.NewData(&inference.Result{
		MaxConfidence: 0.2,
		State:         inference.StateSafeMode,
	}, 1, 10))
	results.Publish(envelope.NewData(&inference.Result{
		Detections:    []inference.Detection{{Confidence: 0.9, Label: "anomaly"}},
		MaxConfidence: 0.9,
		State:         inference.StateConfirmedThreat,
	}, 2, 10))

	waitForCount(t, store, TypeDetection, 1)

	events, err := store.ListEvents(context.Background(), TypeDetection, 10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if events[0].FrameID != 2 {
		t.Fatalf("persisted frame = %d, want 2", events[0].FrameID)
	}

	cancel()
	rec.Wait()
}
