package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/jal-drishti/streamd/internal/broadcast"
	"github.com/jal-drishti/streamd/internal/envelope"
	"github.com/jal-drishti/streamd/internal/inference"
	"github.com/jal-drishti/streamd/internal/logger"
	"github.com/jal-drishti/streamd/internal/source"
)

// receivePoll bounds how long the worker waits on an empty mailbox before
// re-checking for shutdown.
const receivePoll = 500 * time.Millisecond

// Worker is the sole caller of the inference engine. It drains the
// mailbox one frame at a time, so at most one inference call is ever in
// flight, and publishes the outcome of every call as envelopes on the
// result bus. Failures flip the shared safe-mode machine; the scheduler
// upstream decides which frames are offered while it is engaged.
type Worker struct {
	mailbox      *Mailbox
	engine       inference.Engine
	safe         *safeMode
	results      *broadcast.Bus[envelope.Envelope]
	fastRecovery time.Duration
	fps          func() float64
	log          *logger.Logger

	wg        sync.WaitGroup
	processed uint64
	failed    uint64
	statsMu   sync.Mutex
}

// NewWorker wires a worker to the mailbox, engine and result bus
func NewWorker(mailbox *Mailbox, engine inference.Engine, safe *safeMode, results *broadcast.Bus[envelope.Envelope], fastRecovery time.Duration, fps func() float64, log *logger.Logger) *Worker {
	return &Worker{
		mailbox:      mailbox,
		engine:       engine,
		safe:         safe,
		results:      results,
		fastRecovery: fastRecovery,
		fps:          fps,
		log:          log,
	}
}

// Start launches the drain loop. It returns immediately; call Wait to
// join after cancelling ctx.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()
}

// Wait blocks until the drain loop has exited. An inference call that is
// in flight when ctx is cancelled runs to completion first.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context) {
	w.log.Info("inference worker started")
	for {
		frame, ok := w.mailbox.Receive(ctx, receivePoll)
		if !ok {
			if ctx.Err() != nil {
				w.log.Info("inference worker stopped")
				return
			}
			continue
		}
		// The engine call is never interrupted mid-flight: a frame
		// already claimed from the slot is processed even when shutdown
		// begins while it runs.
		w.process(context.WithoutCancel(ctx), frame)
	}
}

func (w *Worker) process(ctx context.Context, frame source.Frame) {
	seq := frame.Seq
	result, err := w.engine.Infer(ctx, frame)
	if err != nil {
		w.statsMu.Lock()
		w.failed++
		w.statsMu.Unlock()

		if w.safe.Enter(err.Error()) {
			w.log.Warn("inference failed, entering safe mode", "frame", seq, "error", err)
			w.results.Publish(envelope.NewSystem(envelope.StatusSafeMode, "inference degraded, entering safe mode"))
		} else {
			w.log.Debug("inference failed in safe mode", "frame", seq, "error", err)
		}
		return
	}

	w.statsMu.Lock()
	w.processed++
	w.statsMu.Unlock()

	if w.safe.Active() && time.Duration(result.LatencyMs*float64(time.Millisecond)) < w.fastRecovery {
		if w.safe.Exit() {
			w.log.Info("inference recovered, leaving safe mode",
				"frame", seq, "latency_ms", result.LatencyMs)
			w.results.Publish(envelope.NewSystem(envelope.StatusRecovered, "inference recovered"))
		}
	}

	w.results.Publish(envelope.NewData(result, seq, w.fps()))
}

// Stats returns how many inference calls succeeded and failed
func (w *Worker) Stats() (processed, failed uint64) {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	return w.processed, w.failed
}
