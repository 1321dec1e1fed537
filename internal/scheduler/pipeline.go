package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/jal-drishti/streamd/internal/broadcast"
	"github.com/jal-drishti/streamd/internal/envelope"
	"github.com/jal-drishti/streamd/internal/inference"
	"github.com/jal-drishti/streamd/internal/logger"
	"github.com/jal-drishti/streamd/internal/source"
)

// PipelineConfig groups the knobs the pipeline needs
type PipelineConfig struct {
	TargetFPS             float64
	RecoveryInterval      time.Duration
	FastRecoveryThreshold time.Duration
}

// Pipeline owns the scheduler and inference worker as one service. The
// source is stopped first on shutdown so the pacing loop drains out; the
// worker then finishes any in-flight inference before exiting.
type Pipeline struct {
	src       source.Source
	scheduler *Scheduler
	worker    *Worker
	logger    *logger.Logger
	cancel    context.CancelFunc
}

// NewPipeline assembles the scheduling core around src and engine
func NewPipeline(src source.Source, engine inference.Engine, results *broadcast.Bus[envelope.Envelope], raw *broadcast.Bus[source.Frame], cfg PipelineConfig, log *logger.Logger) *Pipeline {
	mailbox := NewMailbox()
	safe := &safeMode{}

	sched := New(src, mailbox, safe, results, raw, cfg.TargetFPS, cfg.RecoveryInterval, log)
	worker := NewWorker(mailbox, engine, safe, results, cfg.FastRecoveryThreshold, sched.FPS, log)

	return &Pipeline{
		src:       src,
		scheduler: sched,
		worker:    worker,
		logger:    log,
	}
}

// Start launches the worker and the pacing loop
func (p *Pipeline) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.worker.Start(runCtx)
	p.scheduler.Start(runCtx)
	return nil
}

// Stop shuts the pipeline down: the source is stopped, the scheduler
// drains, then the worker is released once its in-flight call finishes.
// ctx bounds how long shutdown may take.
func (p *Pipeline) Stop(ctx context.Context) error {
	p.src.Stop()

	done := make(chan struct{})
	go func() {
		p.scheduler.Wait()
		if p.cancel != nil {
			p.cancel()
		}
		p.worker.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("pipeline shutdown timed out: %w", ctx.Err())
	}
}

// Name implements service.Service
func (p *Pipeline) Name() string { return "frame-pipeline" }

// SetTargetFPS forwards a rate change to the scheduler
func (p *Pipeline) SetTargetFPS(fps float64) {
	p.scheduler.SetTargetFPS(fps)
}

// Status exposes scheduler counters for telemetry
func (p *Pipeline) Status() Status {
	return p.scheduler.Status()
}

// Worker returns the inference worker, for telemetry
func (p *Pipeline) Worker() *Worker {
	return p.worker
}

// SafeModeActive reports whether safe mode is currently engaged
func (p *Pipeline) SafeModeActive() bool {
	return p.scheduler.safe.Active()
}
