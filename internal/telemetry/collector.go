// Package telemetry aggregates runtime and pipeline metrics for the
// status API.
package telemetry

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/jal-drishti/streamd/internal/logger"
	"github.com/jal-drishti/streamd/internal/scheduler"
)

// SystemMetrics captures process-level runtime figures
type SystemMetrics struct {
	Goroutines     int    `json:"goroutines"`
	HeapAllocBytes uint64 `json:"heap_alloc_bytes"`
	HeapSysBytes   uint64 `json:"heap_sys_bytes"`
	NumGC          uint32 `json:"num_gc"`
}

// PipelineMetrics captures scheduler and worker figures
type PipelineMetrics struct {
	Scheduler       scheduler.Status `json:"scheduler"`
	InferenceOK     uint64           `json:"inference_ok"`
	InferenceFailed uint64           `json:"inference_failed"`
	BroadcastDrops  uint64           `json:"broadcast_drops"`
}

// Snapshot is one full metrics collection
type Snapshot struct {
	Timestamp     time.Time       `json:"timestamp"`
	UptimeSeconds float64         `json:"uptime_seconds"`
	System        SystemMetrics   `json:"system"`
	Pipeline      PipelineMetrics `json:"pipeline"`
}

// PipelineStats is implemented by the scheduling core
type PipelineStats interface {
	Status() scheduler.Status
}

// WorkerStats is implemented by the inference worker
type WorkerStats interface {
	Stats() (processed, failed uint64)
}

// Collector periodically snapshots system and pipeline metrics
type Collector struct {
	pipeline  PipelineStats
	worker    WorkerStats
	busDrops  func() uint64
	interval  time.Duration
	logger    *logger.Logger
	startedAt time.Time

	mu     sync.RWMutex
	last   Snapshot
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewCollector creates a collector polling every interval
func NewCollector(pipeline PipelineStats, worker WorkerStats, busDrops func() uint64, interval time.Duration, log *logger.Logger) *Collector {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Collector{
		pipeline:  pipeline,
		worker:    worker,
		busDrops:  busDrops,
		interval:  interval,
		logger:    log,
		startedAt: time.Now(),
	}
}

// Start launches the collection loop
func (c *Collector) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.Collect()
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				snap := c.Collect()
				c.logger.Debug("Metrics collected",
					"fps", snap.Pipeline.Scheduler.MeasuredFPS,
					"goroutines", snap.System.Goroutines,
					"safe_mode", snap.Pipeline.Scheduler.SafeMode.Active,
				)
			case <-runCtx.Done():
				return
			}
		}
	}()
	return nil
}

// Stop releases and joins the collection loop, bounded by ctx
func (c *Collector) Stop(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("telemetry shutdown timed out: %w", ctx.Err())
	}
}

// Name implements service.Service
func (c *Collector) Name() string { return "telemetry-collector" }

// Collect gathers a snapshot and stores it as the latest
func (c *Collector) Collect() Snapshot {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	processed, failed := c.worker.Stats()
	snap := Snapshot{
		Timestamp:     time.Now(),
		UptimeSeconds: time.Since(c.startedAt).Seconds(),
		System: SystemMetrics{
			Goroutines:     runtime.NumGoroutine(),
			HeapAllocBytes: mem.HeapAlloc,
			HeapSysBytes:   mem.HeapSys,
			NumGC:          mem.NumGC,
		},
		Pipeline: PipelineMetrics{
			Scheduler:       c.pipeline.Status(),
			InferenceOK:     processed,
			InferenceFailed: failed,
			BroadcastDrops:  c.busDrops(),
		},
	}

	c.mu.Lock()
	c.last = snap
	c.mu.Unlock()
	return snap
}

// Last returns the most recent snapshot
func (c *Collector) Last() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last
}
