package health

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"runtime"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SystemChecker reports process-level runtime health
type SystemChecker struct{}

// Name implements Checker
func (c *SystemChecker) Name() string {
	return "system"
}

// Check implements Checker
func (c *SystemChecker) Check(ctx context.Context) Check {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	check := Check{
		Name:      c.Name(),
		Status:    StatusHealthy,
		Message:   "System OK",
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"goroutines":       runtime.NumGoroutine(),
			"heap_alloc_bytes": mem.HeapAlloc,
		},
	}

	// A goroutine count this high means something is leaking.
	if runtime.NumGoroutine() > 10000 {
		check.Status = StatusDegraded
		check.Message = "Goroutine count unusually high"
	}

	return check
}

// DatabaseChecker verifies the event database is reachable
type DatabaseChecker struct {
	dbPath string
}

// NewDatabaseChecker creates a checker for the database at dbPath
func NewDatabaseChecker(dbPath string) *DatabaseChecker {
	return &DatabaseChecker{dbPath: dbPath}
}

// Name implements Checker
func (c *DatabaseChecker) Name() string {
	return "database"
}

// Check implements Checker
func (c *DatabaseChecker) Check(ctx context.Context) Check {
	check := Check{
		Name:      c.Name(),
		Timestamp: time.Now(),
		Details:   make(map[string]interface{}),
	}

	if c.dbPath == "" {
		check.Status = StatusDegraded
		check.Message = "Database path not configured"
		return check
	}

	if _, err := os.Stat(c.dbPath); os.IsNotExist(err) {
		// First run: the store creates the file on open.
		check.Status = StatusHealthy
		check.Message = "Database file will be created on first use"
		check.Details["file_exists"] = false
		return check
	}

	db, err := sql.Open("sqlite3", c.dbPath)
	if err != nil {
		check.Status = StatusUnhealthy
		check.Message = fmt.Sprintf("Failed to open database: %v", err)
		return check
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		check.Status = StatusUnhealthy
		check.Message = fmt.Sprintf("Database ping failed: %v", err)
		return check
	}

	check.Status = StatusHealthy
	check.Message = "Database connection OK"
	check.Details["file_exists"] = true
	return check
}

// ReadyChecker is implemented by engines that can verify their backing
// service (the remote inference engine's readiness endpoint).
type ReadyChecker interface {
	HealthCheck(ctx context.Context) error
}

// AIServiceChecker verifies the inference service is ready
type AIServiceChecker struct {
	engine ReadyChecker
}

// NewAIServiceChecker creates a checker over engine. A nil engine (the
// simulated one has no backing service) always reports healthy.
func NewAIServiceChecker(engine ReadyChecker) *AIServiceChecker {
	return &AIServiceChecker{engine: engine}
}

// Name implements Checker
func (c *AIServiceChecker) Name() string {
	return "ai_service"
}

// Check implements Checker
func (c *AIServiceChecker) Check(ctx context.Context) Check {
	check := Check{
		Name:      c.Name(),
		Timestamp: time.Now(),
	}

	if c.engine == nil {
		check.Status = StatusHealthy
		check.Message = "No backing service to check"
		return check
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := c.engine.HealthCheck(ctx); err != nil {
		check.Status = StatusUnhealthy
		check.Message = fmt.Sprintf("AI service not ready: %v", err)
		return check
	}

	check.Status = StatusHealthy
	check.Message = "AI service ready"
	return check
}

// PipelineStatus is the subset of scheduler state the checker needs
type PipelineStatus interface {
	SafeModeActive() bool
}

// PipelineChecker reports degraded while the pipeline runs in safe mode
type PipelineChecker struct {
	pipeline PipelineStatus
}

// NewPipelineChecker creates a checker over the scheduling core
func NewPipelineChecker(pipeline PipelineStatus) *PipelineChecker {
	return &PipelineChecker{pipeline: pipeline}
}

// Name implements Checker
func (c *PipelineChecker) Name() string {
	return "pipeline"
}

// Check implements Checker
func (c *PipelineChecker) Check(ctx context.Context) Check {
	check := Check{
		Name:      c.Name(),
		Timestamp: time.Now(),
	}

	if c.pipeline.SafeModeActive() {
		check.Status = StatusDegraded
		check.Message = "Inference degraded, pipeline in safe mode"
		return check
	}

	check.Status = StatusHealthy
	check.Message = "Pipeline OK"
	return check
}
