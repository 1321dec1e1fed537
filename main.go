package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/jal-drishti/streamd/internal/broadcast"
	"github.com/jal-drishti/streamd/internal/config"
	"github.com/jal-drishti/streamd/internal/envelope"
	"github.com/jal-drishti/streamd/internal/events"
	"github.com/jal-drishti/streamd/internal/health"
	"github.com/jal-drishti/streamd/internal/inference"
	"github.com/jal-drishti/streamd/internal/logger"
	"github.com/jal-drishti/streamd/internal/scheduler"
	"github.com/jal-drishti/streamd/internal/service"
	"github.com/jal-drishti/streamd/internal/source"
	"github.com/jal-drishti/streamd/internal/telemetry"
	"github.com/jal-drishti/streamd/internal/web"
)

var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.StringVar(&configPath, "c", "", "Path to configuration file (short)")
	flag.Parse()

	// Optional .env for development overrides (VIDEO_SOURCE_PATH, AI_SERVICE_URL)
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(logger.LogConfig{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting streamd",
		"version", version,
		"build_time", buildTime,
		"git_commit", gitCommit,
	)

	// Create main context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Frame source
	src, push, err := buildSource(cfg, log)
	if err != nil {
		log.Error("Failed to create frame source", "error", err)
		os.Exit(1)
	}

	// Inference engine
	engine := buildEngine(cfg, log)

	// Fan-out buses: inference results and raw frames
	results := broadcast.NewBus[envelope.Envelope](64)
	raw := broadcast.NewBus[source.Frame](16)

	// Scheduling core
	pipeline := scheduler.NewPipeline(src, engine, results, raw, scheduler.PipelineConfig{
		TargetFPS:             float64(cfg.Stream.TargetFPS),
		RecoveryInterval:      cfg.Stream.RecoveryInterval,
		FastRecoveryThreshold: cfg.Stream.FastRecoveryThreshold,
	}, log)

	// Configuration service with hot reload; rate changes propagate to
	// the running scheduler.
	configSvc := config.NewService(cfg, configPath, log)
	configSvc.OnChange(func(ctx context.Context, old, updated *config.Config) {
		if old.Stream.TargetFPS != updated.Stream.TargetFPS {
			pipeline.SetTargetFPS(float64(updated.Stream.TargetFPS))
		}
	})

	// Telemetry
	collector := telemetry.NewCollector(pipeline, pipeline.Worker(), results.Dropped, 10*time.Second, log)

	// Event log
	var store *events.Store
	if cfg.Events.Enabled {
		store, err = events.NewStore(cfg.EventsDBPath(), cfg.Events.MaxRows, log)
		if err != nil {
			log.Error("Failed to open event store", "error", err)
			os.Exit(1)
		}
		defer store.Close()
	}

	// Health checks
	checks := health.NewRegistry(log)
	checks.Register(&health.SystemChecker{})
	checks.Register(health.NewPipelineChecker(pipeline))
	if cfg.Events.Enabled {
		checks.Register(health.NewDatabaseChecker(cfg.EventsDBPath()))
	}
	if remote, ok := engine.(*inference.RemoteEngine); ok {
		checks.Register(health.NewAIServiceChecker(remote))
	}

	// Web layer
	hub := web.NewHub(log)
	dispatcher := web.NewDispatcher(hub, results, raw, cfg.AI.JPEGQuality, log)
	server := web.NewServer(configSvc, hub, collector, checks, store, push, log)

	// Register and start services
	svcMgr := service.NewManager(log, 30*time.Second)
	svcMgr.Register(configSvc)
	svcMgr.Register(collector)
	svcMgr.Register(dispatcher)
	if store != nil {
		svcMgr.Register(newRecorderService(store, results, log))
	}
	svcMgr.Register(server)
	svcMgr.Register(pipeline)

	if err := svcMgr.Start(ctx); err != nil {
		log.Error("Failed to start services", "error", err)
		os.Exit(1)
	}

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Info("Received shutdown signal", "signal", sig)

	cancel()
	if err := svcMgr.Stop(); err != nil {
		log.Error("Error during shutdown", "error", err)
		os.Exit(1)
	}

	log.Info("Shutdown complete")
}

// buildSource creates the configured frame source. The push source is
// returned separately so the web upload endpoint can feed it.
func buildSource(cfg *config.Config, log *logger.Logger) (source.Source, *source.PushSource, error) {
	sc := cfg.Stream.Source
	switch sc.Type {
	case "file":
		src, err := source.NewFileSource(source.FileSourceConfig{
			Path:   sc.Path,
			Width:  sc.Width,
			Height: sc.Height,
		}, log)
		return src, nil, err
	case "webcam":
		src, err := source.NewFileSource(source.FileSourceConfig{
			Path:   sc.Device,
			Webcam: true,
			Width:  sc.Width,
			Height: sc.Height,
		}, log)
		return src, nil, err
	case "rtsp":
		src, err := source.NewRTSPSource(sc.RTSPURL, sc.Width, sc.Height, 10*time.Second, log)
		return src, nil, err
	case "push":
		push := source.NewPushSource(source.PushSourceConfig{
			BufferCapacity: cfg.Stream.SourceBufferCapacity,
			ReadTimeout:    cfg.Stream.PushReadTimeout,
		}, log)
		return push, push, nil
	case "synthetic":
		return source.NewSyntheticSource(sc.Width, sc.Height, cfg.Stream.TargetFPS), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown source type: %s", sc.Type)
	}
}

// buildEngine creates the configured inference engine
func buildEngine(cfg *config.Config, log *logger.Logger) inference.Engine {
	if cfg.AI.Mode == "sim" {
		return inference.NewSimEngine(inference.SimEngineConfig{})
	}
	return inference.NewRemoteEngine(inference.RemoteEngineConfig{
		ServiceURL:  cfg.AI.ServiceURL,
		Timeout:     cfg.AI.Timeout,
		JPEGQuality: cfg.AI.JPEGQuality,
	}, log)
}

// recorderService adapts the event recorder to the service manager
type recorderService struct {
	rec    *events.Recorder
	cancel context.CancelFunc
}

func newRecorderService(store *events.Store, results *broadcast.Bus[envelope.Envelope], log *logger.Logger) *recorderService {
	return &recorderService{rec: events.NewRecorder(store, results, log)}
}

func (s *recorderService) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.rec.Start(runCtx)
	return nil
}

func (s *recorderService) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.rec.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event recorder shutdown timed out: %w", ctx.Err())
	}
}

func (s *recorderService) Name() string { return "event-recorder" }
