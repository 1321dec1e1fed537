package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jal-drishti/streamd/internal/config"
	"github.com/jal-drishti/streamd/internal/inference"
	"github.com/jal-drishti/streamd/internal/logger"
	"github.com/jal-drishti/streamd/internal/source"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	fmt.Println("=== Inference Service Test ===")
	fmt.Println("Checks the AI service and runs one inference on a synthetic frame")
	fmt.Println()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.LogConfig{
		Level:  "info",
		Format: "text",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	fmt.Printf("AI Service URL: %s\n", cfg.AI.ServiceURL)
	fmt.Println()

	engine := inference.NewRemoteEngine(inference.RemoteEngineConfig{
		ServiceURL:  cfg.AI.ServiceURL,
		Timeout:     cfg.AI.Timeout,
		JPEGQuality: cfg.AI.JPEGQuality,
	}, log)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fmt.Println("Checking service health...")
	if err := engine.HealthCheck(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Service is ready")

	src := source.NewSyntheticSource(cfg.Stream.Source.Width, cfg.Stream.Source.Height, cfg.Stream.TargetFPS)
	defer src.Stop()

	frame, err := src.Read()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render test frame: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Running inference...")
	result, err := engine.Infer(ctx, frame)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Inference failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Printf("State: %s\n", result.State)
	fmt.Printf("Max confidence: %.2f\n", result.MaxConfidence)
	fmt.Printf("Detections: %d\n", len(result.Detections))
	fmt.Printf("Latency: %.1f ms\n", result.LatencyMs)
}
