package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jal-drishti/streamd/internal/config"
	"github.com/jal-drishti/streamd/internal/logger"
	"github.com/jal-drishti/streamd/internal/source"
)

func main() {
	var configPath string
	var frames int
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.IntVar(&frames, "frames", 30, "Number of frames to read")
	flag.Parse()

	fmt.Println("=== Frame Source Test ===")
	fmt.Println("Reads frames from the configured source and reports timing")
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

	fmt.Printf("Source type: %s\n", cfg.Stream.Source.Type)
	fmt.Printf("Resolution: %dx%d\n", cfg.Stream.Source.Width, cfg.Stream.Source.Height)
	fmt.Println()

	var src source.Source
	switch cfg.Stream.Source.Type {
	case "webcam":
		src, err = source.NewFileSource(source.FileSourceConfig{
			Path:   cfg.Stream.Source.Device,
			Webcam: true,
			Width:  cfg.Stream.Source.Width,
			Height: cfg.Stream.Source.Height,
		}, log)
	case "rtsp":
		src, err = source.NewRTSPSource(cfg.Stream.Source.RTSPURL,
			cfg.Stream.Source.Width, cfg.Stream.Source.Height, 10*time.Second, log)
	case "synthetic":
		src = source.NewSyntheticSource(cfg.Stream.Source.Width, cfg.Stream.Source.Height, cfg.Stream.TargetFPS)
	default:
		src, err = source.NewFileSource(source.FileSourceConfig{
			Path:   cfg.Stream.Source.Path,
			Width:  cfg.Stream.Source.Width,
			Height: cfg.Stream.Source.Height,
		}, log)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create source: %v\n", err)
		os.Exit(1)
	}
	defer src.Stop()

	start := time.Now()
	for i := 0; i < frames; i++ {
		frame, err := src.Read()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Read failed at frame %d: %v\n", i, err)
			os.Exit(1)
		}
		if i == 0 {
			fmt.Printf("First frame: seq=%d %dx%d (%d bytes)\n",
				frame.Seq, frame.Width, frame.Height, len(frame.Data))
		}
	}
	elapsed := time.Since(start)

	fmt.Println()
	fmt.Printf("Read %d frames in %v (%.1f fps)\n", frames, elapsed.Round(time.Millisecond),
		float64(frames)/elapsed.Seconds())
}
