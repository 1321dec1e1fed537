package source

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/jal-drishti/streamd/internal/logger"
)

// FileSource decodes frames from a video file (looping forever) or a live
// webcam device through an ffmpeg rawvideo pipe. Frames are scaled to a
// fixed resolution so every Read returns a buffer of the same size.
type FileSource struct {
	logger   *logger.Logger
	input    string
	kind     inputKind
	width    int
	height   int
	cmd      *exec.Cmd
	stdout   io.ReadCloser
	reader   *bufio.Reader
	seq      uint64
	mu       sync.Mutex
	stopped  bool
	started  bool
	stopOnce sync.Once
}

type inputKind int

const (
	inputFile inputKind = iota
	inputWebcam
	inputRTSP
)

// FileSourceConfig contains file/webcam source configuration
type FileSourceConfig struct {
	Path   string // Video file path, or device path for webcams
	Webcam bool   // Treat Path as a v4l2 device
	Width  int
	Height int
}

// NewFileSource creates a new ffmpeg-backed source
func NewFileSource(cfg FileSourceConfig, log *logger.Logger) (*FileSource, error) {
	kind := inputFile
	if cfg.Webcam {
		kind = inputWebcam
	} else {
		if _, err := os.Stat(cfg.Path); err != nil {
			return nil, fmt.Errorf("video file not found: %s", cfg.Path)
		}
	}
	width := cfg.Width
	if width == 0 {
		width = 640
	}
	height := cfg.Height
	if height == 0 {
		height = 480
	}

	return &FileSource{
		logger: log,
		input:  cfg.Path,
		kind:   kind,
		width:  width,
		height: height,
	}, nil
}

// Read returns the next decoded frame. The first call starts the ffmpeg
// process; subsequent calls read fixed-size RGB24 buffers from its stdout.
func (s *FileSource) Read() (Frame, error) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return Frame{}, ErrStopped
	}
	if !s.started {
		if err := s.start(); err != nil {
			s.mu.Unlock()
			return Frame{}, err
		}
		s.started = true
	}
	reader := s.reader
	s.mu.Unlock()

	frameSize := s.width * s.height * 3
	data := make([]byte, frameSize)
	if _, err := io.ReadFull(reader, data); err != nil {
		s.mu.Lock()
		stopped := s.stopped
		s.mu.Unlock()
		if stopped {
			return Frame{}, ErrStopped
		}
		return Frame{}, fmt.Errorf("frame decode failed: %w", err)
	}

	frame := Frame{
		Data:       data,
		Width:      s.width,
		Height:     s.height,
		Seq:        s.seq,
		CapturedAt: time.Now(),
	}
	s.seq++
	return frame, nil
}

// start launches the ffmpeg decode process. Caller holds s.mu.
func (s *FileSource) start() error {
	args := []string{"-hide_banner", "-loglevel", "error"}
	switch s.kind {
	case inputWebcam:
		args = append(args, "-f", "v4l2", "-i", s.input)
	case inputRTSP:
		args = append(args, "-rtsp_transport", "tcp", "-i", s.input)
	default:
		// -stream_loop -1 restarts the file forever; -re paces decode at
		// native frame rate so a file behaves like a live feed.
		args = append(args, "-stream_loop", "-1", "-re", "-i", s.input)
	}
	args = append(args,
		"-vf", fmt.Sprintf("scale=%d:%d", s.width, s.height),
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-",
	)

	cmd := exec.Command("ffmpeg", args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open ffmpeg pipe: %w", err)
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	s.cmd = cmd
	s.stdout = stdout
	s.reader = bufio.NewReaderSize(stdout, s.width*s.height*3)

	s.logger.Info("Video source started",
		"input", s.input,
		"resolution", fmt.Sprintf("%dx%d", s.width, s.height),
	)
	return nil
}

// Stop terminates the decode process and unblocks any pending Read. Idempotent.
func (s *FileSource) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		cmd := s.cmd
		stdout := s.stdout
		s.mu.Unlock()

		if stdout != nil {
			stdout.Close()
		}
		if cmd != nil && cmd.Process != nil {
			_ = cmd.Process.Kill()
			_ = cmd.Wait()
		}
		s.logger.Info("Video source stopped", "input", s.input)
	})
}
