package source

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/jal-drishti/streamd/internal/logger"
)

// PushSource is a Source fed by an external transport handler (e.g. the
// phone upload WebSocket endpoint). Inject applies backpressure by rejecting
// frames when the internal buffer is full; Read blocks awaiting input and
// keeps waiting across quiet periods until Stop is called.
type PushSource struct {
	logger      *logger.Logger
	buffer      chan pushItem
	readTimeout time.Duration
	seq         uint64
	connected   atomic.Bool
	stopOnce    sync.Once
	done        chan struct{}

	injected uint64 // atomic
	rejected uint64 // atomic
}

type pushItem struct {
	data   []byte
	width  int
	height int
}

// PushSourceConfig contains push source configuration
type PushSourceConfig struct {
	BufferCapacity int           // Bounded buffer size (default 10)
	ReadTimeout    time.Duration // How long Read waits before logging idleness (default 5s)
}

// NewPushSource creates a new push-fed source
func NewPushSource(cfg PushSourceConfig, log *logger.Logger) *PushSource {
	capacity := cfg.BufferCapacity
	if capacity <= 0 {
		capacity = 10
	}
	timeout := cfg.ReadTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &PushSource{
		logger:      log,
		buffer:      make(chan pushItem, capacity),
		readTimeout: timeout,
		done:        make(chan struct{}),
	}
}

// Inject offers a decoded RGB24 frame to the source. It never blocks:
// the frame is rejected when the buffer is full (the scheduler is behind)
// or the source has been stopped.
func (p *PushSource) Inject(data []byte, width, height int) bool {
	if len(data) == 0 || len(data) != width*height*3 {
		return false
	}

	select {
	case <-p.done:
		return false
	default:
	}

	select {
	case p.buffer <- pushItem{data: data, width: width, height: height}:
		atomic.AddUint64(&p.injected, 1)
		if p.connected.CompareAndSwap(false, true) {
			p.logger.Info("Push source connected, receiving frames")
		}
		return true
	default:
		atomic.AddUint64(&p.rejected, 1)
		return false
	}
}

// Read returns the next injected frame, blocking until one arrives or the
// source is stopped.
func (p *PushSource) Read() (Frame, error) {
	timer := time.NewTimer(p.readTimeout)
	defer timer.Stop()

	for {
		select {
		case <-p.done:
			return Frame{}, ErrStopped
		case item := <-p.buffer:
			frame := Frame{
				Data:       item.data,
				Width:      item.width,
				Height:     item.height,
				Seq:        p.seq,
				CapturedAt: time.Now(),
			}
			p.seq++
			return frame, nil
		case <-timer.C:
			// Quiet period: the uploader may have gone away. Keep waiting,
			// it can reconnect at any time.
			if p.connected.CompareAndSwap(true, false) {
				p.logger.Warn("No frame received within timeout, uploader may have disconnected",
					"timeout", p.readTimeout)
			}
			timer.Reset(p.readTimeout)
		}
	}
}

// Stop unblocks any pending Read. Idempotent.
func (p *PushSource) Stop() {
	p.stopOnce.Do(func() {
		close(p.done)
		p.logger.Info("Push source stopped",
			"injected", atomic.LoadUint64(&p.injected),
			"rejected", atomic.LoadUint64(&p.rejected),
		)
	})
}

// Connected reports whether an uploader has recently delivered frames
func (p *PushSource) Connected() bool {
	return p.connected.Load()
}

// Stats returns injected/rejected frame counters
func (p *PushSource) Stats() (injected, rejected uint64) {
	return atomic.LoadUint64(&p.injected), atomic.LoadUint64(&p.rejected)
}
