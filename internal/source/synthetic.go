package source

import (
	"sync"
	"time"
)

// SyntheticSource generates moving test-pattern frames at a fixed rate.
// It stands in for a real decoder in development environments without
// ffmpeg and in tests that need deterministic frame content.
type SyntheticSource struct {
	width    int
	height   int
	interval time.Duration
	seq      uint64
	done     chan struct{}
	stopOnce sync.Once
}

// NewSyntheticSource creates a test-pattern source producing frames at fps
func NewSyntheticSource(width, height, fps int) *SyntheticSource {
	if width <= 0 {
		width = 320
	}
	if height <= 0 {
		height = 240
	}
	if fps <= 0 {
		fps = 30
	}

	return &SyntheticSource{
		width:    width,
		height:   height,
		interval: time.Second / time.Duration(fps),
		done:     make(chan struct{}),
	}
}

// Read returns the next generated frame, paced at the configured rate
func (s *SyntheticSource) Read() (Frame, error) {
	select {
	case <-s.done:
		return Frame{}, ErrStopped
	case <-time.After(s.interval):
	}

	frame := Frame{
		Data:       s.render(s.seq),
		Width:      s.width,
		Height:     s.height,
		Seq:        s.seq,
		CapturedAt: time.Now(),
	}
	s.seq++
	return frame, nil
}

// Stop unblocks any pending Read. Idempotent.
func (s *SyntheticSource) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
}

// render draws a vertical color-bar pattern shifted by the sequence number
// so consecutive frames visibly differ.
func (s *SyntheticSource) render(seq uint64) []byte {
	bars := [][3]byte{
		{235, 235, 235},
		{235, 235, 16},
		{16, 235, 235},
		{16, 235, 16},
		{235, 16, 235},
		{235, 16, 16},
		{16, 16, 235},
		{16, 16, 16},
	}

	data := make([]byte, s.width*s.height*3)
	shift := int(seq) % s.width
	barWidth := s.width / len(bars)
	if barWidth == 0 {
		barWidth = 1
	}

	for y := 0; y < s.height; y++ {
		row := y * s.width * 3
		for x := 0; x < s.width; x++ {
			bar := ((x + shift) / barWidth) % len(bars)
			off := row + x*3
			data[off] = bars[bar][0]
			data[off+1] = bars[bar][1]
			data[off+2] = bars[bar][2]
		}
	}
	return data
}
