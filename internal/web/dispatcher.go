package web

import (
	"context"
	"fmt"
	"sync"

	"github.com/jal-drishti/streamd/internal/broadcast"
	"github.com/jal-drishti/streamd/internal/envelope"
	"github.com/jal-drishti/streamd/internal/logger"
	"github.com/jal-drishti/streamd/internal/source"
)

// Dispatcher drains the result and raw frame buses into the stream hub.
// Raw frames are JPEG-encoded only when at least one client is connected,
// so an idle daemon does no encoding work.
type Dispatcher struct {
	hub         *Hub
	results     *broadcast.Bus[envelope.Envelope]
	raw         *broadcast.Bus[source.Frame]
	jpegQuality int
	logger      *logger.Logger
	wg          sync.WaitGroup
	cancel      context.CancelFunc
}

// NewDispatcher wires the buses to the hub
func NewDispatcher(hub *Hub, results *broadcast.Bus[envelope.Envelope], raw *broadcast.Bus[source.Frame], jpegQuality int, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		hub:         hub,
		results:     results,
		raw:         raw,
		jpegQuality: jpegQuality,
		logger:      log,
	}
}

// Start launches the two drain loops
func (d *Dispatcher) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	resultCh, unsubResults := d.results.Subscribe()
	rawCh, unsubRaw := d.raw.Subscribe()

	d.wg.Add(2)
	go func() {
		defer d.wg.Done()
		defer unsubResults()
		for {
			select {
			case env, ok := <-resultCh:
				if !ok {
					return
				}
				d.hub.Broadcast(env)
			case <-runCtx.Done():
				return
			}
		}
	}()
	go func() {
		defer d.wg.Done()
		defer unsubRaw()
		for {
			select {
			case frame, ok := <-rawCh:
				if !ok {
					return
				}
				d.dispatchRaw(frame)
			case <-runCtx.Done():
				return
			}
		}
	}()
	return nil
}

// Stop joins the drain loops and disconnects all clients. The loops are
// released by the dispatcher's own cancel, so Stop completes within its
// deadline even when the start context is still live.
func (d *Dispatcher) Stop(ctx context.Context) error {
	if d.cancel != nil {
		d.cancel()
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.hub.CloseAll()
		return nil
	case <-ctx.Done():
		return fmt.Errorf("dispatcher shutdown timed out: %w", ctx.Err())
	}
}

// Name implements service.Service
func (d *Dispatcher) Name() string { return "stream-dispatcher" }

func (d *Dispatcher) dispatchRaw(frame source.Frame) {
	if d.hub.ClientCount() == 0 {
		return
	}

	jpeg, err := source.EncodeJPEG(frame, d.jpegQuality)
	if err != nil {
		d.logger.Warn("Failed to encode raw frame", "frame", frame.Seq, "error", err)
		return
	}
	d.hub.Broadcast(envelope.NewRawFrame(jpeg, frame.Seq, frame.CapturedAt, frame.Width, frame.Height))
}
