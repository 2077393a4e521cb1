package irc

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrNotConnected is returned when a line is queued while the connection
// is down.
var ErrNotConnected = errors.New("irc: not connected")

// Writer paces outbound lines onto one connection. A single goroutine
// drains the queue in order, holding each write to the configured rate so
// the server's flood limits are never tripped. One Writer serves one
// connection attempt and is discarded on disconnect.
type Writer struct {
	lim   *rate.Limiter
	queue chan []byte

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// NewWriter starts the pacing goroutine writing to w. every is the
// sustained interval between lines and burst how many may go out back to
// back; every <= 0 disables pacing.
func NewWriter(ctx context.Context, w io.Writer, every time.Duration, burst int) *Writer {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Inf
	if every > 0 {
		limit = rate.Every(every)
	}
	wr := &Writer{
		lim:   rate.NewLimiter(limit, burst),
		queue: make(chan []byte, 64),
		done:  make(chan struct{}),
	}
	go wr.sendLoop(ctx, w)
	return wr
}

// Enqueue queues one wire-ready line, terminator included. It blocks only
// when the queue is full and fails once the writer has shut down.
func (wr *Writer) Enqueue(line []byte) error {
	select {
	case <-wr.done:
		return ErrNotConnected
	default:
	}
	select {
	case wr.queue <- line:
		return nil
	case <-wr.done:
		return ErrNotConnected
	}
}

// Close stops the pacing goroutine. Queued lines not yet written are
// dropped. Close is idempotent and safe from any goroutine.
func (wr *Writer) Close() {
	wr.mu.Lock()
	defer wr.mu.Unlock()
	if wr.closed {
		return
	}
	wr.closed = true
	close(wr.done)
}

func (wr *Writer) sendLoop(ctx context.Context, w io.Writer) {
	defer wr.Close()
	for {
		select {
		case <-wr.done:
			return
		case <-ctx.Done():
			return
		case line := <-wr.queue:
			if err := wr.lim.Wait(ctx); err != nil {
				return
			}
			if _, err := w.Write(line); err != nil {
				log.Printf("Write error: %v", err)
				return
			}
		}
	}
}
