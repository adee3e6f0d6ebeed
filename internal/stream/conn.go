package stream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrConnClosed is returned when queueing on a closed connection.
	ErrConnClosed = errors.New("stream: connection closed")
	// ErrSlowConsumer is returned when the send queue of a connection is full.
	ErrSlowConsumer = errors.New("stream: send queue full")
)

const (
	// DefaultQueueSize is the number of frames a connection buffers before it
	// counts as a slow consumer.
	DefaultQueueSize = 32
	// DefaultWriteTimeout bounds a single frame write on the wire.
	DefaultWriteTimeout = 10 * time.Second
)

// Conn is the handle of one open event stream. Senders only queue frames;
// the goroutine running Serve is the only writer of the underlying
// response, so a stalled client never blocks a sender or Close.
type Conn struct {
	id string

	w       io.Writer
	flusher http.Flusher

	writeTimeout time.Duration
	setDeadline  func(time.Time) error

	mu     sync.Mutex
	closed bool
	send   chan []byte

	done      chan struct{}
	closeOnce sync.Once
}

// ConnOption configures a Conn.
type ConnOption func(*Conn)

// WithQueueSize sets how many frames may wait for the writer.
func WithQueueSize(n int) ConnOption {
	return func(c *Conn) {
		if n > 0 {
			c.send = make(chan []byte, n)
		}
	}
}

// WithWriteDeadline makes Serve call set before every write, typically
// http.ResponseController.SetWriteDeadline, so a blocked write fails after d.
func WithWriteDeadline(set func(time.Time) error, d time.Duration) ConnOption {
	return func(c *Conn) {
		c.setDeadline = set
		if d > 0 {
			c.writeTimeout = d
		}
	}
}

// NewConn wraps a response writer and its flusher.
func NewConn(w io.Writer, flusher http.Flusher, opts ...ConnOption) *Conn {
	c := &Conn{
		id:           uuid.NewString(),
		w:            w,
		flusher:      flusher,
		writeTimeout: DefaultWriteTimeout,
		send:         make(chan []byte, DefaultQueueSize),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ID identifies the connection in logs.
func (c *Conn) ID() string { return c.id }

// Done is closed when the connection is closed.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Close marks the connection closed and stops Serve. It never waits for the
// writer and is safe to call more than once.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.done)
	})
}

// Send queues event as one data frame.
func (c *Conn) Send(event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return c.Enqueue(payload)
}

// Enqueue queues an already encoded JSON payload without blocking.
func (c *Conn) Enqueue(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- payload:
		return nil
	default:
		return ErrSlowConsumer
	}
}

// Serve writes queued frames, and a heartbeat comment every heartbeat, until
// ctx ends, the connection is closed or a write fails. It must run on the
// goroutine that owns the response.
func (c *Conn) Serve(ctx context.Context, heartbeat time.Duration) error {
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.done:
			return nil
		case payload := <-c.send:
			if err := c.write(func(w io.Writer) error { return WriteFrame(w, payload) }); err != nil {
				return err
			}
		case <-ticker.C:
			if err := c.write(func(w io.Writer) error { return WriteComment(w, "ping") }); err != nil {
				return err
			}
		}
	}
}

func (c *Conn) write(fn func(io.Writer) error) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}

	if c.setDeadline != nil {
		// Writers without deadline support keep working, just unbounded.
		if err := c.setDeadline(time.Now().Add(c.writeTimeout)); err != nil && !errors.Is(err, http.ErrNotSupported) {
			return err
		}
	}
	if err := fn(c.w); err != nil {
		return err
	}
	c.flusher.Flush()
	return nil
}
