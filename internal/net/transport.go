package net

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"InkBoard/internal/message"
)

const (
	// QueueSize is how many encoded frames may wait for the writer.
	QueueSize = 256
	// MaxFrameSize bounds a single frame in either direction. A peer sending a
	// larger one is disconnected.
	MaxFrameSize = 1 << 20
	writeTimeout = 10 * time.Second
	bufSize      = 1024
)

var (
	ErrClosed        = errors.New("connection closed")
	ErrQueueFull     = errors.New("send queue full")
	ErrFrameTooLarge = errors.New("frame too large")
)

// IsRecoverable reports whether err concerns a single frame only, leaving the
// connection usable.
func IsRecoverable(err error) bool {
	var de *message.DecodeError
	return errors.As(err, &de)
}

type outbound struct {
	data   []byte
	result chan error
}

// Conn carries one encoded Message per binary WebSocket frame. All writes go
// through a single writer goroutine fed by a FIFO queue, so frames leave in
// the order they were queued and never interleave.
type Conn struct {
	ws    *websocket.Conn
	queue chan outbound
	done  chan struct{}

	closeOnce sync.Once
	mu        sync.Mutex
	writeErr  error
	closed    bool

	log *slog.Logger
}

// NewConn takes ownership of ws and starts its writer.
func NewConn(ws *websocket.Conn) *Conn {
	ws.SetReadLimit(MaxFrameSize)
	c := &Conn{
		ws:    ws,
		queue: make(chan outbound, QueueSize),
		done:  make(chan struct{}),
		log:   slog.With("component", "conn", "remote", ws.RemoteAddr().String()),
	}
	go c.writer()
	return c
}

// Dial connects to a hub at url.
func Dial(ctx context.Context, url string) (*Conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}
	return NewConn(ws), nil
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  bufSize,
	WriteBufferSize: bufSize,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Upgrade accepts a WebSocket connection on an HTTP request.
func Upgrade(w http.ResponseWriter, r *http.Request) (*Conn, error) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade: %w", err)
	}
	return NewConn(ws), nil
}

func (c *Conn) RemoteAddr() string {
	return c.ws.RemoteAddr().String()
}

func (c *Conn) writer() {
	var failed error
	for {
		select {
		case out := <-c.queue:
			if failed != nil {
				out.result <- c.sendErr()
				continue
			}
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteMessage(websocket.BinaryMessage, out.data); err != nil {
				failed = fmt.Errorf("failed to write frame: %w", err)
				c.mu.Lock()
				c.writeErr = failed
				c.mu.Unlock()
				c.log.Error("write failed", "err", failed)
				out.result <- failed
				continue
			}
			out.result <- nil
		case <-c.done:
			c.drain()
			return
		}
	}
}

// drain answers every queued send after the writer has stopped.
func (c *Conn) drain() {
	err := c.sendErr()
	for {
		select {
		case out := <-c.queue:
			out.result <- err
		default:
			return
		}
	}
}

func (c *Conn) sendErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return fmt.Errorf("%w: %w", ErrClosed, c.writeErr)
	}
	return ErrClosed
}

func encode(m message.Message) (outbound, error) {
	data, err := message.Marshal(m)
	if err != nil {
		return outbound{}, fmt.Errorf("failed to encode message: %w", err)
	}
	if len(data) > MaxFrameSize {
		return outbound{}, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(data))
	}
	return outbound{data: data, result: make(chan error, 1)}, nil
}

// push queues out. With block false it fails fast when the queue is full.
func (c *Conn) push(ctx context.Context, out outbound, block bool) error {
	if c.isClosed() {
		return c.sendErr()
	}
	if block {
		select {
		case c.queue <- out:
		case <-c.done:
			return c.sendErr()
		case <-ctx.Done():
			return ctx.Err()
		}
	} else {
		select {
		case c.queue <- out:
		default:
			return ErrQueueFull
		}
	}
	// Close may have raced the enqueue after the writer drained.
	if c.isClosed() {
		c.drain()
	}
	return nil
}

// Enqueue queues m behind every frame queued before it and returns a channel
// that yields the outcome of the write. It blocks only while the queue is full.
func (c *Conn) Enqueue(m message.Message) <-chan error {
	out, err := encode(m)
	if err != nil {
		return resolved(err)
	}
	if err := c.push(context.Background(), out, true); err != nil {
		return resolved(err)
	}
	return out.result
}

// TrySend queues m without blocking, failing with ErrQueueFull if the writer
// is behind.
func (c *Conn) TrySend(m message.Message) error {
	out, err := encode(m)
	if err != nil {
		return err
	}
	return c.push(context.Background(), out, false)
}

// Send writes m and waits until it is flushed. A failure concerns this send
// only; reading continues independently.
func (c *Conn) Send(ctx context.Context, m message.Message) error {
	out, err := encode(m)
	if err != nil {
		return err
	}
	if err := c.push(ctx, out, true); err != nil {
		return err
	}
	select {
	case err := <-out.result:
		return err
	case <-ctx.Done():
		// The frame may still be written.
		return ctx.Err()
	}
}

// Receive returns the next message. A *message.DecodeError means only that
// frame was bad. io.EOF means the peer or Close ended the connection; any
// other error means the connection is unusable. Non-binary frames are skipped.
func (c *Conn) Receive() (message.Message, error) {
	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			if c.isClosed() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("failed to read frame: %w", err)
		}
		if mt != websocket.BinaryMessage {
			continue
		}
		return message.Unmarshal(data)
	}
}

// ReadLoop receives messages in arrival order and hands them to handle until
// the connection ends. Bad frames go to onFrameError and the loop continues.
// Cancelling ctx closes the connection. End of stream returns nil.
func (c *Conn) ReadLoop(ctx context.Context, handle func(message.Message), onFrameError func(error)) error {
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()
	for {
		m, err := c.Receive()
		switch {
		case err == nil:
			handle(m)
		case errors.Is(err, io.EOF):
			return nil
		case IsRecoverable(err):
			if onFrameError != nil {
				onFrameError(err)
			}
		default:
			return err
		}
	}
}

func (c *Conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close stops the writer, fails pending sends with ErrClosed and closes the
// socket. Calling it more than once is harmless.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.done)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = c.ws.Close()
	})
	return err
}

func resolved(err error) <-chan error {
	ch := make(chan error, 1)
	ch <- err
	return ch
}
