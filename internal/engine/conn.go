package engine

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lexhq/lex-desktop/internal/constants"
	"github.com/lexhq/lex-desktop/internal/logging"
)

// ErrConnClosed is returned by Call after the connection has shut down.
var ErrConnClosed = errors.New("engine connection closed")

// Caller issues a single command against the engine. Session, jobs and
// windows depend on this interface so tests can substitute a fake engine.
type Caller interface {
	// Call sends cmd with args and decodes the result into out.
	// A nil out discards the result. Engine-side failures come back as
	// *Error; transport failures as plain errors.
	Call(ctx context.Context, cmd string, args, out interface{}) error
}

// EventSink receives every event frame, in arrival order. The sink is
// invoked from the connection's read goroutine and must not block.
type EventSink func(name string, payload json.RawMessage)

// Conn is a persistent connection to the engine process.
//
// One goroutine owns reads: it routes response frames to their waiting
// callers by id and hands event frames to the sink. Writes are serialized
// by a mutex. Multiple commands may be in flight concurrently.
type Conn struct {
	conn   net.Conn
	sink   EventSink
	logger *logging.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[uint64]chan *frame
	closed  bool

	seq  atomic.Uint64
	done chan struct{}
}

// Dial connects to the engine socket at path. A non-positive timeout
// selects the default.
func Dial(path string, timeout time.Duration, sink EventSink, logger *logging.Logger) (*Conn, error) {
	if timeout <= 0 {
		timeout = constants.EngineDialTimeout
	}
	nc, err := net.DialTimeout("unix", path, timeout)
	if err != nil {
		return nil, fmt.Errorf("dial engine socket %s: %w", path, err)
	}
	return NewConn(nc, sink, logger), nil
}

// NewConn wraps an established connection. Used directly by tests via
// net.Pipe and by Dial.
func NewConn(nc net.Conn, sink EventSink, logger *logging.Logger) *Conn {
	c := &Conn{
		conn:    nc,
		sink:    sink,
		logger:  logger,
		pending: make(map[uint64]chan *frame),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Call implements Caller.
func (c *Conn) Call(ctx context.Context, cmd string, args, out interface{}) error {
	id := c.seq.Add(1)
	ch := make(chan *frame, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrConnClosed
	}
	c.pending[id] = ch
	c.mu.Unlock()

	data, err := encodeRequest(&request{ID: id, Cmd: cmd, Args: args})
	if err != nil {
		c.forget(id)
		return fmt.Errorf("encode %s: %w", cmd, err)
	}

	c.writeMu.Lock()
	if d, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(d)
	} else {
		_ = c.conn.SetWriteDeadline(time.Time{})
	}
	_, err = c.conn.Write(data)
	c.writeMu.Unlock()
	if err != nil {
		c.forget(id)
		return fmt.Errorf("send %s: %w", cmd, err)
	}

	select {
	case <-ctx.Done():
		c.forget(id)
		return ctx.Err()
	case <-c.done:
		return ErrConnClosed
	case f := <-ch:
		if f.Error != nil {
			return f.Error
		}
		if out == nil || len(f.Result) == 0 {
			return nil
		}
		if err := json.Unmarshal(f.Result, out); err != nil {
			return fmt.Errorf("decode %s result: %w", cmd, err)
		}
		return nil
	}
}

// Close tears down the connection. In-flight calls fail with ErrConnClosed.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	err := c.conn.Close()
	<-c.done
	return err
}

func (c *Conn) forget(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Conn) readLoop() {
	defer close(c.done)

	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, 64*1024), constants.EngineMaxFrame)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		f, err := decodeFrame(line)
		if err != nil {
			c.logger.Warn().Err(err).Msg("Dropping malformed engine frame")
			continue
		}

		if f.Event != "" {
			if c.sink != nil {
				c.sink(f.Event, f.Payload)
			}
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[*f.ID]
		if ok {
			delete(c.pending, *f.ID)
		}
		c.mu.Unlock()

		if !ok {
			// Caller gave up (context cancelled) before the response landed.
			c.logger.Debug().Uint64("id", *f.ID).Msg("Response for abandoned call")
			continue
		}
		ch <- f
	}

	if err := scanner.Err(); err != nil {
		c.mu.Lock()
		wasClosed := c.closed
		c.mu.Unlock()
		if !wasClosed {
			c.logger.Error().Err(err).Msg("Engine connection read failed")
		}
	}

	c.mu.Lock()
	c.closed = true
	c.pending = make(map[uint64]chan *frame)
	c.mu.Unlock()
}
