package acp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// ErrConnClosed is returned for calls against a torn-down connection.
var ErrConnClosed = errors.New("acp: connection closed")

// maxFrameSize bounds a single wire frame. Agents stream large tool
// payloads; one megabyte of headroom per line is generous but finite.
const maxFrameSize = 16 * 1024 * 1024

// inboundHandler serves requests and notifications initiated by the
// agent. For notifications id is nil and the return values are ignored.
type inboundHandler func(method string, id *int64, params json.RawMessage) (any, error)

// rpcConn is one newline-delimited JSON-RPC 2.0 connection. Outbound
// calls are matched to responses through the pending map; inbound
// traffic is handed to the installed handler.
type rpcConn struct {
	mu      sync.Mutex
	writer  io.Writer
	reader  *bufio.Scanner
	nextID  int64
	pending map[int64]chan *rpcMessage
	handler inboundHandler
	closed  bool
	onClose func(error)
	log     zerolog.Logger
}

func newRPCConn(r io.Reader, w io.Writer, handler inboundHandler, log zerolog.Logger) *rpcConn {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxFrameSize)
	return &rpcConn{
		writer:  w,
		reader:  scanner,
		pending: make(map[int64]chan *rpcMessage),
		handler: handler,
		log:     log,
	}
}

// readLoop consumes frames until the reader fails, then fails every
// pending call.
func (c *rpcConn) readLoop() {
	var readErr error
	for c.reader.Scan() {
		line := c.reader.Bytes()
		if len(line) == 0 {
			continue
		}

		var msg rpcMessage
		if err := json.Unmarshal(line, &msg); err != nil {
			c.log.Warn().Err(err).Msg("dropping malformed frame")
			continue
		}
		c.dispatch(&msg)
	}
	if err := c.reader.Err(); err != nil {
		readErr = err
	}

	c.mu.Lock()
	c.closed = true
	for _, ch := range c.pending {
		close(ch)
	}
	c.pending = make(map[int64]chan *rpcMessage)
	onClose := c.onClose
	c.mu.Unlock()

	if onClose != nil {
		onClose(readErr)
	}
}

func (c *rpcConn) dispatch(msg *rpcMessage) {
	// A method name marks agent-initiated traffic, with or without an id.
	if msg.Method != "" {
		c.serve(msg)
		return
	}
	if msg.ID == nil {
		return
	}

	c.mu.Lock()
	ch, ok := c.pending[*msg.ID]
	if ok {
		delete(c.pending, *msg.ID)
	}
	c.mu.Unlock()
	if ok {
		ch <- msg
	}
}

// serve runs the inbound handler and, for requests, writes the reply.
// Handlers may block on user decisions, so each runs on its own
// goroutine to keep the read loop draining.
func (c *rpcConn) serve(msg *rpcMessage) {
	go func() {
		result, err := c.handler(msg.Method, msg.ID, msg.Params)
		if msg.ID == nil {
			return
		}
		reply := rpcMessage{JSONRPC: "2.0", ID: msg.ID}
		if err != nil {
			code := codeInternalError
			var rpcErr *rpcError
			if errors.As(err, &rpcErr) {
				code = rpcErr.Code
			}
			reply.Error = &rpcError{Code: code, Message: err.Error()}
		} else if result != nil {
			raw, merr := json.Marshal(result)
			if merr != nil {
				reply.Error = &rpcError{Code: codeInternalError, Message: merr.Error()}
			} else {
				reply.Result = raw
			}
		}
		if werr := c.write(&reply); werr != nil {
			c.log.Warn().Err(werr).Str("method", msg.Method).Msg("reply write failed")
		}
	}()
}

// call sends a request and blocks until its response or ctx expiry.
func (c *rpcConn) call(ctx context.Context, method string, params, result any) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrConnClosed
	}
	id := atomic.AddInt64(&c.nextID, 1)
	ch := make(chan *rpcMessage, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	msg := rpcMessage{JSONRPC: "2.0", ID: &id, Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return err
		}
		msg.Params = raw
	}

	if err := c.write(&msg); err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return err
	}

	select {
	case resp, ok := <-ch:
		if !ok || resp == nil {
			return ErrConnClosed
		}
		if resp.Error != nil {
			return fmt.Errorf("%s: %w", method, resp.Error)
		}
		if result != nil && len(resp.Result) > 0 {
			return json.Unmarshal(resp.Result, result)
		}
		return nil
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return ctx.Err()
	}
}

// notify sends a fire-and-forget notification.
func (c *rpcConn) notify(method string, params any) error {
	msg := rpcMessage{JSONRPC: "2.0", Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return err
		}
		msg.Params = raw
	}
	return c.write(&msg)
}

func (c *rpcConn) write(msg *rpcMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	if _, err := c.writer.Write(body); err != nil {
		return err
	}
	_, err = c.writer.Write([]byte{'\n'})
	return err
}

func (c *rpcConn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}
