package web

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"orsi/internal/conversation"
	"orsi/internal/providers"
	"orsi/internal/voice"
)

var errClosed = errors.New("connection closed")

type locateResult struct {
	pos providers.Position
	err error
}

type captureResult struct {
	text string
	err  error
}

// conn is one browser connection. It implements every capability of a
// session by exchanging frames with the page.
type conn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration

	writeMu sync.Mutex

	waitMu  sync.Mutex
	locates []chan locateResult
	capture chan captureResult

	done      chan struct{}
	closeOnce sync.Once
}

var (
	_ providers.Locator = (*conn)(nil)
	_ providers.Opener  = (*conn)(nil)
	_ voice.Recognizer  = (*conn)(nil)
	_ voice.Synthesizer = (*conn)(nil)
)

func newConn(ws *websocket.Conn, writeTimeout time.Duration) *conn {
	return &conn{ws: ws, writeTimeout: writeTimeout, done: make(chan struct{})}
}

func (c *conn) send(v any) error {
	select {
	case <-c.done:
		return errClosed
	default:
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.writeTimeout > 0 {
		_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.ws.WriteJSON(v)
}

func (c *conn) ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout))
}

func (c *conn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

// Entry forwards a new log entry to the page.
func (c *conn) Entry(e conversation.Entry) {
	_ = c.send(entryFrame{Type: FrameEntry, Entry: e})
}

func (c *conn) Open(_ context.Context, url string) error {
	return c.send(openURLFrame{Type: FrameOpenURL, URL: url})
}

func (c *conn) Speak(_ context.Context, u voice.Utterance) error {
	return c.send(speakFrame{Type: FrameSpeak, Utterance: u})
}

// Locate asks the page for its position. Concurrent requests share the
// next answer.
func (c *conn) Locate(ctx context.Context) (providers.Position, error) {
	ch := make(chan locateResult, 1)
	c.waitMu.Lock()
	first := len(c.locates) == 0
	c.locates = append(c.locates, ch)
	c.waitMu.Unlock()

	if first {
		if err := c.send(bareFrame{Type: FrameLocate}); err != nil {
			c.dropLocate(ch)
			return providers.Position{}, fmt.Errorf("%w: request location: %v", providers.ErrNetwork, err)
		}
	}

	select {
	case res := <-ch:
		return res.pos, res.err
	case <-ctx.Done():
		c.dropLocate(ch)
		return providers.Position{}, ctx.Err()
	case <-c.done:
		return providers.Position{}, errClosed
	}
}

func (c *conn) resolveLocate(res locateResult) {
	c.waitMu.Lock()
	waiters := c.locates
	c.locates = nil
	c.waitMu.Unlock()
	for _, ch := range waiters {
		ch <- res
	}
}

func (c *conn) dropLocate(ch chan locateResult) {
	c.waitMu.Lock()
	defer c.waitMu.Unlock()
	for i, w := range c.locates {
		if w == ch {
			c.locates = append(c.locates[:i], c.locates[i+1:]...)
			return
		}
	}
}

// Capture starts recognition on the page and waits for one transcript.
func (c *conn) Capture(ctx context.Context, locale string) (string, error) {
	ch := make(chan captureResult, 1)
	c.waitMu.Lock()
	if c.capture != nil {
		c.waitMu.Unlock()
		return "", voice.ErrListening
	}
	c.capture = ch
	c.waitMu.Unlock()
	defer c.clearCapture(ch)

	if err := c.send(captureStartFrame{Type: FrameCaptureStart, Lang: locale}); err != nil {
		return "", fmt.Errorf("request capture: %w", err)
	}

	select {
	case res := <-ch:
		return res.text, res.err
	case <-ctx.Done():
		_ = c.send(bareFrame{Type: FrameCaptureStop})
		return "", ctx.Err()
	case <-c.done:
		return "", errClosed
	}
}

// resolveCapture hands a result to the pending capture. It reports false
// when nothing was waiting.
func (c *conn) resolveCapture(res captureResult) bool {
	c.waitMu.Lock()
	ch := c.capture
	c.capture = nil
	c.waitMu.Unlock()
	if ch == nil {
		return false
	}
	ch <- res
	return true
}

func (c *conn) clearCapture(ch chan captureResult) {
	c.waitMu.Lock()
	if c.capture == ch {
		c.capture = nil
	}
	c.waitMu.Unlock()
}
