package audio

import (
	"errors"
	"sync"
	"time"
)

// Device is an audio output that can open decode contexts.
type Device interface {
	Open(sampleRate, channels int) (Context, error)
}

// Context is an open output context. Close releases it.
type Context interface {
	Start(buf *Buffer) (Handle, error)
	Close() error
}

// Handle controls one started buffer. Done is closed when playback ends for any reason.
type Handle interface {
	Done() <-chan struct{}
	Stop() error
}

var errContextClosed = errors.New("audio context closed")

// DiscardDevice plays nothing but finishes each buffer after its real duration.
// It serves headless servers and tests.
type DiscardDevice struct{}

// Open implements Device.
func (DiscardDevice) Open(int, int) (Context, error) {
	return &discardContext{}, nil
}

type discardContext struct {
	mu     sync.Mutex
	closed bool
}

func (c *discardContext) Start(buf *Buffer) (Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errContextClosed
	}
	h := &timerHandle{done: make(chan struct{})}
	h.timer = time.AfterFunc(buf.Duration(), h.finish)
	return h, nil
}

func (c *discardContext) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

type timerHandle struct {
	timer *time.Timer
	once  sync.Once
	done  chan struct{}
}

func (h *timerHandle) finish() { h.once.Do(func() { close(h.done) }) }

func (h *timerHandle) Done() <-chan struct{} { return h.done }

func (h *timerHandle) Stop() error {
	h.timer.Stop()
	h.finish()
	return nil
}
