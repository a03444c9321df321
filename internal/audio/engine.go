package audio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// State is the engine's playback state.
type State string

const (
	StateIdle    State = "idle"
	StatePlaying State = "playing"
	// StateReplacing is held while a new session takes over from the previous one.
	StateReplacing State = "replacing"
)

type session struct {
	id     string
	ctx    Context
	handle Handle
	// muted suppresses the end callback of a session that has already ended naturally.
	muted bool
}

type request struct {
	payload string
	onEnded func()
}

// Status is a snapshot of the engine for callers that correlate sessions.
type Status struct {
	State     State  `json:"state"`
	SessionID string `json:"sessionId,omitempty"`
}

// Engine owns at most one playback session. Starting a new one always tears down
// the previous session first, and a replaced or stopped session never fires its
// end callback. A Play that arrives while a finished session is still running its
// callback is held until that callback returns, so an end notification never
// follows the start of the next session.
type Engine struct {
	device     Device
	sampleRate int
	channels   int
	logger     *slog.Logger
	sessions   metric.Int64Counter

	mu       sync.Mutex
	state    State
	cur      *session
	ending   *session
	deferred *request
}

// Option configures an Engine.
type Option func(*Engine)

// WithFormat overrides the PCM format the engine decodes (default 24 kHz mono).
func WithFormat(sampleRate, channels int) Option {
	return func(e *Engine) {
		e.sampleRate = sampleRate
		e.channels = channels
	}
}

// WithLogger sets the engine's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// NewEngine creates an idle engine that plays through device.
func NewEngine(device Device, opts ...Option) *Engine {
	e := &Engine{
		device:     device,
		sampleRate: SampleRate,
		channels:   Channels,
		logger:     slog.Default(),
		state:      StateIdle,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(slog.String("component", "playback"))

	counter, err := otel.Meter("github.com/kirtisharma-sudo/echolearn-ai/internal/audio").Int64Counter(
		"echolearn.playback.sessions",
		metric.WithDescription("Playback sessions by outcome"),
	)
	if err != nil {
		counter = noop.Int64Counter{}
	}
	e.sessions = counter
	return e
}

// State returns the current playback state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Status returns the current state and the ID of the playing session, if any.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := Status{State: e.state}
	if e.cur != nil {
		st.SessionID = e.cur.id
	}
	return st
}

// Play stops any current session and plays the base64 s16le payload. onEnded runs
// once when playback finishes naturally or fails to start. It does not run when the
// session is stopped or replaced. Failures are logged, never returned.
func (e *Engine) Play(payload string, onEnded func()) {
	e.mu.Lock()
	if e.ending != nil {
		// Superseding an earlier deferred request drops its callback like any replace.
		e.deferred = &request{payload: payload, onEnded: onEnded}
		e.state = StateReplacing
		e.mu.Unlock()
		return
	}
	failed := e.playLocked(request{payload: payload, onEnded: onEnded})
	e.mu.Unlock()

	if failed != nil {
		failed()
	}
}

// playLocked replaces the current session with r. On failure it returns the
// callback to run once the lock is released.
func (e *Engine) playLocked(r request) func() {
	if e.cur != nil {
		e.state = StateReplacing
		e.stopLocked()
	}

	s, err := e.startLocked(r.payload)
	if err != nil {
		e.state = StateIdle
		e.logger.Warn("playback failed", slog.String("error", err.Error()))
		e.record("failed")
		return func() {
			if r.onEnded != nil {
				r.onEnded()
			}
		}
	}
	e.cur = s
	e.state = StatePlaying
	e.record("started")
	go e.watch(s, r.onEnded)
	return nil
}

func (e *Engine) startLocked(payload string) (*session, error) {
	buf, err := DecodeBase64PCM(payload, e.sampleRate, e.channels)
	if err != nil {
		return nil, err
	}
	ctx, err := e.device.Open(e.sampleRate, e.channels)
	if err != nil {
		return nil, fmt.Errorf("%w: open device: %v", ErrPlaybackStartFailed, err)
	}
	h, err := ctx.Start(buf)
	if err != nil {
		e.closeContext(ctx)
		return nil, fmt.Errorf("%w: %v", ErrPlaybackStartFailed, err)
	}
	s := &session{id: uuid.NewString(), ctx: ctx, handle: h}
	e.logger.Debug("playback started", slog.String("session_id", s.id), slog.Duration("duration", buf.Duration()))
	return s, nil
}

func (e *Engine) watch(s *session, onEnded func()) {
	<-s.handle.Done()

	e.mu.Lock()
	if e.cur != s {
		e.mu.Unlock()
		return
	}
	e.cur = nil
	e.ending = s
	e.state = StateIdle
	e.mu.Unlock()

	e.closeContext(s.ctx)
	e.logger.Debug("playback completed", slog.String("session_id", s.id))
	e.record("completed")

	e.mu.Lock()
	muted := s.muted
	e.mu.Unlock()
	if !muted && onEnded != nil {
		onEnded()
	}

	e.mu.Lock()
	e.ending = nil
	next := e.deferred
	e.deferred = nil
	var failed func()
	if next != nil {
		failed = e.playLocked(*next)
	}
	e.mu.Unlock()

	if failed != nil {
		failed()
	}
}

// Stop halts the current session immediately and drops any held request.
// Stopping an idle engine is a no-op.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cur != nil {
		e.stopLocked()
		e.record("stopped")
	}
	if e.ending != nil {
		e.ending.muted = true
	}
	e.deferred = nil
	e.state = StateIdle
}

func (e *Engine) stopLocked() {
	s := e.cur
	e.cur = nil
	if err := s.handle.Stop(); err != nil {
		e.logger.Debug("stop playback", slog.String("session_id", s.id), slog.String("error", err.Error()))
	}
	e.closeContext(s.ctx)
}

func (e *Engine) closeContext(ctx Context) {
	if err := ctx.Close(); err != nil {
		e.logger.Debug("close audio context", slog.String("error", err.Error()))
	}
}

func (e *Engine) record(outcome string) {
	e.sessions.Add(context.Background(), 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
