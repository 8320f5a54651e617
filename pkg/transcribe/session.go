// Package transcribe wraps turn-based speech capture: one utterance, one
// transcript, per activation.
package transcribe

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/voxhire/interview-client/pkg/core"
)

// ErrAlreadyActive is returned by Activate while a capture is outstanding.
var ErrAlreadyActive = errors.New("transcription turn already active")

// Capturer records one utterance of raw audio, returning when the utterance
// ends or the context is canceled.
type Capturer interface {
	Capture(ctx context.Context) ([]byte, error)
}

// Transcriber converts one utterance of audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// Session is a turn-based speech-to-text session. At most one capture is in
// flight; each activation yields at most one transcript and then the session
// deactivates itself. Deactivating mid-capture aborts without emitting.
type Session struct {
	capturer    Capturer
	transcriber Transcriber
	logger      *slog.Logger

	mu     sync.Mutex
	active bool
	gen    int
	cancel context.CancelFunc

	onResult func(text string)
	onError  func(err error)
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) SessionOption {
	return func(s *Session) { s.logger = l }
}

// NewSession creates a turn session over the given capturer and transcriber.
func NewSession(capturer Capturer, transcriber Transcriber, opts ...SessionOption) *Session {
	s := &Session{
		capturer:    capturer,
		transcriber: transcriber,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnResult registers the transcript subscriber.
func (s *Session) OnResult(fn func(text string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onResult = fn
}

// OnError registers the capture-failure subscriber.
func (s *Session) OnError(fn func(err error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onError = fn
}

// Active reports whether a capture is outstanding.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Activate begins one capture turn. A second call while a turn is in flight
// is a no-op returning ErrAlreadyActive.
func (s *Session) Activate() error {
	if s.capturer == nil || s.transcriber == nil {
		return core.NewInvalidRequestError("transcription session is not configured")
	}

	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return ErrAlreadyActive
	}
	s.active = true
	s.gen++
	gen := s.gen
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.mu.Unlock()

	go s.runTurn(ctx, gen)
	return nil
}

// Deactivate aborts an in-flight capture without emitting a transcript.
// Safe to call when idle.
func (s *Session) Deactivate() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	s.gen++
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (s *Session) runTurn(ctx context.Context, gen int) {
	audio, err := s.capturer.Capture(ctx)
	if err != nil {
		s.failTurn(ctx, gen, "speech capture failed", err)
		return
	}

	text, err := s.transcriber.Transcribe(ctx, audio)
	if err != nil {
		s.failTurn(ctx, gen, "transcription failed", err)
		return
	}

	s.mu.Lock()
	if s.gen != gen || !s.active {
		// Aborted by Deactivate; emit nothing.
		s.mu.Unlock()
		return
	}
	s.active = false
	s.cancel = nil
	emit := s.onResult
	s.mu.Unlock()

	if emit != nil {
		emit(text)
	}
}

// failTurn resets the activation flag so a new turn can be attempted.
// Failures are not retried automatically.
func (s *Session) failTurn(ctx context.Context, gen int, message string, cause error) {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.active = false
	s.cancel = nil
	report := s.onError
	s.mu.Unlock()

	if ctx.Err() != nil {
		// Deliberate abort, not a failure.
		return
	}
	s.logger.Warn(message, "error", cause)
	if report != nil {
		report(core.NewCaptureError(message, cause))
	}
}
