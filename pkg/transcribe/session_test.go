package transcribe

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// scriptedCapturer returns canned audio, optionally blocking until the
// context is canceled.
type scriptedCapturer struct {
	audio    []byte
	err      error
	block    bool
	captures atomic.Int64
}

func (c *scriptedCapturer) Capture(ctx context.Context) ([]byte, error) {
	c.captures.Add(1)
	if c.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return c.audio, c.err
}

type scriptedTranscriber struct {
	text string
	err  error
}

func (t *scriptedTranscriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	return t.text, t.err
}

func TestActivate_EmitsExactlyOneTranscript(t *testing.T) {
	t.Parallel()

	s := NewSession(
		&scriptedCapturer{audio: []byte{1, 2, 3}},
		&scriptedTranscriber{text: "I would use a worker pool."},
	)

	results := make(chan string, 4)
	s.OnResult(func(text string) { results <- text })

	if err := s.Activate(); err != nil {
		t.Fatalf("Activate error: %v", err)
	}

	select {
	case text := <-results:
		if text != "I would use a worker pool." {
			t.Fatalf("transcript=%q", text)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("transcript never emitted")
	}

	// The turn self-deactivates after emitting.
	waitInactive(t, s)

	select {
	case text := <-results:
		t.Fatalf("second transcript %q from a single activation", text)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestActivate_SecondCallWhileActiveRejected(t *testing.T) {
	t.Parallel()

	cap := &scriptedCapturer{block: true}
	s := NewSession(cap, &scriptedTranscriber{text: "x"})

	if err := s.Activate(); err != nil {
		t.Fatalf("Activate error: %v", err)
	}
	if err := s.Activate(); !errors.Is(err, ErrAlreadyActive) {
		t.Fatalf("err=%v, want ErrAlreadyActive", err)
	}
	if n := cap.captures.Load(); n != 1 {
		t.Fatalf("captures=%d, want 1", n)
	}
	s.Deactivate()
}

func TestDeactivate_AbortsWithoutEmitting(t *testing.T) {
	t.Parallel()

	s := NewSession(&scriptedCapturer{block: true}, &scriptedTranscriber{text: "never"})

	results := make(chan string, 1)
	failures := make(chan error, 1)
	s.OnResult(func(text string) { results <- text })
	s.OnError(func(err error) { failures <- err })

	if err := s.Activate(); err != nil {
		t.Fatalf("Activate error: %v", err)
	}
	s.Deactivate()

	select {
	case text := <-results:
		t.Fatalf("aborted turn emitted %q", text)
	case err := <-failures:
		t.Fatalf("aborted turn reported error %v", err)
	case <-time.After(150 * time.Millisecond):
	}
	if s.Active() {
		t.Fatalf("session still active after Deactivate")
	}
}

func TestDeactivate_WhenIdleIsNoOp(t *testing.T) {
	t.Parallel()

	s := NewSession(&scriptedCapturer{}, &scriptedTranscriber{})
	s.Deactivate()
	if s.Active() {
		t.Fatalf("idle session reported active")
	}
}

func TestCaptureFailure_ReportsAndResets(t *testing.T) {
	t.Parallel()

	s := NewSession(
		&scriptedCapturer{err: errors.New("device busy")},
		&scriptedTranscriber{text: "unused"},
	)

	failures := make(chan error, 1)
	s.OnError(func(err error) { failures <- err })

	if err := s.Activate(); err != nil {
		t.Fatalf("Activate error: %v", err)
	}

	select {
	case err := <-failures:
		if err == nil {
			t.Fatalf("nil failure reported")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("failure never reported")
	}

	waitInactive(t, s)

	// A new turn can be attempted after a failure.
	if err := s.Activate(); err != nil {
		t.Fatalf("Activate after failure error: %v", err)
	}
}

func waitInactive(t *testing.T, s *Session) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if !s.Active() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("session never deactivated")
}
