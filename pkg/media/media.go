// Package media manages device capture for an interview session: track
// acquisition and enablement, periodic frame sampling, and screen sharing.
package media

import (
	"context"
	"image"
	"sync"
	"sync/atomic"
)

// TrackKind identifies a capture track.
type TrackKind string

const (
	TrackVideo TrackKind = "video"
	TrackAudio TrackKind = "audio"
)

// Constraints selects which tracks to acquire and the native frame size.
type Constraints struct {
	Video  bool
	Audio  bool
	Width  int
	Height int
}

// FrameGrabber captures the current video frame of a live stream.
type FrameGrabber interface {
	Grab(ctx context.Context) (image.Image, error)
}

// Device acquires capture streams. Implementations wrap real hardware
// (Microphone) or synthesized sources (TestPatternDevice).
type Device interface {
	Acquire(ctx context.Context, c Constraints) (*Stream, error)
}

// Track is one live capture track. Enablement flips without renegotiating
// the underlying stream; Stop releases the device resource exactly once.
type Track struct {
	kind    TrackKind
	enabled atomic.Bool
	once    sync.Once
	done    chan struct{}
	release func()
}

// NewTrack creates an enabled track whose release function runs once on Stop.
func NewTrack(kind TrackKind, release func()) *Track {
	t := &Track{
		kind:    kind,
		done:    make(chan struct{}),
		release: release,
	}
	t.enabled.Store(true)
	return t
}

// Kind returns the track kind.
func (t *Track) Kind() TrackKind { return t.kind }

// Enabled reports whether the track is currently enabled.
func (t *Track) Enabled() bool { return t.enabled.Load() }

// SetEnabled flips track-level enablement in place.
func (t *Track) SetEnabled(enabled bool) { t.enabled.Store(enabled) }

// Stop releases the track. Idempotent.
func (t *Track) Stop() {
	t.once.Do(func() {
		if t.release != nil {
			t.release()
		}
		close(t.done)
	})
}

// Done is closed once the track has stopped, whether by Stop or because the
// underlying surface was revoked externally.
func (t *Track) Done() <-chan struct{} { return t.done }

// Stream is a set of live tracks plus an optional frame grabber for the
// video track.
type Stream struct {
	tracks  []*Track
	grabber FrameGrabber
}

// NewStream builds a stream over the given tracks.
func NewStream(grabber FrameGrabber, tracks ...*Track) *Stream {
	return &Stream{tracks: tracks, grabber: grabber}
}

// Track returns the first track of the given kind, or nil.
func (s *Stream) Track(kind TrackKind) *Track {
	if s == nil {
		return nil
	}
	for _, t := range s.tracks {
		if t.kind == kind {
			return t
		}
	}
	return nil
}

// Tracks returns all tracks.
func (s *Stream) Tracks() []*Track {
	if s == nil {
		return nil
	}
	return append([]*Track(nil), s.tracks...)
}

// Grabber returns the stream's frame grabber, if any.
func (s *Stream) Grabber() FrameGrabber {
	if s == nil {
		return nil
	}
	return s.grabber
}

// Stop stops every track. Idempotent.
func (s *Stream) Stop() {
	if s == nil {
		return
	}
	for _, t := range s.tracks {
		t.Stop()
	}
}
