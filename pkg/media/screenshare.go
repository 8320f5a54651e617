package media

import (
	"context"
	"log/slog"
	"sync"

	"github.com/voxhire/interview-client/pkg/core"
)

// ScreenShare is the optional secondary capture surface. Its lifecycle is
// independent from the primary camera stream, and it notifies the owner when
// the shared surface is revoked outside this application (for example a
// system-level "stop sharing" control), so UI state stays consistent without
// polling.
type ScreenShare struct {
	device Device
	logger *slog.Logger

	mu        sync.Mutex
	stream    *Stream
	onRevoked func()
}

// ScreenShareOption configures a ScreenShare.
type ScreenShareOption func(*ScreenShare)

// WithScreenShareLogger sets the logger.
func WithScreenShareLogger(l *slog.Logger) ScreenShareOption {
	return func(s *ScreenShare) { s.logger = l }
}

// NewScreenShare creates a screen share session over the given device.
func NewScreenShare(device Device, opts ...ScreenShareOption) *ScreenShare {
	s := &ScreenShare{
		device: device,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnRevoked registers the external-revocation callback. Called at most once
// per Start, and never after Stop.
func (s *ScreenShare) OnRevoked(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRevoked = fn
}

// Start acquires the share surface. Returns an acquisition error when the
// share is rejected.
func (s *ScreenShare) Start(ctx context.Context) error {
	if s.device == nil {
		return core.NewAcquisitionError("no screen share device configured", nil)
	}

	s.mu.Lock()
	if s.stream != nil {
		s.mu.Unlock()
		return core.NewInvalidRequestError("screen share already active")
	}
	s.mu.Unlock()

	stream, err := s.device.Acquire(ctx, Constraints{Video: true})
	if err != nil {
		return core.NewAcquisitionError("start screen share", err)
	}

	s.mu.Lock()
	s.stream = stream
	s.mu.Unlock()

	track := stream.Track(TrackVideo)
	if track != nil {
		go s.watchRevocation(stream, track)
	}
	return nil
}

// watchRevocation self-stops the session and fires the callback when the
// surface ends without a local Stop.
func (s *ScreenShare) watchRevocation(stream *Stream, track *Track) {
	<-track.Done()

	s.mu.Lock()
	revoked := s.stream == stream
	fn := s.onRevoked
	if revoked {
		s.stream = nil
	}
	s.mu.Unlock()

	if !revoked {
		return
	}
	stream.Stop()
	s.logger.Info("screen share revoked externally")
	if fn != nil {
		fn()
	}
}

// Active reports whether a share surface is live.
func (s *ScreenShare) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream != nil
}

// Stop stops all tracks of the shared surface. Idempotent.
func (s *ScreenShare) Stop() {
	s.mu.Lock()
	stream := s.stream
	s.stream = nil
	s.mu.Unlock()

	stream.Stop()
}
