package media

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/voxhire/interview-client/pkg/core"
)

const (
	// Sampled frames feed a classification service, not human viewing, so a
	// small fixed resolution and lossy quality keep the channel cheap.
	DefaultFrameWidth   = 640
	DefaultFrameHeight  = 480
	DefaultJPEGQuality  = 50
	DefaultFrameInterval = 500 * time.Millisecond

	grabTimeout = 200 * time.Millisecond
)

// FrameSample is one encoded snapshot of the live video feed. Sequence
// numbers are strictly increasing and gap-free for the pipeline's lifetime.
type FrameSample struct {
	Seq        int64
	Data       []byte
	CapturedAt time.Time
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithLogger sets the pipeline logger.
func WithLogger(l *slog.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = l }
}

// WithNow sets the clock, for tests.
func WithNow(now func() time.Time) PipelineOption {
	return func(p *Pipeline) { p.now = now }
}

// WithFrameSize overrides the fixed sample resolution.
func WithFrameSize(w, h int) PipelineOption {
	return func(p *Pipeline) { p.width, p.height = w, h }
}

// WithJPEGQuality overrides the fixed encoding quality factor.
func WithJPEGQuality(q int) PipelineOption {
	return func(p *Pipeline) { p.quality = q }
}

// Pipeline owns the primary camera/microphone stream and the periodic frame
// sampler.
type Pipeline struct {
	device  Device
	logger  *slog.Logger
	now     func() time.Time
	width   int
	height  int
	quality int

	mu          sync.Mutex
	stream      *Stream
	onSample    func(FrameSample)
	seq         int64
	samplerStop chan struct{}
	stopped     bool

	inFlight atomic.Bool
}

// NewPipeline creates a pipeline over the given capture device.
func NewPipeline(device Device, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		device:  device,
		logger:  slog.Default(),
		now:     time.Now,
		width:   DefaultFrameWidth,
		height:  DefaultFrameHeight,
		quality: DefaultJPEGQuality,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Acquire requests camera/microphone access from the device. Returns an
// acquisition error when the device denies or fails; the caller proceeds
// with degraded media.
func (p *Pipeline) Acquire(ctx context.Context, c Constraints) error {
	if p.device == nil {
		return core.NewAcquisitionError("no capture device configured", nil)
	}
	if c.Width <= 0 {
		c.Width = p.width
	}
	if c.Height <= 0 {
		c.Height = p.height
	}

	stream, err := p.device.Acquire(ctx, c)
	if err != nil {
		return core.NewAcquisitionError("acquire media", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		stream.Stop()
		return core.NewInvalidRequestError("pipeline is stopped")
	}
	if p.stream != nil {
		stream.Stop()
		return core.NewInvalidRequestError("media already acquired")
	}
	p.stream = stream
	return nil
}

// Acquired reports whether a stream is live.
func (p *Pipeline) Acquired() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stream != nil
}

// SetTrackEnabled flips enablement of one track kind without renegotiating
// the stream.
func (p *Pipeline) SetTrackEnabled(kind TrackKind, enabled bool) error {
	p.mu.Lock()
	stream := p.stream
	p.mu.Unlock()

	track := stream.Track(kind)
	if track == nil {
		return core.NewInvalidRequestError("no such track: " + string(kind))
	}
	track.SetEnabled(enabled)
	return nil
}

// TrackEnabled reports enablement of one track kind; false when absent.
func (p *Pipeline) TrackEnabled(kind TrackKind) bool {
	p.mu.Lock()
	stream := p.stream
	p.mu.Unlock()

	track := stream.Track(kind)
	return track != nil && track.Enabled()
}

// StartSampling begins the fixed-period frame sampler. Each tick captures,
// scales, and encodes one frame and hands it to onSample — but only while
// the video track is enabled and a consumer is registered; otherwise the
// tick is a no-op. Samples are never queued: a tick that fires while the
// previous sample is still in flight is dropped.
func (p *Pipeline) StartSampling(interval time.Duration, onSample func(FrameSample)) {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}

	p.mu.Lock()
	if p.stopped || p.samplerStop != nil {
		p.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	p.samplerStop = stop
	p.onSample = onSample
	p.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.sampleOnce()
			case <-stop:
				return
			}
		}
	}()
}

func (p *Pipeline) sampleOnce() {
	if !p.inFlight.CompareAndSwap(false, true) {
		return
	}
	defer p.inFlight.Store(false)

	p.mu.Lock()
	stream := p.stream
	onSample := p.onSample
	p.mu.Unlock()

	if stream == nil || onSample == nil {
		return
	}
	track := stream.Track(TrackVideo)
	if track == nil || !track.Enabled() {
		return
	}
	grabber := stream.Grabber()
	if grabber == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), grabTimeout)
	frame, err := grabber.Grab(ctx)
	cancel()
	if err != nil {
		p.logger.Debug("frame grab failed", "error", err)
		return
	}

	data, err := p.encodeFrame(frame)
	if err != nil {
		p.logger.Debug("frame encode failed", "error", err)
		return
	}

	p.mu.Lock()
	seq := p.seq
	p.seq++
	p.mu.Unlock()

	onSample(FrameSample{Seq: seq, Data: data, CapturedAt: p.now()})
}

func (p *Pipeline) encodeFrame(frame image.Image) ([]byte, error) {
	scaled := scaleFrame(frame, p.width, p.height)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: p.quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Stop cancels the sampler and stops every track, camera and microphone
// alike. Idempotent.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	stop := p.samplerStop
	stream := p.stream
	p.samplerStop = nil
	p.onSample = nil
	p.stream = nil
	p.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	stream.Stop()
}

// scaleFrame resizes into the fixed sample resolution with nearest-neighbor
// sampling; classification input does not warrant a filtering scaler.
func scaleFrame(src image.Image, w, h int) image.Image {
	sb := src.Bounds()
	if sb.Dx() == w && sb.Dy() == h {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		sy := sb.Min.Y + y*sb.Dy()/h
		for x := 0; x < w; x++ {
			sx := sb.Min.X + x*sb.Dx()/w
			dst.Set(x, y, src.At(sx, sy))
		}
	}
	return dst
}
