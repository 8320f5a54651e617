package tui

import (
	"io"
	"math"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

const (
	toneSampleRate = 44100
	toneFreq       = 440.0
	toneDuration   = 400 * time.Millisecond
)

var (
	toneOnce sync.Once
	toneCtx  *oto.Context
	toneErr  error
)

// toneContext lazily initializes the audio output backend. The backend can
// only be created once per process.
func toneContext() (*oto.Context, error) {
	toneOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   toneSampleRate,
			ChannelCount: 1,
			Format:       oto.FormatSignedInt16LE,
		}
		ctx, ready, err := oto.NewContext(op)
		if err != nil {
			toneErr = err
			return
		}
		<-ready
		toneCtx = ctx
	})
	return toneCtx, toneErr
}

// playTestTone plays a short sine tone on the default output device so the
// candidate can confirm audio works before joining.
func playTestTone() error {
	ctx, err := toneContext()
	if err != nil {
		return err
	}

	p := ctx.NewPlayer(newSineReader(toneFreq, toneDuration))
	p.Play()
	for p.IsPlaying() {
		time.Sleep(10 * time.Millisecond)
	}
	return p.Close()
}

// sineReader yields a fixed-length pcm_s16le sine wave.
type sineReader struct {
	freq      float64
	remaining int
	pos       int
}

func newSineReader(freq float64, d time.Duration) *sineReader {
	return &sineReader{
		freq:      freq,
		remaining: int(float64(toneSampleRate) * d.Seconds()),
	}
}

func (r *sineReader) Read(buf []byte) (int, error) {
	if r.remaining <= 0 {
		return 0, io.EOF
	}
	n := len(buf) / 2
	if n > r.remaining {
		n = r.remaining
	}
	for i := 0; i < n; i++ {
		v := math.Sin(2 * math.Pi * r.freq * float64(r.pos) / toneSampleRate)
		s := int16(v * 0.3 * math.MaxInt16)
		buf[2*i] = byte(s)
		buf[2*i+1] = byte(s >> 8)
		r.pos++
	}
	r.remaining -= n
	return n * 2, nil
}
