package media

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
)

const (
	// MicSampleRate is the capture rate handed to speech-to-text.
	MicSampleRate = 16000
	// MicChannels is mono capture.
	MicChannels = 1

	maxUtterance    = 30 * time.Second
	silenceTail     = 700 * time.Millisecond
	speechThreshold = 500 // mean absolute s16 amplitude
)

// Microphone captures single utterances of pcm_s16le audio from the default
// capture device.
type Microphone struct {
	mctx       *malgo.AllocatedContext
	sampleRate int
	channels   int

	mu     sync.Mutex
	closed bool
}

// NewMicrophone initializes the audio backend.
func NewMicrophone() (*Microphone, error) {
	cfg := malgo.ContextConfig{}
	cfg.ThreadPriority = malgo.ThreadPriorityRealtime

	mctx, err := malgo.InitContext(nil, cfg, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}
	return &Microphone{
		mctx:       mctx,
		sampleRate: MicSampleRate,
		channels:   MicChannels,
	}, nil
}

// SampleRate returns the capture sample rate in Hz.
func (m *Microphone) SampleRate() int { return m.sampleRate }

// Capture records one utterance: audio accumulates until the context is
// canceled, the utterance trails into silence after speech was heard, or the
// maximum duration elapses. Returns the raw pcm_s16le bytes.
func (m *Microphone) Capture(ctx context.Context) ([]byte, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, fmt.Errorf("microphone is closed")
	}
	m.mu.Unlock()

	var (
		bufMu     sync.Mutex
		buf       []byte
		sawSpeech bool
		lastLoud  time.Time
		doneCh    = make(chan struct{})
		doneOnce  sync.Once
	)

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(m.channels)
	deviceConfig.SampleRate = uint32(m.sampleRate)
	deviceConfig.PeriodSizeInMilliseconds = 20

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			now := time.Now()
			loud := meanAbsAmplitude(input) >= speechThreshold

			bufMu.Lock()
			buf = append(buf, input...)
			if loud {
				sawSpeech = true
				lastLoud = now
			}
			endpoint := sawSpeech && !loud && now.Sub(lastLoud) > silenceTail
			bufMu.Unlock()

			if endpoint {
				doneOnce.Do(func() { close(doneCh) })
			}
		},
	}

	device, err := malgo.InitDevice(m.mctx.Context, deviceConfig, callbacks)
	if err != nil {
		return nil, fmt.Errorf("init microphone: %w", err)
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return nil, fmt.Errorf("start microphone: %w", err)
	}

	timer := time.NewTimer(maxUtterance)
	defer timer.Stop()

	var aborted bool
	select {
	case <-ctx.Done():
		aborted = true
	case <-doneCh:
	case <-timer.C:
	}
	_ = device.Stop()

	if aborted {
		return nil, ctx.Err()
	}

	bufMu.Lock()
	defer bufMu.Unlock()
	return append([]byte(nil), buf...), nil
}

// Close releases the audio backend.
func (m *Microphone) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	return m.mctx.Uninit()
}

func meanAbsAmplitude(pcm []byte) int {
	if len(pcm) < 2 {
		return 0
	}
	var sum int64
	n := len(pcm) / 2
	for i := 0; i < n; i++ {
		sample := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		if sample < 0 {
			sample = -sample
		}
		sum += int64(sample)
	}
	return int(sum / int64(n))
}
