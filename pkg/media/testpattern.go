package media

import (
	"context"
	"image"
	"image/color"
	"sync/atomic"
)

// TestPatternDevice synthesizes video frames and a passthrough audio track.
// It stands in wherever no camera hardware binding is available (headless
// hosts, tests, the reference client's self view).
type TestPatternDevice struct{}

// Acquire returns a stream with the requested tracks; the video track grabs
// a moving gradient pattern.
func (d *TestPatternDevice) Acquire(ctx context.Context, c Constraints) (*Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	w, h := c.Width, c.Height
	if w <= 0 {
		w = DefaultFrameWidth
	}
	if h <= 0 {
		h = DefaultFrameHeight
	}

	var tracks []*Track
	var grabber FrameGrabber
	if c.Video {
		grabber = &patternGrabber{width: w, height: h}
		tracks = append(tracks, NewTrack(TrackVideo, func() {}))
	}
	if c.Audio {
		tracks = append(tracks, NewTrack(TrackAudio, func() {}))
	}
	return NewStream(grabber, tracks...), nil
}

type patternGrabber struct {
	width  int
	height int
	tick   atomic.Int64
}

func (g *patternGrabber) Grab(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := g.tick.Add(1)
	img := image.NewRGBA(image.Rect(0, 0, g.width, g.height))
	for y := 0; y < g.height; y++ {
		for x := 0; x < g.width; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8((x + int(n)) & 0xff),
				G: uint8((y + int(n)*2) & 0xff),
				B: uint8((x + y) & 0xff),
				A: 0xff,
			})
		}
	}
	return img, nil
}
