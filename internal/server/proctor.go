package server

import (
	"bytes"
	"encoding/base64"
	"image"
	_ "image/jpeg"
	"math"
	"strings"
)

// Assessment is the proctoring result for one frame, in the shape the
// client's fraud_alert payload expects.
type Assessment struct {
	IsSuspicious bool     `json:"is_suspicious"`
	Alerts       []string `json:"alerts"`
	FaceCount    int      `json:"face_count"`
}

const (
	// Frames darker or flatter than these thresholds read as an empty or
	// covered camera.
	minMeanLuma   = 20.0
	minLumaStddev = 12.0

	proctorGridStep = 8
)

// Proctor assesses sampled video frames. Without a vision model it falls
// back to luminance statistics: a dark or near-uniform frame means no
// subject is visible.
type Proctor struct{}

// AssessFrame decodes one base64-encoded frame and evaluates it.
func (p *Proctor) AssessFrame(dataB64 string) (Assessment, error) {
	// Browser clients prefix a data URL header; strip it.
	if idx := strings.IndexByte(dataB64, ','); idx >= 0 && strings.HasPrefix(dataB64, "data:") {
		dataB64 = dataB64[idx+1:]
	}
	raw, err := base64.StdEncoding.DecodeString(dataB64)
	if err != nil {
		return Assessment{}, err
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return Assessment{}, err
	}
	return p.assess(img), nil
}

func (p *Proctor) assess(img image.Image) Assessment {
	mean, stddev := lumaStats(img)

	a := Assessment{FaceCount: 1, Alerts: []string{}}
	if mean < minMeanLuma || stddev < minLumaStddev {
		a.FaceCount = 0
		a.Alerts = append(a.Alerts, "No face detected")
	}
	a.IsSuspicious = len(a.Alerts) > 0
	return a
}

// lumaStats samples the frame on a coarse grid and returns the mean and
// standard deviation of its luminance.
func lumaStats(img image.Image) (mean, stddev float64) {
	b := img.Bounds()
	var sum, sumSq float64
	var n int
	for y := b.Min.Y; y < b.Max.Y; y += proctorGridStep {
		for x := b.Min.X; x < b.Max.X; x += proctorGridStep {
			r, g, bl, _ := img.At(x, y).RGBA()
			luma := (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(bl)) / 257
			sum += luma
			sumSq += luma * luma
			n++
		}
	}
	if n == 0 {
		return 0, 0
	}
	mean = sum / float64(n)
	variance := sumSq/float64(n) - mean*mean
	if variance < 0 {
		variance = 0
	}
	return mean, math.Sqrt(variance)
}
