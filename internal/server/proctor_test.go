package server

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
)

// encodeFrame renders a 64x64 frame through fill and returns it as the
// base64 JPEG the client sends.
func encodeFrame(t *testing.T, fill func(x, y int) color.RGBA) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.SetRGBA(x, y, fill(x, y))
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode frame: %v", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func gradientFill(x, y int) color.RGBA {
	v := uint8(x * 4)
	return color.RGBA{R: v, G: v, B: v, A: 255}
}

func blackFill(x, y int) color.RGBA {
	return color.RGBA{A: 255}
}

func flatGrayFill(x, y int) color.RGBA {
	return color.RGBA{R: 128, G: 128, B: 128, A: 255}
}

func TestAssessFrame_SubjectVisible(t *testing.T) {
	t.Parallel()

	var p Proctor
	a, err := p.AssessFrame(encodeFrame(t, gradientFill))
	if err != nil {
		t.Fatalf("AssessFrame error: %v", err)
	}
	if a.IsSuspicious || a.FaceCount != 1 || len(a.Alerts) != 0 {
		t.Fatalf("assessment=%+v, want clean frame", a)
	}
}

func TestAssessFrame_DarkFrameFlagged(t *testing.T) {
	t.Parallel()

	var p Proctor
	a, err := p.AssessFrame(encodeFrame(t, blackFill))
	if err != nil {
		t.Fatalf("AssessFrame error: %v", err)
	}
	if !a.IsSuspicious || a.FaceCount != 0 {
		t.Fatalf("assessment=%+v, want suspicious", a)
	}
	if len(a.Alerts) != 1 || a.Alerts[0] != "No face detected" {
		t.Fatalf("alerts=%v", a.Alerts)
	}
}

func TestAssessFrame_FlatFrameFlagged(t *testing.T) {
	t.Parallel()

	var p Proctor
	a, err := p.AssessFrame(encodeFrame(t, flatGrayFill))
	if err != nil {
		t.Fatalf("AssessFrame error: %v", err)
	}
	if !a.IsSuspicious || a.FaceCount != 0 {
		t.Fatalf("assessment=%+v, want covered-camera flag", a)
	}
}

func TestAssessFrame_StripsDataURLPrefix(t *testing.T) {
	t.Parallel()

	var p Proctor
	frame := "data:image/jpeg;base64," + encodeFrame(t, gradientFill)
	a, err := p.AssessFrame(frame)
	if err != nil {
		t.Fatalf("AssessFrame error: %v", err)
	}
	if a.FaceCount != 1 {
		t.Fatalf("assessment=%+v", a)
	}
}

func TestAssessFrame_RejectsGarbage(t *testing.T) {
	t.Parallel()

	var p Proctor
	if _, err := p.AssessFrame("not base64 at all!!"); err == nil {
		t.Fatalf("expected base64 error")
	}
	if _, err := p.AssessFrame(base64.StdEncoding.EncodeToString([]byte("not an image"))); err == nil {
		t.Fatalf("expected image decode error")
	}
}
