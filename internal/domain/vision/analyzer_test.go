package vision

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	platformtesting "voice-assistant-go/internal/platform/testing"
)

func encodePNG(t *testing.T, c color.Color, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestAnalyzeBrightAndDark(t *testing.T) {
	a := NewAnalyzer(Options{Logger: platformtesting.SetupTestLogger(t)})

	bright := a.Analyze(encodePNG(t, color.White, 8, 8))
	if bright["lighting"] != "light" {
		t.Errorf("white image classified as %v", bright["lighting"])
	}
	if bright["width"] != 8 || bright["height"] != 8 {
		t.Errorf("unexpected dimensions: %v x %v", bright["width"], bright["height"])
	}
	if bright["format"] != "png" {
		t.Errorf("format = %v, want png", bright["format"])
	}

	dark := a.Analyze(encodePNG(t, color.Black, 8, 8))
	if dark["lighting"] != "dark" {
		t.Errorf("black image classified as %v", dark["lighting"])
	}
}

func TestAnalyzeGarbageReturnsEmpty(t *testing.T) {
	a := NewAnalyzer(Options{Logger: platformtesting.SetupTestLogger(t)})

	attrs := a.Analyze([]byte("definitely not an image"))
	if len(attrs) != 0 {
		t.Fatalf("expected empty attributes, got %v", attrs)
	}
	if attrs := a.Analyze(nil); len(attrs) != 0 {
		t.Fatalf("expected empty attributes for nil input, got %v", attrs)
	}
}

func TestCaptureCooldown(t *testing.T) {
	payload := encodePNG(t, color.White, 4, 4)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	a := NewAnalyzer(Options{
		Camera:   NewSnapshotCamera(server.URL, time.Second),
		Logger:   platformtesting.SetupTestLogger(t),
		Cooldown: time.Minute,
	})

	ctx := context.Background()
	first := a.Capture(ctx)
	if first == nil {
		t.Fatal("first capture returned nil")
	}

	if second := a.Capture(ctx); second != nil {
		t.Fatal("capture inside cooldown should return nil")
	}

	// Advance past the cooldown via the injected clock.
	base := time.Now().Add(2 * time.Minute)
	a.now = func() time.Time { return base }
	if third := a.Capture(ctx); third == nil {
		t.Fatal("capture after cooldown returned nil")
	}
}

func TestCaptureDeviceFailureIsAbsorbed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	a := NewAnalyzer(Options{
		Camera: NewSnapshotCamera(server.URL, time.Second),
		Logger: platformtesting.SetupTestLogger(t),
	})

	if data := a.Capture(context.Background()); data != nil {
		t.Fatal("failed capture should return nil, not propagate")
	}
}
