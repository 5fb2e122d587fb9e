package vision

import (
	"bytes"
	"context"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"sync"
	"time"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"voice-assistant-go/internal/platform/logging"
)

// Analyzer wraps a Camera with a capture cooldown and provides
// best-effort image analysis. Analysis never fails upward: undecodable
// input yields an empty attribute map.
type Analyzer struct {
	camera   Camera
	logger   *logging.Logger
	cooldown time.Duration
	maxWidth int

	mu          sync.Mutex
	lastCapture time.Time

	now func() time.Time
}

// Options configures the analyzer.
type Options struct {
	Camera   Camera
	Logger   *logging.Logger
	Cooldown time.Duration
	MaxWidth int
}

// NewAnalyzer builds an analyzer around the given camera.
func NewAnalyzer(opts Options) *Analyzer {
	cooldown := opts.Cooldown
	if cooldown <= 0 {
		cooldown = time.Second
	}
	maxWidth := opts.MaxWidth
	if maxWidth <= 0 {
		maxWidth = 640
	}
	return &Analyzer{
		camera:   opts.Camera,
		logger:   opts.Logger,
		cooldown: cooldown,
		maxWidth: maxWidth,
		now:      time.Now,
	}
}

// Capture grabs one frame, rate-limited by the cooldown. Returns nil
// (no error) when called within the cooldown window or when no camera
// is configured; device failures are logged and also yield nil.
func (a *Analyzer) Capture(ctx context.Context) []byte {
	if a.camera == nil {
		return nil
	}

	a.mu.Lock()
	now := a.now()
	if now.Sub(a.lastCapture) < a.cooldown {
		a.mu.Unlock()
		a.logger.DebugTag("VISION", "capture skipped, cooldown active")
		return nil
	}
	a.lastCapture = now
	a.mu.Unlock()

	data, err := a.camera.Capture(ctx)
	if err != nil {
		a.logger.WarnTag("VISION", "capture failed: %v", err)
		return nil
	}
	return data
}

// Analyze decodes the image and derives coarse attributes: dimensions,
// format, mean brightness and a light/dark classification. Decode
// failures return an empty map.
func (a *Analyzer) Analyze(data []byte) map[string]any {
	attrs := map[string]any{}
	if len(data) == 0 {
		return attrs
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		a.logger.WarnTag("VISION", "image decode failed: %v", err)
		return attrs
	}

	bounds := img.Bounds()
	attrs["format"] = format
	attrs["width"] = bounds.Dx()
	attrs["height"] = bounds.Dy()

	scaled := a.downscale(img)
	brightness := meanBrightness(scaled)
	attrs["brightness"] = brightness
	if brightness >= 0.5 {
		attrs["lighting"] = "light"
	} else {
		attrs["lighting"] = "dark"
	}

	return attrs
}

// downscale caps the working image at maxWidth so brightness sampling
// stays cheap for large camera frames.
func (a *Analyzer) downscale(img image.Image) image.Image {
	bounds := img.Bounds()
	if bounds.Dx() <= a.maxWidth {
		return img
	}
	ratio := float64(a.maxWidth) / float64(bounds.Dx())
	h := int(float64(bounds.Dy()) * ratio)
	dst := image.NewRGBA(image.Rect(0, 0, a.maxWidth, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

// meanBrightness averages luma over the image, normalized to 0.0-1.0.
func meanBrightness(img image.Image) float64 {
	bounds := img.Bounds()
	if bounds.Empty() {
		return 0
	}

	var sum float64
	var count int
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			// ITU-R BT.601 luma on 16-bit channels.
			luma := 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
			sum += luma / 65535.0
			count++
		}
	}
	return sum / float64(count)
}
