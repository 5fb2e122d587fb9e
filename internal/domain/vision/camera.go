package vision

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"voice-assistant-go/internal/platform/errors"
)

// Camera captures a single frame as encoded image bytes.
type Camera interface {
	Capture(ctx context.Context) ([]byte, error)
}

// SnapshotCamera fetches one JPEG frame from an IP camera's snapshot
// endpoint.
type SnapshotCamera struct {
	url    string
	client *http.Client
}

// NewSnapshotCamera builds a camera for the given snapshot URL.
func NewSnapshotCamera(url string, timeout time.Duration) *SnapshotCamera {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &SnapshotCamera{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Capture performs one snapshot request.
func (c *SnapshotCamera) Capture(ctx context.Context) ([]byte, error) {
	if c.url == "" {
		return nil, errors.New(errors.KindDevice, "camera.capture", "no snapshot url configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, errors.Wrap(errors.KindDevice, "camera.capture", "build snapshot request", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(errors.KindDevice, "camera.capture", "snapshot request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.New(errors.KindDevice, "camera.capture",
			fmt.Sprintf("snapshot endpoint returned %d", resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, errors.Wrap(errors.KindDevice, "camera.capture", "read snapshot body", err)
	}
	return data, nil
}
