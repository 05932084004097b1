// Package cv provides classical computer-vision analysis of floor plan
// images via an external detection service.
//
// The detector is the second rung of the dimension recovery ladder: when its
// room detections are usable they outrank vision-language answers, because
// bounding boxes give measured geometry instead of narrated geometry.
package cv

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// ErrNotConfigured is returned when no detection endpoint is configured.
var ErrNotConfigured = errors.New("cv detector not configured")

// Detection is a single detected object in a floor plan image.
type Detection struct {
	// Class is the detected object class: "room", "door", "window", "wall".
	Class string `json:"class"`

	// Label is an optional human label for the object, e.g. "Kitchen".
	Label string `json:"label,omitempty"`

	// BBox is the bounding box as [x1, y1, x2, y2] in pixels.
	BBox [4]float64 `json:"bbox"`

	// AreaSqft is the real-world area when the service resolved the drawing
	// scale; zero otherwise.
	AreaSqft float64 `json:"area_sqft,omitempty"`

	// Confidence is the model confidence in [0, 1].
	Confidence float64 `json:"confidence"`
}

// Detector finds structural elements in a floor plan image.
type Detector interface {
	Detect(ctx context.Context, imagePath string) ([]Detection, error)
}

// Config holds detector configuration.
type Config struct {
	Endpoint string
	Timeout  time.Duration
}

// httpDetector posts images to a YOLO-style serving endpoint and decodes the
// returned detections.
type httpDetector struct {
	endpoint   string
	httpClient *http.Client
}

// NewDetector creates a detector backed by an HTTP detection service.
func NewDetector(cfg Config) (Detector, error) {
	if cfg.Endpoint == "" {
		return nil, ErrNotConfigured
	}

	timeout := 120 * time.Second
	if cfg.Timeout > 0 {
		timeout = cfg.Timeout
	}

	return &httpDetector{
		endpoint: cfg.Endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// detectRequest represents the request format for the detection service.
type detectRequest struct {
	Image string `json:"image"` // base64-encoded image bytes
}

// detectResponse represents the response from the detection service.
type detectResponse struct {
	Detections []Detection `json:"detections"`
}

// Detect runs detection on the image at imagePath.
func (d *httpDetector) Detect(ctx context.Context, imagePath string) ([]Detection, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read image %s: %w", imagePath, err)
	}

	jsonData, err := json.Marshal(detectRequest{
		Image: base64.StdEncoding.EncodeToString(data),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", d.endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("detection request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("detection service error (%d): %s", resp.StatusCode, string(body))
	}

	var dr detectResponse
	if err := json.Unmarshal(body, &dr); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return dr.Detections, nil
}

// CountClass returns the number of detections with the given class
// (case-insensitive).
func CountClass(detections []Detection, class string) int {
	n := 0
	for _, det := range detections {
		if strings.EqualFold(det.Class, class) {
			n++
		}
	}
	return n
}

// FilterClass returns the detections with the given class (case-insensitive).
func FilterClass(detections []Detection, class string) []Detection {
	var out []Detection
	for _, det := range detections {
		if strings.EqualFold(det.Class, class) {
			out = append(out, det)
		}
	}
	return out
}

// Ensure interfaces are implemented at compile time.
var _ Detector = (*httpDetector)(nil)
