package detect

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const defaultDetectorURL = "http://localhost:8500"

// HTTPDetector calls an object-detection server over HTTP.
type HTTPDetector struct {
	httpAdapter
}

// NewHTTPDetector creates a detector client for the given server URL.
func NewHTTPDetector(baseURL string) *HTTPDetector {
	return &HTTPDetector{httpAdapter{
		baseURL: trimBaseURL(baseURL, defaultDetectorURL),
		client:  &http.Client{},
	}}
}

// detectResponse represents the response from the detection server
type detectResponse struct {
	Detections []Detection `json:"detections"`
	Model      string      `json:"model"`
}

// Detect posts the image to the detection server and returns raw detections
// with pixel-space bounding boxes.
func (d *HTTPDetector) Detect(ctx context.Context, imageData []byte) ([]Detection, error) {
	body, err := d.postMultipartImage(ctx, "/detect", imageData)
	if err != nil {
		return nil, err
	}

	var resp detectResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return resp.Detections, nil
}
