package detect

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPDetector consumes a detection service over HTTP. The service
// receives a screenshot plus the class vocabulary and answers with
// labeled, scored bounding boxes.
type HTTPDetector struct {
	endpoint string
	client   *http.Client
}

// NewHTTPDetector creates a detector client with its own timeout,
// independent of per-action timeouts.
func NewHTTPDetector(endpoint string, timeout time.Duration) *HTTPDetector {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPDetector{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type detectRequest struct {
	Image   string   `json:"image"`
	Classes []string `json:"classes"`
}

type detectResponse struct {
	Detections []Detection `json:"detections"`
}

// Detect submits the screenshot and vocabulary, returning zero or more
// detections.
func (d *HTTPDetector) Detect(ctx context.Context, image []byte, classes []string) ([]Detection, error) {
	payload, err := json.Marshal(detectRequest{
		Image:   base64.StdEncoding.EncodeToString(image),
		Classes: classes,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode detection request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build detection request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("detection service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("detection service returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var decoded detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode detection response: %w", err)
	}

	return decoded.Detections, nil
}
