package mlclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/edforecast/edforecast/internal/platform/metrics"
)

// ErrNotConfigured is returned by a classifier that has no inference endpoint.
var ErrNotConfigured = errors.New("classifier not configured")

// Classifier predicts the ED department a patient will be streamed to.
type Classifier interface {
	Classify(ctx context.Context, features FeatureVector) (string, error)
}

// Option configures an HTTPClassifier.
type Option func(*HTTPClassifier)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(h *HTTPClassifier) { h.httpClient = c }
}

// HTTPClassifier posts encoded features to an inference service and reads
// back {"label": "..."}.
type HTTPClassifier struct {
	url        string
	httpClient *http.Client
}

func NewHTTPClassifier(url string, opts ...Option) *HTTPClassifier {
	h := &HTTPClassifier{
		url: url,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

type classifyResponse struct {
	Label string `json:"label"`
}

func (h *HTTPClassifier) Classify(ctx context.Context, features FeatureVector) (label string, err error) {
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		metrics.Classifications.WithLabelValues(outcome).Inc()
	}()

	if h == nil || h.url == "" {
		return "", ErrNotConfigured
	}
	payload, err := json.Marshal(features)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("classifier request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("classifier returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var out classifyResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return "", fmt.Errorf("decode classifier response: %w", err)
	}
	if out.Label == "" {
		return "", errors.New("classifier returned an empty label")
	}
	return out.Label, nil
}
