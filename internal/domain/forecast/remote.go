package forecast

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// RemoteForecaster delegates to an HTTP forecasting service.
type RemoteForecaster struct {
	url        string
	httpClient *http.Client
}

func NewRemoteForecaster(url string, timeout time.Duration) *RemoteForecaster {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RemoteForecaster{
		url:        strings.TrimRight(url, "/") + "/forecast",
		httpClient: &http.Client{Timeout: timeout},
	}
}

type remotePoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

type remoteRequest struct {
	History     []remotePoint `json:"history"`
	Horizon     int           `json:"horizon"`
	Granularity Granularity   `json:"granularity"`
}

type remotePrediction struct {
	Period string  `json:"period"`
	Value  float64 `json:"value"`
	Lower  float64 `json:"lower"`
	Upper  float64 `json:"upper"`
}

type remoteResponse struct {
	Predictions []remotePrediction `json:"predictions"`
}

func (f *RemoteForecaster) Forecast(ctx context.Context, history []Point, horizon int, g Granularity) ([]Prediction, error) {
	body := remoteRequest{Horizon: horizon, Granularity: g}
	for _, p := range history {
		body.History = append(body.History, remotePoint{Date: p.Date.Format(dateLayout), Value: p.Cases})
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrForecaster, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: status %d: %s", ErrForecaster, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrForecaster, err)
	}
	if len(out.Predictions) != horizon {
		return nil, fmt.Errorf("%w: expected %d predictions, got %d", ErrForecaster, horizon, len(out.Predictions))
	}

	preds := make([]Prediction, len(out.Predictions))
	for i, rp := range out.Predictions {
		t, err := time.Parse(dateLayout, rp.Period)
		if err != nil {
			return nil, fmt.Errorf("%w: bad period %q", ErrForecaster, rp.Period)
		}
		preds[i] = Prediction{Period: t, Value: rp.Value, Lower: rp.Lower, Upper: rp.Upper}
	}
	return preds, nil
}
