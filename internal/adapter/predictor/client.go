// Package predictor talks to an external model-serving endpoint that hosts
// the learned run-up sequence model.
package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/couchcryptid/aegis-cortex/internal/domain"
	"github.com/couchcryptid/aegis-cortex/internal/forecast"
)

// Client implements forecast.Predictor over HTTP. The request carries one
// batch of the scaled window; the response carries one row of normalized
// per-horizon run-up values.
type Client struct {
	endpoint   string
	httpClient *http.Client
	scaler     *Scaler
	logger     *slog.Logger
}

// NewClient creates a predictor client. scaler may be nil to send raw
// features. The per-call deadline comes from the caller's context.
func NewClient(endpoint string, scaler *Scaler, logger *slog.Logger) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid predictor url %q", endpoint)
	}
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{},
		scaler:     scaler,
		logger:     logger,
	}, nil
}

// Device names the remote host serving inference.
func (c *Client) Device() string {
	u, _ := url.Parse(c.endpoint)
	return "remote (" + u.Host + ")"
}

// ScalerLoaded reports whether features are normalized before sending.
func (c *Client) ScalerLoaded() bool { return c.scaler != nil }

// Predict sends window and returns the model's raw output row.
func (c *Client) Predict(ctx context.Context, window []domain.OceanState) ([]float64, error) {
	rows := make([][]float64, len(window))
	for i, s := range window {
		rows[i] = c.scaler.Transform(s.Features())
	}

	body, err := json.Marshal(request{Instances: [][][]float64{rows}})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("predict request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusServiceUnavailable, http.StatusNotFound:
		return nil, fmt.Errorf("%w: status %d", forecast.ErrPredictorUnavailable, resp.StatusCode)
	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("predictor error: status %d: %s", resp.StatusCode, msg)
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Predictions) == 0 {
		return nil, fmt.Errorf("predictor returned no predictions")
	}
	return out.Predictions[0], nil
}

// Model-serving wire types.

type request struct {
	Instances [][][]float64 `json:"instances"` // [batch][time][feature]
}

type response struct {
	Predictions [][]float64 `json:"predictions"`
}
