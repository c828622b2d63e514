// Package geo resolves the capture station's coordinates once per session.
//
// The coordinates are provenance metadata only: a failed lookup is logged and
// the archived records simply omit latitude/longitude.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// Coordinates is a captured-once latitude/longitude pair.
type Coordinates struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

// Provider is the single-shot coordinate lookup consumed at startup.
type Provider interface {
	Locate(ctx context.Context) (Coordinates, error)
}

// IPClient implements [Provider] over an ip-api.com style JSON endpoint:
// {"status":"success","lat":-6.2,"lon":106.8}.
type IPClient struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewIPClient returns a provider for the given endpoint URL.
// A nil httpClient falls back to http.DefaultClient.
func NewIPClient(url string, httpClient *http.Client, logger *slog.Logger) *IPClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &IPClient{url: url, httpClient: httpClient, logger: logger}
}

type ipResponse struct {
	Status string `json:"status"`
	Coordinates
}

// Locate performs the single-shot lookup.
func (c *IPClient) Locate(ctx context.Context) (Coordinates, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return Coordinates{}, fmt.Errorf("geo: build request: %w", err)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return Coordinates{}, fmt.Errorf("geo: lookup: %w", err)
	}
	defer func() { _ = response.Body.Close() }()

	if response.StatusCode != http.StatusOK {
		return Coordinates{}, fmt.Errorf("geo: lookup returned HTTP %d", response.StatusCode)
	}

	var decoded ipResponse
	if err := json.NewDecoder(response.Body).Decode(&decoded); err != nil {
		return Coordinates{}, fmt.Errorf("geo: decode answer: %w", err)
	}

	if decoded.Status != "success" {
		return Coordinates{}, fmt.Errorf("geo: lookup status %q", decoded.Status)
	}

	c.logger.Info("geolocation_resolved",
		slog.Float64("lat", decoded.Latitude),
		slog.Float64("lon", decoded.Longitude),
	)
	return decoded.Coordinates, nil
}
