// Package elevation resolves route elevations through a point-lookup
// provider. Resolution failures are never fatal: a route without an elevation
// simply scores the neutral elevation weight.
package elevation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/safeascent/safeascent/internal/metrics"
	"github.com/safeascent/safeascent/pkg/config"
	"go.uber.org/zap"
)

const defaultBaseURL = "https://api.open-meteo.com/v1/elevation"

// Resolver looks up terrain elevation for a coordinate pair.
type Resolver struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.SugaredLogger
	metrics    *metrics.Metrics
}

// NewResolver creates a resolver over the configured provider endpoint.
func NewResolver(cfg config.ElevationProviderData, logger *zap.SugaredLogger, m *metrics.Metrics) *Resolver {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Resolver{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		logger:     logger,
		metrics:    m,
	}
}

type elevationResponse struct {
	Elevation []float64 `json:"elevation"`
}

// Resolve returns the terrain elevation in meters for (lat, lon), or nil when
// the provider cannot supply one. The caller proceeds either way.
func (r *Resolver) Resolve(ctx context.Context, lat, lon float64) *float64 {
	v := url.Values{}
	v.Set("latitude", fmt.Sprintf("%.4f", lat))
	v.Set("longitude", fmt.Sprintf("%.4f", lon))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"?"+v.Encode(), nil)
	if err != nil {
		r.logger.Warnf("error creating elevation request: %v", err)
		return nil
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		r.logger.Warnf("elevation lookup failed, proceeding without: %v", err)
		r.metrics.RecordUpstream("elevation", "error")
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		r.logger.Warnf("elevation provider returned status %s, proceeding without", resp.Status)
		r.metrics.RecordUpstream("elevation", "error")
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		r.logger.Warnf("error reading elevation response: %v", err)
		r.metrics.RecordUpstream("elevation", "error")
		return nil
	}

	var parsed elevationResponse
	if err := json.Unmarshal(body, &parsed); err != nil || len(parsed.Elevation) == 0 {
		r.logger.Warnf("unable to decode elevation response, proceeding without: %v", err)
		r.metrics.RecordUpstream("elevation", "error")
		return nil
	}

	r.metrics.RecordUpstream("elevation", "ok")
	return &parsed.Elevation[0]
}
