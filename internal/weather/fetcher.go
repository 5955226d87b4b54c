package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/safeascent/safeascent/internal/cache"
	"github.com/safeascent/safeascent/internal/faults"
	"github.com/safeascent/safeascent/internal/metrics"
	"github.com/safeascent/safeascent/internal/types"
	"github.com/safeascent/safeascent/pkg/config"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	defaultForecastURL = "https://api.open-meteo.com/v1/forecast"
	defaultArchiveURL  = "https://archive-api.open-meteo.com/v1/archive"

	// forecastTTL and statsTTL are established cache contracts.
	forecastTTL = 6 * time.Hour
	statsTTL    = 24 * time.Hour

	// maxRetries retries on 429 and 5xx before giving up; backoff doubles
	// from initialBackoff between attempts.
	maxRetries     = 2
	initialBackoff = 250 * time.Millisecond

	// forecastWindowDays is how far ahead the provider serves daily forecasts.
	forecastWindowDays = 6
)

// ErrDateOutOfRange marks a target date the forecast provider cannot serve.
// Callers opting into graceful degradation substitute a neutral pattern.
var ErrDateOutOfRange = errors.New("target date outside the supported forecast window")

// Fetcher retrieves weather windows from the forecast provider. Concurrent
// requests for the same cache key collapse into one upstream call; distinct
// keys proceed in parallel.
type Fetcher struct {
	forecastURL string
	archiveURL  string
	httpClient  *http.Client
	cache       *cache.Cache
	group       singleflight.Group
	logger      *zap.SugaredLogger
	metrics     *metrics.Metrics
	now         func() time.Time
}

// NewFetcher creates a fetcher over the configured provider endpoints,
// falling back to the public Open-Meteo API when none are set.
func NewFetcher(cfg config.WeatherProviderData, c *cache.Cache, logger *zap.SugaredLogger, m *metrics.Metrics) *Fetcher {
	forecastURL := cfg.BaseURL
	if forecastURL == "" {
		forecastURL = defaultForecastURL
	}
	archiveURL := cfg.ArchiveURL
	if archiveURL == "" {
		archiveURL = defaultArchiveURL
	}

	return &Fetcher{
		forecastURL: forecastURL,
		archiveURL:  archiveURL,
		httpClient:  &http.Client{Timeout: 5 * time.Second},
		cache:       c,
		logger:      logger,
		metrics:     m,
		now:         time.Now,
	}
}

// FetchForecast returns the 7-day weather window ending at date. The window
// is cached for six hours under a key rounded to two decimal places, roughly
// one kilometer, which is well inside the smallest spatial-kernel bandwidth.
func (f *Fetcher) FetchForecast(ctx context.Context, lat, lon float64, date time.Time) (types.WeatherPattern, error) {
	today := midnight(f.now().UTC())
	target := midnight(date)
	if target.Before(today) || target.After(today.AddDate(0, 0, forecastWindowDays)) {
		return types.WeatherPattern{}, fmt.Errorf("%w: %s", ErrDateOutOfRange, target.Format("2006-01-02"))
	}

	key := fmt.Sprintf("forecast:%.2f:%.2f:%s", lat, lon, target.Format("2006-01-02"))

	var cached types.WeatherPattern
	if f.cache.GetJSON(ctx, key, &cached) {
		return cached, nil
	}

	v, err, _ := f.group.Do(key, func() (any, error) {
		pattern, err := f.fetchForecastUpstream(ctx, lat, lon, target)
		if err != nil {
			return nil, err
		}
		f.cache.SetJSON(ctx, key, pattern, forecastTTL)
		return pattern, nil
	})
	if err != nil {
		return types.WeatherPattern{}, err
	}
	return v.(types.WeatherPattern), nil
}

// ForecastOrNeutral is the graceful-degradation variant: provider failures
// and out-of-range dates yield an all-absent pattern instead of an error. The
// second return value reports that degradation happened.
func (f *Fetcher) ForecastOrNeutral(ctx context.Context, lat, lon float64, date time.Time) (types.WeatherPattern, bool) {
	pattern, err := f.FetchForecast(ctx, lat, lon, date)
	if err == nil {
		return pattern, false
	}
	if ctx.Err() != nil {
		// Deadline expiry is not a degradation case; the caller surfaces it.
		return types.NeutralPattern(), true
	}
	f.logger.Warnf("route forecast unavailable, proceeding with neutral pattern: %v", err)
	f.metrics.RecordDegraded()
	return types.NeutralPattern(), true
}

func (f *Fetcher) fetchForecastUpstream(ctx context.Context, lat, lon float64, target time.Time) (types.WeatherPattern, error) {
	v := url.Values{}
	v.Set("latitude", fmt.Sprintf("%.4f", lat))
	v.Set("longitude", fmt.Sprintf("%.4f", lon))
	v.Set("daily", dailyVariables)
	v.Set("start_date", target.AddDate(0, 0, -6).Format("2006-01-02"))
	v.Set("end_date", target.Format("2006-01-02"))
	v.Set("timezone", "UTC")

	var resp openMeteoResponse
	if err := f.getJSON(ctx, "forecast", f.forecastURL+"?"+v.Encode(), &resp); err != nil {
		return types.WeatherPattern{}, err
	}
	if resp.Error {
		return types.WeatherPattern{}, faults.UpstreamUnavailable(
			fmt.Sprintf("weather provider rejected the request: %s", resp.Reason), nil)
	}

	pattern, err := resp.toPattern(target)
	if err != nil {
		return types.WeatherPattern{}, faults.UpstreamUnavailable("weather provider returned malformed data", err)
	}
	return pattern, nil
}

// getJSON performs a GET with retry on 429 and 5xx, decoding the body into
// dst. After the retry budget is exhausted the error carries the
// UpstreamUnavailable kind.
func (f *Fetcher) getJSON(ctx context.Context, provider, requestURL string, dst any) error {
	var lastErr error
	backoff := initialBackoff

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			f.metrics.RecordUpstream(provider, "retry")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff *= 2
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
		if err != nil {
			return fmt.Errorf("error creating weather provider request: %v", err)
		}

		resp, err := f.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			f.logger.Debugf("%s request failed (attempt %d): %v", provider, attempt+1, err)
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("weather provider returned status %s", resp.Status)
			f.logger.Debugf("%s request got %s (attempt %d)", provider, resp.Status, attempt+1)
			continue
		}
		if readErr != nil {
			lastErr = fmt.Errorf("error reading provider response: %v", readErr)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			f.metrics.RecordUpstream(provider, "error")
			return faults.UpstreamUnavailable(
				fmt.Sprintf("weather provider returned status %s", resp.Status), nil)
		}

		if err := json.Unmarshal(body, dst); err != nil {
			f.metrics.RecordUpstream(provider, "error")
			return faults.UpstreamUnavailable("unable to decode weather provider response", err)
		}
		f.metrics.RecordUpstream(provider, "ok")
		return nil
	}

	f.metrics.RecordUpstream(provider, "exhausted")
	return faults.UpstreamUnavailable("weather provider unreachable after retries", lastErr)
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
