// Package prediction orchestrates a safety-score request end to end:
// validate, resolve elevation, load and filter candidates, gather weather,
// score, assemble. All I/O happens before scoring begins; the scoring loop
// itself never suspends.
package prediction

import (
	"context"
	"fmt"
	"time"

	"github.com/safeascent/safeascent/internal/cache"
	"github.com/safeascent/safeascent/internal/faults"
	"github.com/safeascent/safeascent/internal/kernels"
	"github.com/safeascent/safeascent/internal/metrics"
	"github.com/safeascent/safeascent/internal/scoring"
	"github.com/safeascent/safeascent/internal/types"
	"github.com/safeascent/safeascent/pkg/config"
	"github.com/safeascent/safeascent/pkg/geo"
	"go.uber.org/zap"
)

// scoringBudget is carved off the request deadline before upstream calls so
// a slow provider cannot starve the CPU-bound scoring phase.
const scoringBudget = 200 * time.Millisecond

// predictionTTL bounds the optional result cache.
const predictionTTL = time.Hour

// AccidentSource supplies the candidate corpus and its weather windows.
type AccidentSource interface {
	LoadAll(ctx context.Context) ([]types.AccidentRecord, error)
	AttachWeatherWindows(ctx context.Context, accidents []types.AccidentRecord) error
}

// WeatherSource supplies route weather and climatological normalization.
type WeatherSource interface {
	ForecastOrNeutral(ctx context.Context, lat, lon float64, date time.Time) (types.WeatherPattern, bool)
	FetchStatistics(ctx context.Context, lat, lon float64, elevBucket int, season types.Season) (types.ClimateStats, bool)
}

// ElevationSource resolves terrain elevation; a nil result is acceptable.
type ElevationSource interface {
	Resolve(ctx context.Context, lat, lon float64) *float64
}

// elevationBucketMeters quantizes elevation for the stats cache key.
const elevationBucketMeters = 100

// Engine runs predictions. It owns no per-request mutable state: everything a
// request touches is either on its stack or behind the cache's get/set
// interface.
type Engine struct {
	store      AccidentSource
	weather    WeatherSource
	elevations ElevationSource
	cache      *cache.Cache
	aggregator scoring.Aggregator
	params     *config.Params
	set        *kernels.Set
	metrics    *metrics.Metrics
	logger     *zap.SugaredLogger

	cachePredictions bool
}

// NewEngine wires an orchestrator from its collaborators.
func NewEngine(store AccidentSource, weatherSrc WeatherSource, elevations ElevationSource,
	c *cache.Cache, set *kernels.Set, m *metrics.Metrics, logger *zap.SugaredLogger,
	cachePredictions bool) *Engine {
	return &Engine{
		store:            store,
		weather:          weatherSrc,
		elevations:       elevations,
		cache:            c,
		aggregator:       scoring.New(set, logger),
		params:           set.Params(),
		set:              set,
		metrics:          m,
		logger:           logger,
		cachePredictions: cachePredictions,
	}
}

// Aggregator exposes the live scoring implementation; the status endpoint
// reports it.
func (e *Engine) Aggregator() scoring.AggregatorType {
	return e.aggregator.Type()
}

// Predict runs the full pipeline for one validated query.
func (e *Engine) Predict(ctx context.Context, q types.RouteQuery) (*types.Prediction, error) {
	start := time.Now()

	if err := validateQuery(&q); err != nil {
		e.metrics.ObservePrediction("invalid", time.Since(start), -1)
		return nil, err
	}

	fingerprint := e.fingerprint(&q)
	if e.cachePredictions {
		var cached types.Prediction
		if e.cache.GetJSON(ctx, fingerprint, &cached) {
			e.metrics.ObservePrediction("cached", time.Since(start), -1)
			return &cached, nil
		}
	}

	// The I/O phase runs under a tighter deadline so scoring always has
	// headroom before the caller's deadline.
	ioCtx := ctx
	if deadline, ok := ctx.Deadline(); ok {
		var cancel context.CancelFunc
		ioCtx, cancel = context.WithDeadline(ctx, deadline.Add(-scoringBudget))
		defer cancel()
	}

	if q.ElevationMeters == nil {
		q.ElevationMeters = e.elevations.Resolve(ioCtx, q.Latitude, q.Longitude)
	}

	accidents, err := e.loadAccidents(ioCtx)
	if err != nil {
		e.metrics.ObservePrediction("error", time.Since(start), -1)
		return nil, err
	}

	if err := checkpoint(ctx); err != nil {
		return nil, err
	}

	candidates := e.filterCandidates(&q, accidents)
	e.logger.Debugf("candidate filter kept %d of %d accidents", len(candidates), len(accidents))

	if err := checkpoint(ctx); err != nil {
		return nil, err
	}

	routeWeather, weatherDegraded := e.weather.ForecastOrNeutral(ioCtx, q.Latitude, q.Longitude, q.TargetDate)
	if err := checkpoint(ctx); err != nil {
		return nil, err
	}

	stats, statsDegraded := e.weather.FetchStatistics(ioCtx, q.Latitude, q.Longitude,
		bucketElevation(q.ElevationMeters), types.SeasonOf(q.TargetDate))
	if err := checkpoint(ctx); err != nil {
		return nil, err
	}

	if err := e.attachWindows(ioCtx, candidates); err != nil {
		e.metrics.ObservePrediction("error", time.Since(start), len(candidates))
		return nil, err
	}

	if err := checkpoint(ctx); err != nil {
		return nil, err
	}

	// CPU-bound zone: all inputs resolved, no suspension from here on.
	result := e.aggregator.Aggregate(scoring.Inputs{
		Query:        q,
		Accidents:    candidates,
		RouteWeather: routeWeather,
		Stats:        stats,
	})

	degraded := weatherDegraded || statsDegraded
	if degraded {
		e.metrics.RecordDegraded()
	}

	prediction := &types.Prediction{
		RiskScore:       result.RiskScore,
		Confidence:      result.Confidence,
		NumContributing: result.NumContributing,
		TopContributors: result.TopContributors,
		RouteType:       q.RouteType,
		TargetDate:      q.TargetDate,
		Vectorized:      e.aggregator.Type() == scoring.AggregatorVectorized,
		Degraded:        degraded,
	}

	if e.cachePredictions && !degraded {
		e.cache.SetJSON(ctx, fingerprint, prediction, predictionTTL)
	}

	e.metrics.ObservePrediction("ok", time.Since(start), len(candidates))
	return prediction, nil
}

// loadAccidents loads the corpus, retrying once when the pool is exhausted.
func (e *Engine) loadAccidents(ctx context.Context) ([]types.AccidentRecord, error) {
	accidents, err := e.store.LoadAll(ctx)
	if err != nil && faults.IsKind(err, faults.KindResourceUnavailable) {
		e.logger.Warnf("accident load hit resource exhaustion, retrying once: %v", err)
		accidents, err = e.store.LoadAll(ctx)
	}
	return accidents, err
}

// attachWindows bulk-loads weather windows, retrying once on exhaustion.
func (e *Engine) attachWindows(ctx context.Context, candidates []types.AccidentRecord) error {
	err := e.store.AttachWeatherWindows(ctx, candidates)
	if err != nil && faults.IsKind(err, faults.KindResourceUnavailable) {
		e.logger.Warnf("weather window load hit resource exhaustion, retrying once: %v", err)
		err = e.store.AttachWeatherWindows(ctx, candidates)
	}
	return err
}

// filterCandidates applies the candidate rule: keep an accident when it lies
// within the local radius or its route type is strongly affine to the planned
// one. Both bounds are inclusive. The filter is stable: input order survives.
func (e *Engine) filterCandidates(q *types.RouteQuery, accidents []types.AccidentRecord) []types.AccidentRecord {
	candidates := make([]types.AccidentRecord, 0, len(accidents))
	for i := range accidents {
		acc := &accidents[i]
		d := geo.DistanceKm(q.Latitude, q.Longitude, acc.Latitude, acc.Longitude)
		r := e.set.RouteAffinity(q.RouteType, acc.RouteType)
		if d <= e.params.LocalRadiusKm || r >= e.params.RouteAffinityThreshold {
			candidates = append(candidates, *acc)
		}
	}
	return candidates
}

// fingerprint is the canonical request key for the optional result cache.
func (e *Engine) fingerprint(q *types.RouteQuery) string {
	elev := -1
	if q.ElevationMeters != nil {
		elev = int(*q.ElevationMeters)
	}
	return fmt.Sprintf("prediction:%.4f:%.4f:%d:%s:%s",
		q.Latitude, q.Longitude, elev, q.RouteType, q.TargetDate.Format("2006-01-02"))
}

// validateQuery enforces the query invariants. The HTTP layer validates the
// raw payload as well; this guards programmatic callers.
func validateQuery(q *types.RouteQuery) error {
	var fields []faults.FieldError
	if q.Latitude < -90 || q.Latitude > 90 {
		fields = append(fields, faults.FieldError{Field: "latitude", Message: "must be between -90 and 90"})
	}
	if q.Longitude < -180 || q.Longitude > 180 {
		fields = append(fields, faults.FieldError{Field: "longitude", Message: "must be between -180 and 180"})
	}
	if _, ok := types.ParseRouteType(string(q.RouteType)); !ok {
		fields = append(fields, faults.FieldError{Field: "route_type", Message: "unrecognized route type"})
	}
	if q.TargetDate.IsZero() {
		fields = append(fields, faults.FieldError{Field: "target_date", Message: "required"})
	}
	if len(fields) > 0 {
		return faults.InvalidInput("invalid route query", fields...)
	}
	return nil
}

// checkpoint is a cancellation point between pipeline stages: an expired
// deadline surfaces as Timeout, a caller cancellation propagates as is.
func checkpoint(ctx context.Context) error {
	select {
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return faults.Timeout("request deadline expired", ctx.Err())
		}
		return ctx.Err()
	default:
		return nil
	}
}

func bucketElevation(elev *float64) int {
	if elev == nil {
		return 0
	}
	return int(*elev) / elevationBucketMeters
}
