// Package scoring fuses the per-accident kernel weights and weather
// similarity into a bounded risk score. Two implementations of the same
// contract exist behind a selector: a scalar reference and a vectorized hot
// path. Their outputs must agree to within 1e-6; a shared test suite holds
// both to it.
package scoring

import (
	"math"

	"github.com/safeascent/safeascent/internal/kernels"
	"github.com/safeascent/safeascent/internal/types"
	"github.com/safeascent/safeascent/internal/weather"
	"github.com/safeascent/safeascent/pkg/config"
	"github.com/safeascent/safeascent/pkg/geo"
	"go.uber.org/zap"
)

// Inputs is the fully-resolved working set of one scoring pass. Everything
// I/O-bound happens before an Inputs is built; aggregation itself runs to
// completion without suspension.
type Inputs struct {
	Query        types.RouteQuery
	Accidents    []types.AccidentRecord
	RouteWeather types.WeatherPattern
	Stats        types.ClimateStats
}

// Result is the outcome of a scoring pass. Influences holds one record per
// candidate in input order; excluded accidents carry a zero total.
type Result struct {
	RiskScore       float64
	Confidence      float64
	NumContributing int
	TopContributors []types.Contributor
	Influences      []types.Influence

	// Dropped counts accidents excluded because a kernel produced NaN.
	Dropped int
}

// AggregatorType identifies the scoring implementation.
type AggregatorType string

const (
	// AggregatorScalar is the straight-line reference implementation.
	AggregatorScalar AggregatorType = "scalar"

	// AggregatorVectorized fuses weight columns with gonum and is the hot path.
	AggregatorVectorized AggregatorType = "vectorized"
)

// Aggregator scores a candidate set against a route query.
type Aggregator interface {
	Aggregate(in Inputs) Result
	Type() AggregatorType
}

// New selects the implementation named by the parameter set.
func New(set *kernels.Set, logger *zap.SugaredLogger) Aggregator {
	if set.Params().Vectorized {
		return NewVectorized(set, logger)
	}
	return NewScalar(set, logger)
}

// weigh computes every kernel weight and the weather similarity for one
// accident. The returned Influence carries a zero total; the caller applies
// the similarity gate and amplifier.
func weigh(set *kernels.Set, in *Inputs, acc *types.AccidentRecord) types.Influence {
	p := set.Params()
	q := &in.Query

	distance := geo.DistanceKm(q.Latitude, q.Longitude, acc.Latitude, acc.Longitude)
	var accElev *float64
	if acc.ElevationMeters != nil {
		accElev = acc.ElevationMeters
	}

	sim, _ := weather.Similarity(&in.RouteWeather, acc.Weather, in.Stats, p.Weights)

	return types.Influence{
		AccidentID:        acc.ID,
		Severity:          acc.Severity,
		DistanceKm:        distance,
		DaysElapsed:       kernels.DaysElapsed(acc.AccidentDate, q.TargetDate),
		SpatialWeight:     set.Spatial(distance, q.RouteType),
		TemporalWeight:    set.Temporal(acc.AccidentDate, q.TargetDate, q.RouteType),
		ElevationWeight:   set.Elevation(accElev, q.ElevationMeters, q.RouteType),
		RouteTypeWeight:   set.RouteAffinity(q.RouteType, acc.RouteType),
		SeverityWeight:    set.Severity(acc.Severity),
		WeatherSimilarity: sim,
	}
}

// hasNaN reports whether any kernel output of an influence is NaN, which
// marks an internal inconsistency: the accident is dropped and logged, never
// surfaced as an error.
func hasNaN(inf *types.Influence) bool {
	return math.IsNaN(inf.SpatialWeight) || math.IsNaN(inf.TemporalWeight) ||
		math.IsNaN(inf.ElevationWeight) || math.IsNaN(inf.RouteTypeWeight) ||
		math.IsNaN(inf.SeverityWeight) || math.IsNaN(inf.WeatherSimilarity)
}

// finish turns a scored influence slice into the final result: clamp the
// normalized sum onto [0,100], derive confidence, and rank contributors.
func finish(influences []types.Influence, p *config.Params, dropped int) Result {
	raw := 0.0
	contributing := 0
	for i := range influences {
		raw += influences[i].TotalInfluence
		if influences[i].TotalInfluence > 0 {
			contributing++
		}
	}

	score := raw * p.NormalizationK
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}

	return Result{
		RiskScore:       score,
		Confidence:      confidence(influences, contributing),
		NumContributing: contributing,
		TopContributors: topContributors(influences, p.MaxContributors),
		Influences:      influences,
		Dropped:         dropped,
	}
}
