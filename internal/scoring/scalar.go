package scoring

import (
	"math"

	"github.com/safeascent/safeascent/internal/kernels"
	"github.com/safeascent/safeascent/internal/types"
	"go.uber.org/zap"
)

// Scalar is the straight-line reference implementation: one pass over the
// candidate set, one accident at a time. It exists for tests and debugging;
// the vectorized path must match it to within 1e-6.
type Scalar struct {
	set    *kernels.Set
	logger *zap.SugaredLogger
}

// NewScalar creates the reference aggregator.
func NewScalar(set *kernels.Set, logger *zap.SugaredLogger) *Scalar {
	return &Scalar{set: set, logger: logger}
}

// Type identifies the implementation.
func (s *Scalar) Type() AggregatorType {
	return AggregatorScalar
}

// Aggregate scores the candidate set one accident at a time.
func (s *Scalar) Aggregate(in Inputs) Result {
	p := s.set.Params()

	influences := make([]types.Influence, 0, len(in.Accidents))
	dropped := 0
	for i := range in.Accidents {
		inf := weigh(s.set, &in, &in.Accidents[i])
		if hasNaN(&inf) {
			s.logger.Errorw("kernel produced NaN, dropping accident",
				"accident_id", inf.AccidentID, "influence", inf)
			dropped++
			inf = types.Influence{AccidentID: inf.AccidentID, DistanceKm: inf.DistanceKm, DaysElapsed: inf.DaysElapsed}
			influences = append(influences, inf)
			continue
		}

		if inf.WeatherSimilarity >= p.SimilarityExclusion {
			base := inf.SpatialWeight * inf.TemporalWeight * inf.ElevationWeight *
				inf.RouteTypeWeight * inf.SeverityWeight
			inf.TotalInfluence = base * math.Pow(inf.WeatherSimilarity, p.WeatherPower)
		}
		influences = append(influences, inf)
	}

	return finish(influences, p, dropped)
}
