package scoring

import (
	"math"

	"github.com/safeascent/safeascent/internal/kernels"
	"github.com/safeascent/safeascent/internal/types"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
)

// Vectorized is the hot-path implementation. It lays the kernel weights out
// as parallel columns and fuses them with elementwise operations, which keeps
// the per-accident multiply chain in tight loops over contiguous memory. The
// multiply order matches the scalar path exactly so the two stay within the
// agreement tolerance.
type Vectorized struct {
	set    *kernels.Set
	logger *zap.SugaredLogger
}

// NewVectorized creates the hot-path aggregator.
func NewVectorized(set *kernels.Set, logger *zap.SugaredLogger) *Vectorized {
	return &Vectorized{set: set, logger: logger}
}

// Type identifies the implementation.
func (v *Vectorized) Type() AggregatorType {
	return AggregatorVectorized
}

// Aggregate scores the candidate set column-wise.
func (v *Vectorized) Aggregate(in Inputs) Result {
	p := v.set.Params()
	n := len(in.Accidents)

	influences := make([]types.Influence, n)
	spatial := make([]float64, n)
	temporal := make([]float64, n)
	elev := make([]float64, n)
	route := make([]float64, n)
	severity := make([]float64, n)
	sim := make([]float64, n)

	dropped := 0
	for i := range in.Accidents {
		inf := weigh(v.set, &in, &in.Accidents[i])
		if hasNaN(&inf) {
			v.logger.Errorw("kernel produced NaN, dropping accident",
				"accident_id", inf.AccidentID, "influence", inf)
			dropped++
			influences[i] = types.Influence{AccidentID: inf.AccidentID, DistanceKm: inf.DistanceKm, DaysElapsed: inf.DaysElapsed}
			// Zero columns keep the dropped accident out of the fused total.
			continue
		}
		influences[i] = inf
		spatial[i] = inf.SpatialWeight
		temporal[i] = inf.TemporalWeight
		elev[i] = inf.ElevationWeight
		route[i] = inf.RouteTypeWeight
		severity[i] = inf.SeverityWeight
		sim[i] = inf.WeatherSimilarity
	}

	// Fuse the columns in the same order the scalar path multiplies.
	total := make([]float64, n)
	copy(total, spatial)
	floats.Mul(total, temporal)
	floats.Mul(total, elev)
	floats.Mul(total, route)
	floats.Mul(total, severity)

	// Similarity gate and amplifier.
	for i := 0; i < n; i++ {
		if sim[i] < p.SimilarityExclusion {
			total[i] = 0
			continue
		}
		total[i] *= math.Pow(sim[i], p.WeatherPower)
	}

	for i := range influences {
		influences[i].TotalInfluence = total[i]
	}

	return finish(influences, p, dropped)
}
