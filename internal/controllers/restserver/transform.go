package restserver

import (
	"math"

	"github.com/safeascent/safeascent/internal/types"
)

// toPredictResponse applies presentation rounding at the boundary; the engine
// itself never rounds.
func toPredictResponse(p *types.Prediction) predictResponse {
	top := make([]contributorResponse, len(p.TopContributors))
	for i, c := range p.TopContributors {
		top[i] = contributorResponse{
			AccidentID:     c.AccidentID,
			DistanceKm:     round2(c.DistanceKm),
			DaysAgo:        c.DaysAgo,
			TotalInfluence: round2(c.TotalInfluence),
			Severity:       c.Severity,
		}
	}
	return predictResponse{
		RiskScore:       round2(p.RiskScore),
		Confidence:      round2(p.Confidence),
		NumContributing: p.NumContributing,
		TopContributors: top,
		RouteType:       p.RouteType,
		TargetDate:      p.TargetDate.Format("2006-01-02"),
		Vectorized:      p.Vectorized,
		Degraded:        p.Degraded,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
