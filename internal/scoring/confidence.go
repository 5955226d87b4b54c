package scoring

import (
	"sort"

	"github.com/safeascent/safeascent/internal/types"
	"gonum.org/v1/gonum/stat"
)

// Confidence shape: how many accidents contributed, how recent they are, and
// how well their weather matched.
const (
	countWeight   = 0.4
	recencyWeight = 0.3
	matchWeight   = 0.3

	// fullCountContributors is the contributor count at which the count
	// component saturates.
	fullCountContributors = 100

	// recencyHorizonDays is the median age, ten years, at which the recency
	// component reaches zero.
	recencyHorizonDays = 3650.0

	// strongMatchThreshold is the similarity above which a contributor
	// counts as a strong weather match.
	strongMatchThreshold = 0.5
)

// confidence derives the [0,100] confidence of a scoring pass from its
// contributors. No contributors means no confidence.
func confidence(influences []types.Influence, contributing int) float64 {
	if contributing == 0 {
		return 0
	}

	days := make([]float64, 0, contributing)
	strongMatches := 0
	for i := range influences {
		if influences[i].TotalInfluence <= 0 {
			continue
		}
		days = append(days, float64(influences[i].DaysElapsed))
		if influences[i].WeatherSimilarity >= strongMatchThreshold {
			strongMatches++
		}
	}

	countScore := float64(contributing) / fullCountContributors
	if countScore > 1 {
		countScore = 1
	}

	sort.Float64s(days)
	medianDays := stat.Quantile(0.5, stat.Empirical, days, nil)
	recencyScore := 1 - medianDays/recencyHorizonDays
	if recencyScore < 0 {
		recencyScore = 0
	}
	if recencyScore > 1 {
		recencyScore = 1
	}

	matchScore := float64(strongMatches) / float64(contributing)

	return 100 * (countWeight*countScore + recencyWeight*recencyScore + matchWeight*matchScore)
}

// topContributors ranks contributors by total influence descending, breaking
// ties by days elapsed ascending, then distance ascending, then accident id
// ascending. The order is total, so equal requests rank identically.
func topContributors(influences []types.Influence, max int) []types.Contributor {
	ranked := make([]types.Influence, 0, len(influences))
	for i := range influences {
		if influences[i].TotalInfluence > 0 {
			ranked = append(ranked, influences[i])
		}
	}

	sort.Slice(ranked, func(i, j int) bool {
		a, b := &ranked[i], &ranked[j]
		if a.TotalInfluence != b.TotalInfluence {
			return a.TotalInfluence > b.TotalInfluence
		}
		if a.DaysElapsed != b.DaysElapsed {
			return a.DaysElapsed < b.DaysElapsed
		}
		if a.DistanceKm != b.DistanceKm {
			return a.DistanceKm < b.DistanceKm
		}
		return a.AccidentID < b.AccidentID
	})

	if len(ranked) > max {
		ranked = ranked[:max]
	}

	top := make([]types.Contributor, len(ranked))
	for i := range ranked {
		top[i] = types.Contributor{
			AccidentID:     ranked[i].AccidentID,
			DistanceKm:     ranked[i].DistanceKm,
			DaysAgo:        ranked[i].DaysElapsed,
			TotalInfluence: ranked[i].TotalInfluence,
			Severity:       ranked[i].Severity,
		}
	}
	return top
}
