// Package weather retrieves forecast and climatological data and compares
// weather patterns. The similarity score is the dominant factor of the risk
// model: it gates accidents out entirely below the exclusion threshold and is
// amplified quadratically above it.
package weather

import (
	"math"

	"github.com/safeascent/safeascent/internal/types"
	"github.com/safeascent/safeascent/pkg/config"
)

// NeutralSimilarity is the score assigned when a comparison has too little
// data to be meaningful: missing windows, or fewer than three days carrying
// any observation.
const NeutralSimilarity = 0.5

// minDaysWithData is the floor below which a comparison is not attempted.
const minDaysWithData = 3

// Similarity scores how alike two 7-day weather windows are, in [0,1].
// Windows align by relative day offset. Each variable's difference is
// normalized by its climatological standard deviation, clipped, and inverted
// so identical values score 1.0; variables combine as a weighted mean with
// missing variables skipped and the remaining weights renormalized; days
// combine as an unweighted mean with entirely-missing days skipped.
//
// The second return value reports low confidence: the windows carried too
// little data and the neutral score was substituted.
func Similarity(a, b *types.WeatherPattern, stats types.ClimateStats, weights config.VariableWeights) (float64, bool) {
	if a == nil || b == nil {
		return NeutralSimilarity, true
	}
	if a.DaysWithData() < minDaysWithData || b.DaysWithData() < minDaysWithData {
		return NeutralSimilarity, true
	}

	daySum := 0.0
	daysScored := 0
	for i := range a.Days {
		score, ok := dayScore(&a.Days[i], &b.Days[i], stats, weights)
		if !ok {
			continue
		}
		daySum += score
		daysScored++
	}

	if daysScored == 0 {
		return NeutralSimilarity, true
	}
	return daySum / float64(daysScored), false
}

// dayScore compares one aligned day pair. ok is false when no variable is
// present on both sides.
func dayScore(a, b *types.DailyWeather, stats types.ClimateStats, weights config.VariableWeights) (float64, bool) {
	weightedSum := 0.0
	weightTotal := 0.0

	if s, ok := temperatureScore(a, b, stats.Temperature.StdDev); ok {
		weightedSum += weights.Temperature * s
		weightTotal += weights.Temperature
	}
	if s, ok := windScore(a, b, stats.WindSpeed.StdDev); ok {
		weightedSum += weights.Wind * s
		weightTotal += weights.Wind
	}
	if s, ok := pairScore(a.PrecipitationTotal, b.PrecipitationTotal, stats.Precipitation.StdDev); ok {
		weightedSum += weights.Precipitation * s
		weightTotal += weights.Precipitation
	}
	if s, ok := pairScore(a.CloudCoverAvg, b.CloudCoverAvg, stats.CloudCover.StdDev); ok {
		weightedSum += weights.CloudCover * s
		weightTotal += weights.CloudCover
	}
	if s, ok := pairScore(a.VisibilityAvg, b.VisibilityAvg, stats.Visibility.StdDev); ok {
		weightedSum += weights.Visibility * s
		weightTotal += weights.Visibility
	}

	if weightTotal == 0 {
		return 0, false
	}
	return weightedSum / weightTotal, true
}

// temperatureScore averages the subscores of the avg/min/max readings that
// are present on both sides.
func temperatureScore(a, b *types.DailyWeather, sigma float64) (float64, bool) {
	sum := 0.0
	n := 0
	for _, pair := range [][2]*float64{
		{a.TemperatureAvg, b.TemperatureAvg},
		{a.TemperatureMin, b.TemperatureMin},
		{a.TemperatureMax, b.TemperatureMax},
	} {
		if s, ok := pairScore(pair[0], pair[1], sigma); ok {
			sum += s
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// windScore averages the avg and max wind subscores.
func windScore(a, b *types.DailyWeather, sigma float64) (float64, bool) {
	sum := 0.0
	n := 0
	for _, pair := range [][2]*float64{
		{a.WindSpeedAvg, b.WindSpeedAvg},
		{a.WindSpeedMax, b.WindSpeedMax},
	} {
		if s, ok := pairScore(pair[0], pair[1], sigma); ok {
			sum += s
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// pairScore is the normalized-difference score of one variable pair:
// 1 - min(1, |a-b|/sigma). A degenerate sigma collapses the score to exact
// match or nothing.
func pairScore(a, b *float64, sigma float64) (float64, bool) {
	if a == nil || b == nil {
		return 0, false
	}
	diff := math.Abs(*a - *b)
	if sigma <= 0 {
		if diff == 0 {
			return 1.0, true
		}
		return 0.0, true
	}
	norm := diff / sigma
	if norm > 1 {
		norm = 1
	}
	return 1 - norm, true
}
