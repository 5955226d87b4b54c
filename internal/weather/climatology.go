package weather

import (
	"context"
	"fmt"
	"net/url"

	"github.com/safeascent/safeascent/internal/types"
	"gonum.org/v1/gonum/stat"
)

// archiveYears is how far back the climatology derivation reaches. Three
// seasons of daily observations keep the stddev estimates stable without
// making the archive call expensive.
const archiveYears = 3

// FetchStatistics returns climatological means and standard deviations for
// the location bucket and season, used as similarity normalization
// denominators. Keys round to one decimal place, roughly ten kilometers, and
// entries live for 24 hours. On provider failure the continental default
// table is substituted and the degraded flag set.
func (f *Fetcher) FetchStatistics(ctx context.Context, lat, lon float64, elevBucket int, season types.Season) (types.ClimateStats, bool) {
	key := fmt.Sprintf("stats:%.1f:%.1f:%d:%s", lat, lon, elevBucket, season)

	var cached types.ClimateStats
	if f.cache.GetJSON(ctx, key, &cached) {
		return cached, false
	}

	v, err, _ := f.group.Do(key, func() (any, error) {
		stats, err := f.deriveStatistics(ctx, lat, lon, season)
		if err != nil {
			return nil, err
		}
		f.cache.SetJSON(ctx, key, stats, statsTTL)
		return stats, nil
	})
	if err != nil {
		f.logger.Warnf("climatology unavailable for %s, using seasonal defaults: %v", key, err)
		return DefaultSeasonalStats(season), true
	}
	return v.(types.ClimateStats), false
}

// deriveStatistics pulls three years of daily archive data for the location
// and aggregates the days falling in the requested season.
func (f *Fetcher) deriveStatistics(ctx context.Context, lat, lon float64, season types.Season) (types.ClimateStats, error) {
	end := midnight(f.now().UTC()).AddDate(0, 0, -7)
	start := end.AddDate(-archiveYears, 0, 0)

	v := url.Values{}
	v.Set("latitude", fmt.Sprintf("%.4f", lat))
	v.Set("longitude", fmt.Sprintf("%.4f", lon))
	v.Set("daily", dailyVariables)
	v.Set("start_date", start.Format("2006-01-02"))
	v.Set("end_date", end.Format("2006-01-02"))
	v.Set("timezone", "UTC")

	var resp openMeteoResponse
	if err := f.getJSON(ctx, "archive", f.archiveURL+"?"+v.Encode(), &resp); err != nil {
		return types.ClimateStats{}, err
	}

	obs, err := resp.dailyObservations()
	if err != nil {
		return types.ClimateStats{}, err
	}

	var temps, winds, precips, clouds, viss []float64
	for _, o := range obs {
		if types.SeasonOf(o.Date) != season {
			continue
		}
		temps = appendValue(temps, o.Temperature)
		winds = appendValue(winds, o.WindSpeed)
		precips = appendValue(precips, o.Precipitation)
		clouds = appendValue(clouds, o.CloudCover)
		viss = appendValue(viss, o.Visibility)
	}

	defaults := DefaultSeasonalStats(season)
	return types.ClimateStats{
		Temperature:   variableStats(temps, defaults.Temperature),
		WindSpeed:     variableStats(winds, defaults.WindSpeed),
		Precipitation: variableStats(precips, defaults.Precipitation),
		CloudCover:    variableStats(clouds, defaults.CloudCover),
		Visibility:    variableStats(viss, defaults.Visibility),
	}, nil
}

// variableStats aggregates one variable's samples, falling back to the
// seasonal default when the archive carried too few observations or a
// degenerate spread.
func variableStats(samples []float64, fallback types.VariableStats) types.VariableStats {
	if len(samples) < 30 {
		return fallback
	}
	mean, stddev := stat.MeanStdDev(samples, nil)
	if stddev <= 0 {
		return fallback
	}
	return types.VariableStats{Mean: mean, StdDev: stddev}
}

func appendValue(dst []float64, v *float64) []float64 {
	if v == nil {
		return dst
	}
	return append(dst, *v)
}

// defaultSeasonalStats is the embedded continental fallback table, keyed by
// meteorological season. Values are broad mid-latitude mountain climate
// figures; they only steer normalization when the archive is unreachable.
var defaultSeasonalStats = map[types.Season]types.ClimateStats{
	types.SeasonWinter: {
		Temperature:   types.VariableStats{Mean: -5, StdDev: 8},
		WindSpeed:     types.VariableStats{Mean: 20, StdDev: 12},
		Precipitation: types.VariableStats{Mean: 2.5, StdDev: 5},
		CloudCover:    types.VariableStats{Mean: 60, StdDev: 30},
		Visibility:    types.VariableStats{Mean: 15000, StdDev: 9000},
	},
	types.SeasonSpring: {
		Temperature:   types.VariableStats{Mean: 6, StdDev: 7},
		WindSpeed:     types.VariableStats{Mean: 18, StdDev: 10},
		Precipitation: types.VariableStats{Mean: 3.0, StdDev: 6},
		CloudCover:    types.VariableStats{Mean: 55, StdDev: 28},
		Visibility:    types.VariableStats{Mean: 18000, StdDev: 9000},
	},
	types.SeasonSummer: {
		Temperature:   types.VariableStats{Mean: 15, StdDev: 6},
		WindSpeed:     types.VariableStats{Mean: 14, StdDev: 8},
		Precipitation: types.VariableStats{Mean: 2.0, StdDev: 5},
		CloudCover:    types.VariableStats{Mean: 45, StdDev: 28},
		Visibility:    types.VariableStats{Mean: 22000, StdDev: 8000},
	},
	types.SeasonAutumn: {
		Temperature:   types.VariableStats{Mean: 7, StdDev: 7},
		WindSpeed:     types.VariableStats{Mean: 17, StdDev: 10},
		Precipitation: types.VariableStats{Mean: 2.8, StdDev: 5.5},
		CloudCover:    types.VariableStats{Mean: 55, StdDev: 29},
		Visibility:    types.VariableStats{Mean: 17000, StdDev: 9000},
	},
}

// DefaultSeasonalStats returns the embedded fallback statistics for a season.
func DefaultSeasonalStats(season types.Season) types.ClimateStats {
	if s, ok := defaultSeasonalStats[season]; ok {
		return s
	}
	return defaultSeasonalStats[types.SeasonSummer]
}

// ElevationBucket quantizes an elevation to 100 m for the stats cache key. A
// missing elevation buckets to zero.
func ElevationBucket(elev *float64) int {
	if elev == nil {
		return 0
	}
	return int(*elev / 100)
}
