package scoring

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/safeascent/safeascent/internal/kernels"
	"github.com/safeascent/safeascent/internal/log"
	"github.com/safeascent/safeascent/internal/types"
	"github.com/safeascent/safeascent/pkg/config"
)

var testTarget = time.Date(2026, 7, 15, 0, 0, 0, 0, time.UTC)

func newTestKernels(t *testing.T) *kernels.Set {
	t.Helper()
	matrix, err := kernels.ParseRouteMatrix(config.DefaultRouteMatrixJSON())
	if err != nil {
		t.Fatalf("failed to parse built-in route matrix: %v", err)
	}
	return kernels.New(config.DefaultParams(), matrix)
}

// bothAggregators returns the two implementations so every behavioral test
// runs against each; the contract is one, the implementations two.
func bothAggregators(t *testing.T) map[string]Aggregator {
	set := newTestKernels(t)
	return map[string]Aggregator{
		"scalar":     NewScalar(set, log.GetSugaredLogger()),
		"vectorized": NewVectorized(set, log.GetSugaredLogger()),
	}
}

func fptr(v float64) *float64 {
	return &v
}

func testStats() types.ClimateStats {
	return types.ClimateStats{
		Temperature:   types.VariableStats{Mean: 12, StdDev: 8},
		WindSpeed:     types.VariableStats{Mean: 15, StdDev: 10},
		Precipitation: types.VariableStats{Mean: 2, StdDev: 5},
		CloudCover:    types.VariableStats{Mean: 50, StdDev: 30},
		Visibility:    types.VariableStats{Mean: 20000, StdDev: 10000},
	}
}

func patternWith(temp, wind, precip float64) types.WeatherPattern {
	var p types.WeatherPattern
	for i := range p.Days {
		p.Days[i] = types.DailyWeather{
			TemperatureAvg:     fptr(temp),
			WindSpeedAvg:       fptr(wind),
			PrecipitationTotal: fptr(precip),
		}
	}
	return p
}

func baseQuery() types.RouteQuery {
	return types.RouteQuery{
		Latitude:        40.255,
		Longitude:       -105.615,
		ElevationMeters: fptr(4346),
		RouteType:       types.RouteAlpine,
		TargetDate:      testTarget,
	}
}

func TestEmptyCandidateSet(t *testing.T) {
	for name, agg := range bothAggregators(t) {
		t.Run(name, func(t *testing.T) {
			res := agg.Aggregate(Inputs{
				Query:        baseQuery(),
				RouteWeather: patternWith(12, 15, 1),
				Stats:        testStats(),
			})
			if res.RiskScore != 0 || res.Confidence != 0 || res.NumContributing != 0 {
				t.Errorf("empty set should score zero: %+v", res)
			}
			if len(res.TopContributors) != 0 {
				t.Errorf("expected no contributors, got %d", len(res.TopContributors))
			}
		})
	}
}

func TestColocatedAccidentFullSpatialWeight(t *testing.T) {
	q := baseQuery()
	pattern := patternWith(12, 15, 1)
	acc := types.AccidentRecord{
		ID: 1, Latitude: q.Latitude, Longitude: q.Longitude,
		AccidentDate: testTarget.AddDate(-1, 0, 0),
		RouteType:    types.RouteAlpine, Severity: types.SeveritySerious,
		Weather: &pattern,
	}

	for name, agg := range bothAggregators(t) {
		t.Run(name, func(t *testing.T) {
			res := agg.Aggregate(Inputs{
				Query: q, Accidents: []types.AccidentRecord{acc},
				RouteWeather: pattern, Stats: testStats(),
			})
			inf := res.Influences[0]
			if math.Abs(inf.SpatialWeight-1.0) > 1e-12 {
				t.Errorf("colocated accident should have spatial weight 1.0, got %v", inf.SpatialWeight)
			}
			if math.Abs(inf.WeatherSimilarity-1.0) > 1e-12 {
				t.Errorf("identical weather should score 1.0, got %v", inf.WeatherSimilarity)
			}
			if res.NumContributing != 1 {
				t.Errorf("expected one contributor, got %d", res.NumContributing)
			}
		})
	}
}

func TestSimilarityGateExcludes(t *testing.T) {
	q := baseQuery()
	routeWeather := patternWith(12, 15, 0)
	// Weather several stddevs away on every variable scores near zero,
	// below the exclusion threshold.
	hostile := patternWith(-60, 90, 40)
	acc := types.AccidentRecord{
		ID: 1, Latitude: q.Latitude, Longitude: q.Longitude,
		AccidentDate: testTarget.AddDate(-1, 0, 0),
		RouteType:    types.RouteAlpine, Severity: types.SeverityFatal,
		Weather: &hostile,
	}

	for name, agg := range bothAggregators(t) {
		t.Run(name, func(t *testing.T) {
			res := agg.Aggregate(Inputs{
				Query: q, Accidents: []types.AccidentRecord{acc},
				RouteWeather: routeWeather, Stats: testStats(),
			})
			if res.NumContributing != 0 {
				t.Errorf("dissimilar weather should exclude the accident, got %d contributors", res.NumContributing)
			}
			if res.Influences[0].TotalInfluence != 0 {
				t.Errorf("excluded accident must carry zero total, got %v", res.Influences[0].TotalInfluence)
			}
			if res.RiskScore != 0 {
				t.Errorf("expected zero risk, got %v", res.RiskScore)
			}
		})
	}
}

func TestMissingWindowScoresNeutral(t *testing.T) {
	q := baseQuery()
	acc := types.AccidentRecord{
		ID: 1, Latitude: q.Latitude, Longitude: q.Longitude,
		AccidentDate: testTarget.AddDate(-1, 0, 0),
		RouteType:    types.RouteAlpine, Severity: types.SeverityModerate,
		// Weather nil: the window never made it into the database.
	}

	for name, agg := range bothAggregators(t) {
		t.Run(name, func(t *testing.T) {
			res := agg.Aggregate(Inputs{
				Query: q, Accidents: []types.AccidentRecord{acc},
				RouteWeather: patternWith(12, 15, 1), Stats: testStats(),
			})
			inf := res.Influences[0]
			if inf.WeatherSimilarity != 0.5 {
				t.Errorf("missing window should score neutral 0.5, got %v", inf.WeatherSimilarity)
			}
			if inf.TotalInfluence <= 0 {
				t.Error("neutral similarity sits above the exclusion threshold; the accident should contribute")
			}
		})
	}
}

func TestNaNKernelDropsAccident(t *testing.T) {
	q := baseQuery()
	pattern := patternWith(12, 15, 1)
	good := types.AccidentRecord{
		ID: 1, Latitude: q.Latitude, Longitude: q.Longitude,
		AccidentDate: testTarget.AddDate(-1, 0, 0),
		RouteType:    types.RouteAlpine, Severity: types.SeverityMinor,
		Weather: &pattern,
	}
	// A NaN elevation poisons the elevation kernel.
	poisoned := good
	poisoned.ID = 2
	poisoned.ElevationMeters = fptr(math.NaN())

	for name, agg := range bothAggregators(t) {
		t.Run(name, func(t *testing.T) {
			res := agg.Aggregate(Inputs{
				Query: q, Accidents: []types.AccidentRecord{good, poisoned},
				RouteWeather: pattern, Stats: testStats(),
			})
			if res.Dropped != 1 {
				t.Errorf("expected 1 dropped accident, got %d", res.Dropped)
			}
			if res.NumContributing != 1 {
				t.Errorf("the healthy accident should still contribute, got %d", res.NumContributing)
			}
			if math.IsNaN(res.RiskScore) {
				t.Error("risk score must never be NaN")
			}
		})
	}
}

func TestRiskScoreBounded(t *testing.T) {
	q := baseQuery()
	pattern := patternWith(12, 15, 1)

	// Hundreds of maximal-influence accidents push the raw sum far past the
	// clamp.
	accidents := make([]types.AccidentRecord, 500)
	for i := range accidents {
		accidents[i] = types.AccidentRecord{
			ID: int64(i + 1), Latitude: q.Latitude, Longitude: q.Longitude,
			AccidentDate: testTarget.AddDate(0, 0, -30),
			RouteType:    types.RouteAlpine, Severity: types.SeverityFatal,
			Weather: &pattern,
		}
	}

	for name, agg := range bothAggregators(t) {
		t.Run(name, func(t *testing.T) {
			res := agg.Aggregate(Inputs{
				Query: q, Accidents: accidents,
				RouteWeather: pattern, Stats: testStats(),
			})
			if res.RiskScore != 100 {
				t.Errorf("expected the clamp at 100, got %v", res.RiskScore)
			}
			if res.Confidence < 0 || res.Confidence > 100 {
				t.Errorf("confidence out of range: %v", res.Confidence)
			}
			if res.NumContributing != 500 {
				t.Errorf("all accidents should contribute, got %d", res.NumContributing)
			}
		})
	}
}

func TestTopContributorOrdering(t *testing.T) {
	q := baseQuery()
	pattern := patternWith(12, 15, 1)

	// Distances stagger the totals; identical accidents at the end exercise
	// the id tie-break.
	accidents := []types.AccidentRecord{
		{ID: 3, Latitude: q.Latitude + 0.30, Longitude: q.Longitude, AccidentDate: testTarget.AddDate(-1, 0, 0), RouteType: types.RouteAlpine, Severity: types.SeverityFatal, Weather: &pattern},
		{ID: 1, Latitude: q.Latitude, Longitude: q.Longitude, AccidentDate: testTarget.AddDate(-1, 0, 0), RouteType: types.RouteAlpine, Severity: types.SeverityFatal, Weather: &pattern},
		{ID: 5, Latitude: q.Latitude + 0.15, Longitude: q.Longitude, AccidentDate: testTarget.AddDate(-1, 0, 0), RouteType: types.RouteAlpine, Severity: types.SeverityFatal, Weather: &pattern},
		{ID: 4, Latitude: q.Latitude, Longitude: q.Longitude, AccidentDate: testTarget.AddDate(-1, 0, 0), RouteType: types.RouteAlpine, Severity: types.SeverityFatal, Weather: &pattern},
	}

	for name, agg := range bothAggregators(t) {
		t.Run(name, func(t *testing.T) {
			res := agg.Aggregate(Inputs{
				Query: q, Accidents: accidents,
				RouteWeather: pattern, Stats: testStats(),
			})

			for i := 1; i < len(res.TopContributors); i++ {
				if res.TopContributors[i].TotalInfluence > res.TopContributors[i-1].TotalInfluence {
					t.Errorf("contributors not sorted by influence: %+v", res.TopContributors)
				}
			}

			// IDs 1 and 4 are byte-identical accidents; the id tie-break
			// must put 1 first.
			if res.TopContributors[0].AccidentID != 1 || res.TopContributors[1].AccidentID != 4 {
				t.Errorf("tie-break by id failed: %+v", res.TopContributors)
			}
		})
	}
}

func TestContributorCapRespected(t *testing.T) {
	q := baseQuery()
	pattern := patternWith(12, 15, 1)

	accidents := make([]types.AccidentRecord, 25)
	for i := range accidents {
		accidents[i] = types.AccidentRecord{
			ID: int64(i + 1), Latitude: q.Latitude + float64(i)*0.01, Longitude: q.Longitude,
			AccidentDate: testTarget.AddDate(-1, 0, 0),
			RouteType:    types.RouteAlpine, Severity: types.SeverityModerate,
			Weather: &pattern,
		}
	}

	for name, agg := range bothAggregators(t) {
		t.Run(name, func(t *testing.T) {
			res := agg.Aggregate(Inputs{
				Query: q, Accidents: accidents,
				RouteWeather: pattern, Stats: testStats(),
			})
			if len(res.TopContributors) != config.DefaultMaxContributors {
				t.Errorf("expected %d contributors, got %d", config.DefaultMaxContributors, len(res.TopContributors))
			}
		})
	}
}

func TestSameDayAccidentGetsSeasonalBoost(t *testing.T) {
	q := baseQuery()
	pattern := patternWith(12, 15, 1)
	acc := types.AccidentRecord{
		ID: 1, Latitude: q.Latitude, Longitude: q.Longitude,
		AccidentDate: testTarget,
		RouteType:    types.RouteAlpine, Severity: types.SeverityMinor,
		Weather: &pattern,
	}

	for name, agg := range bothAggregators(t) {
		t.Run(name, func(t *testing.T) {
			res := agg.Aggregate(Inputs{
				Query: q, Accidents: []types.AccidentRecord{acc},
				RouteWeather: pattern, Stats: testStats(),
			})
			// Zero days elapsed leaves lambda^0 = 1; the whole temporal
			// weight is the seasonal boost.
			if math.Abs(res.Influences[0].TemporalWeight-config.DefaultSeasonalBoost) > 1e-12 {
				t.Errorf("same-day accident should carry w_time = seasonal boost, got %v",
					res.Influences[0].TemporalWeight)
			}
		})
	}
}

// randomCorpus synthesizes a reproducible accident set spread across
// distances, ages, types, severities, and weather quality.
func randomCorpus(rng *rand.Rand, n int) []types.AccidentRecord {
	routeTypes := []types.RouteType{
		types.RouteAlpine, types.RouteIce, types.RouteMixed, types.RouteTrad,
		types.RouteAid, types.RouteSport, types.RouteBoulder, types.RouteUnknown,
	}
	severities := []types.Severity{
		types.SeverityFatal, types.SeveritySerious, types.SeverityModerate,
		types.SeverityMinor, types.SeverityUnknown,
	}

	accidents := make([]types.AccidentRecord, n)
	for i := range accidents {
		acc := types.AccidentRecord{
			ID:           int64(i + 1),
			Latitude:     40.255 + rng.NormFloat64()*2,
			Longitude:    -105.615 + rng.NormFloat64()*2,
			AccidentDate: testTarget.AddDate(0, 0, -rng.Intn(3650)),
			RouteType:    routeTypes[rng.Intn(len(routeTypes))],
			Severity:     severities[rng.Intn(len(severities))],
		}
		if rng.Float64() < 0.8 {
			acc.ElevationMeters = fptr(2000 + rng.Float64()*2500)
		}
		if rng.Float64() < 0.85 {
			p := patternWith(12+rng.NormFloat64()*8, 15+rng.NormFloat64()*8, math.Abs(rng.NormFloat64()*4))
			acc.Weather = &p
		}
		accidents[i] = acc
	}
	return accidents
}

// The agreement contract: on a randomized corpus of over a thousand
// accidents, the scalar and vectorized risk scores differ by at most 1e-6.
func TestScalarVectorizedAgreement(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	set := newTestKernels(t)
	scalar := NewScalar(set, log.GetSugaredLogger())
	vectorized := NewVectorized(set, log.GetSugaredLogger())

	in := Inputs{
		Query:        baseQuery(),
		Accidents:    randomCorpus(rng, 1500),
		RouteWeather: patternWith(12, 15, 1),
		Stats:        testStats(),
	}

	a := scalar.Aggregate(in)
	b := vectorized.Aggregate(in)

	if math.Abs(a.RiskScore-b.RiskScore) > 1e-6 {
		t.Errorf("risk scores disagree: scalar=%v vectorized=%v", a.RiskScore, b.RiskScore)
	}
	if math.Abs(a.Confidence-b.Confidence) > 1e-6 {
		t.Errorf("confidences disagree: scalar=%v vectorized=%v", a.Confidence, b.Confidence)
	}
	if a.NumContributing != b.NumContributing {
		t.Errorf("contributor counts disagree: scalar=%d vectorized=%d", a.NumContributing, b.NumContributing)
	}
	if len(a.TopContributors) != len(b.TopContributors) {
		t.Fatalf("top lists differ in length: %d vs %d", len(a.TopContributors), len(b.TopContributors))
	}
	for i := range a.TopContributors {
		if a.TopContributors[i].AccidentID != b.TopContributors[i].AccidentID {
			t.Errorf("top contributor %d differs: scalar=%d vectorized=%d",
				i, a.TopContributors[i].AccidentID, b.TopContributors[i].AccidentID)
		}
	}
}

func TestSelectorHonorsFlag(t *testing.T) {
	matrix, err := kernels.ParseRouteMatrix(config.DefaultRouteMatrixJSON())
	if err != nil {
		t.Fatalf("failed to parse matrix: %v", err)
	}

	vecParams := config.DefaultParams()
	if agg := New(kernels.New(vecParams, matrix), log.GetSugaredLogger()); agg.Type() != AggregatorVectorized {
		t.Errorf("default parameters should select the vectorized path, got %s", agg.Type())
	}

	scalarParams := config.DefaultParams()
	scalarParams.Vectorized = false
	if agg := New(kernels.New(scalarParams, matrix), log.GetSugaredLogger()); agg.Type() != AggregatorScalar {
		t.Errorf("vectorized=false should select the scalar path, got %s", agg.Type())
	}
}

func TestConfidenceFormula(t *testing.T) {
	// 50 contributors, median age 365 days, all strong matches:
	// 0.4*0.5 + 0.3*0.9 + 0.3*1.0 = 0.77.
	influences := make([]types.Influence, 50)
	for i := range influences {
		influences[i] = types.Influence{
			AccidentID:        int64(i + 1),
			DaysElapsed:       365,
			WeatherSimilarity: 0.9,
			TotalInfluence:    0.1,
		}
	}

	got := confidence(influences, 50)
	want := 100 * (0.4*0.5 + 0.3*(1-365.0/3650.0) + 0.3*1.0)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("confidence = %v, want %v", got, want)
	}

	if c := confidence(nil, 0); c != 0 {
		t.Errorf("no contributors should mean zero confidence, got %v", c)
	}
}
