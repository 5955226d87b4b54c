// Package types contains the domain structures shared across the prediction
// components: weather windows, accident records, queries, and results.
package types

import "time"

// RouteType classifies the climbing discipline of a route or accident.
type RouteType string

const (
	RouteAlpine  RouteType = "alpine"
	RouteIce     RouteType = "ice"
	RouteMixed   RouteType = "mixed"
	RouteTrad    RouteType = "trad"
	RouteAid     RouteType = "aid"
	RouteSport   RouteType = "sport"
	RouteBoulder RouteType = "boulder"
	RouteUnknown RouteType = "unknown"
)

// RouteTypes lists every recognized route type, including unknown.
var RouteTypes = []RouteType{
	RouteAlpine, RouteIce, RouteMixed, RouteTrad,
	RouteAid, RouteSport, RouteBoulder, RouteUnknown,
}

// ParseRouteType maps a string onto a RouteType. The second return value is
// false when the input is not a recognized type; callers decide whether that
// is a validation error or a fallback to RouteUnknown.
func ParseRouteType(s string) (RouteType, bool) {
	switch RouteType(s) {
	case RouteAlpine, RouteIce, RouteMixed, RouteTrad, RouteAid, RouteSport, RouteBoulder, RouteUnknown:
		return RouteType(s), true
	default:
		return RouteUnknown, false
	}
}

// Severity classifies the outcome of an accident.
type Severity string

const (
	SeverityFatal    Severity = "fatal"
	SeveritySerious  Severity = "serious"
	SeverityModerate Severity = "moderate"
	SeverityMinor    Severity = "minor"
	SeverityUnknown  Severity = "unknown"
)

// ParseSeverity maps a string onto a Severity, falling back to unknown.
func ParseSeverity(s string) Severity {
	switch Severity(s) {
	case SeverityFatal, SeveritySerious, SeverityModerate, SeverityMinor:
		return Severity(s)
	default:
		return SeverityUnknown
	}
}

// Season is a meteorological season used to bucket climatological statistics.
type Season string

const (
	SeasonWinter Season = "winter"
	SeasonSpring Season = "spring"
	SeasonSummer Season = "summer"
	SeasonAutumn Season = "autumn"
)

// SeasonOf returns the meteorological season of a date: Dec-Feb winter,
// Mar-May spring, Jun-Aug summer, Sep-Nov autumn.
func SeasonOf(t time.Time) Season {
	switch t.Month() {
	case time.December, time.January, time.February:
		return SeasonWinter
	case time.March, time.April, time.May:
		return SeasonSpring
	case time.June, time.July, time.August:
		return SeasonSummer
	default:
		return SeasonAutumn
	}
}

// DailyWeather holds one day of observations. Nil fields are missing values;
// similarity treats a missing field as neutral rather than inventing data.
type DailyWeather struct {
	TemperatureAvg     *float64 `json:"temperature_avg,omitempty"`
	TemperatureMin     *float64 `json:"temperature_min,omitempty"`
	TemperatureMax     *float64 `json:"temperature_max,omitempty"`
	WindSpeedAvg       *float64 `json:"wind_speed_avg,omitempty"`
	WindSpeedMax       *float64 `json:"wind_speed_max,omitempty"`
	PrecipitationTotal *float64 `json:"precipitation_total,omitempty"`
	CloudCoverAvg      *float64 `json:"cloud_cover_avg,omitempty"`
	VisibilityAvg      *float64 `json:"visibility_avg,omitempty"`
}

// HasData reports whether the day carries at least one observation.
func (d *DailyWeather) HasData() bool {
	return d.TemperatureAvg != nil || d.TemperatureMin != nil || d.TemperatureMax != nil ||
		d.WindSpeedAvg != nil || d.WindSpeedMax != nil || d.PrecipitationTotal != nil ||
		d.CloudCoverAvg != nil || d.VisibilityAvg != nil
}

// WeatherPattern is a seven-day window of daily observations.
// Day 0 is the earliest day and day 6 is the anchor date, so the fixed
// array length enforces the window invariant by construction.
type WeatherPattern struct {
	Days [7]DailyWeather `json:"days"`
}

// NeutralPattern returns a window with every observation absent. It scores
// the neutral similarity 0.5 against any other pattern.
func NeutralPattern() WeatherPattern {
	return WeatherPattern{}
}

// DaysWithData counts the days in the window carrying any observation.
func (p *WeatherPattern) DaysWithData() int {
	n := 0
	for i := range p.Days {
		if p.Days[i].HasData() {
			n++
		}
	}
	return n
}

// VariableStats holds the climatological mean and standard deviation of one
// weather variable for a location bucket and season.
type VariableStats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
}

// ClimateStats holds per-variable climatological dispersion. Similarity uses
// the standard deviations as normalization denominators.
type ClimateStats struct {
	Temperature   VariableStats `json:"temperature"`
	WindSpeed     VariableStats `json:"wind_speed"`
	Precipitation VariableStats `json:"precipitation"`
	CloudCover    VariableStats `json:"cloud_cover"`
	Visibility    VariableStats `json:"visibility"`
}

// AccidentRecord is one historical accident. Records are immutable for the
// duration of a request: loaded, filtered, scored, and discarded.
type AccidentRecord struct {
	ID              int64
	Latitude        float64
	Longitude       float64
	ElevationMeters *float64
	AccidentDate    time.Time
	RouteType       RouteType
	Severity        Severity
	Source          string
	Weather         *WeatherPattern
}

// RouteQuery is a validated prediction request.
type RouteQuery struct {
	Latitude        float64
	Longitude       float64
	ElevationMeters *float64
	RouteType       RouteType
	TargetDate      time.Time
	SearchRadiusKm  float64
}

// Influence is the per-accident scoring record. TotalInfluence is zero when
// the accident was excluded by the similarity threshold.
type Influence struct {
	AccidentID        int64
	Severity          Severity
	DistanceKm        float64
	DaysElapsed       int
	SpatialWeight     float64
	TemporalWeight    float64
	ElevationWeight   float64
	RouteTypeWeight   float64
	SeverityWeight    float64
	WeatherSimilarity float64
	TotalInfluence    float64
}

// Contributor is one entry of the top-contributors list in a Prediction.
type Contributor struct {
	AccidentID     int64    `json:"accident_id"`
	DistanceKm     float64  `json:"distance_km"`
	DaysAgo        int      `json:"days_ago"`
	TotalInfluence float64  `json:"total_influence"`
	Severity       Severity `json:"severity"`
}

// Prediction is the result of a full scoring pass over the candidate set.
// Values are unrounded; the HTTP boundary owns presentation rounding.
type Prediction struct {
	RiskScore       float64       `json:"risk_score"`
	Confidence      float64       `json:"confidence"`
	NumContributing int           `json:"num_contributing_accidents"`
	TopContributors []Contributor `json:"top_contributing_accidents"`
	RouteType       RouteType     `json:"route_type"`
	TargetDate      time.Time     `json:"target_date"`
	Vectorized      bool          `json:"vectorized"`
	Degraded        bool          `json:"degraded"`
}
