package config

import (
	_ "embed"
	"fmt"
	"maps"
	"math"
	"os"
	"time"

	"github.com/safeascent/safeascent/internal/types"
)

// route_type_matrix.json is the committed route-type affinity table. It is
// data, not code, so calibration changes ship as a data diff.
//
//go:embed route_type_matrix.json
var defaultRouteMatrixJSON []byte

// DefaultRouteMatrixJSON returns the built-in route-type affinity table.
func DefaultRouteMatrixJSON() []byte {
	return defaultRouteMatrixJSON
}

// Default values for every tunable of the scoring core. These tables are the
// single source of truth for the kernel parameters; nothing else in the
// repository redefines them.
const (
	// DefaultNormalizationK scales the summed influence onto [0,100].
	// Calibrated for a candidate set of roughly 2,500 accidents.
	DefaultNormalizationK = 10.0

	// DefaultSeasonalBoost multiplies the temporal weight when the target
	// month is within one month (modular) of the accident month.
	DefaultSeasonalBoost = 1.5

	// DefaultSimilarityExclusion excludes accidents whose weather similarity
	// falls below it, regardless of the other weights.
	DefaultSimilarityExclusion = 0.25

	// DefaultWeatherPower is the exponent applied to weather similarity: the
	// calibrated compromise between a linear and a cubic amplifier.
	DefaultWeatherPower = 2.0

	// DefaultLocalRadiusKm is the candidate filter's distance rule.
	DefaultLocalRadiusKm = 50.0

	// DefaultRouteAffinityThreshold is the candidate filter's route-type rule.
	DefaultRouteAffinityThreshold = 0.85

	// DefaultMaxContributors caps the top-contributors list.
	DefaultMaxContributors = 10

	// DefaultRequestTimeout bounds a single prediction end to end.
	DefaultRequestTimeout = 15 * time.Second
)

// defaultSpatialBandwidthKm is the Gaussian bandwidth sigma per planned
// route type, in kilometers.
var defaultSpatialBandwidthKm = map[types.RouteType]float64{
	types.RouteAlpine:  75,
	types.RouteIce:     75,
	types.RouteMixed:   75,
	types.RouteTrad:    50,
	types.RouteAid:     50,
	types.RouteSport:   30,
	types.RouteBoulder: 20,
}

const defaultSpatialBandwidthFallbackKm = 50.0

// defaultTemporalDecay is the daily exponential decay factor lambda per
// planned route type: a year-scale half-life.
var defaultTemporalDecay = map[types.RouteType]float64{
	types.RouteAlpine:  0.9995,
	types.RouteIce:     0.9995,
	types.RouteMixed:   0.9995,
	types.RouteTrad:    0.9990,
	types.RouteAid:     0.9990,
	types.RouteSport:   0.9990,
	types.RouteBoulder: 0.9985,
}

const defaultTemporalDecayFallback = 0.9990

// defaultElevationDecayM is the asymmetric elevation decay constant per
// planned route type, in meters.
var defaultElevationDecayM = map[types.RouteType]float64{
	types.RouteAlpine:  800,
	types.RouteIce:     800,
	types.RouteMixed:   800,
	types.RouteTrad:    1200,
	types.RouteAid:     1200,
	types.RouteSport:   1800,
	types.RouteBoulder: 3000,
}

const defaultElevationDecayFallbackM = 1200.0

// defaultSeverityBoost amplifies accidents by outcome severity.
var defaultSeverityBoost = map[types.Severity]float64{
	types.SeverityFatal:    1.30,
	types.SeveritySerious:  1.20,
	types.SeverityModerate: 1.10,
	types.SeverityMinor:    1.00,
	types.SeverityUnknown:  1.00,
}

// VariableWeights are the weather-variable weights of the similarity mean.
// Missing variables are skipped and the remaining weights renormalized.
type VariableWeights struct {
	Precipitation float64
	Wind          float64
	Temperature   float64
	CloudCover    float64
	Visibility    float64
}

// DefaultVariableWeights returns the calibrated similarity weights.
func DefaultVariableWeights() VariableWeights {
	return VariableWeights{
		Precipitation: 0.30,
		Wind:          0.25,
		Temperature:   0.20,
		CloudCover:    0.15,
		Visibility:    0.10,
	}
}

// Sum returns the total of all five weights.
func (w VariableWeights) Sum() float64 {
	return w.Precipitation + w.Wind + w.Temperature + w.CloudCover + w.Visibility
}

// Params enumerates every tunable of the prediction core in one immutable
// struct. Components receive it at construction and never mutate it, which
// keeps requests free of shared mutable state.
type Params struct {
	SpatialBandwidthKm       map[types.RouteType]float64
	SpatialBandwidthFallback float64
	TemporalDecay            map[types.RouteType]float64
	TemporalDecayFallback    float64
	SeasonalBoost            float64
	ElevationDecayM          map[types.RouteType]float64
	ElevationDecayFallback   float64
	SeverityBoost            map[types.Severity]float64
	Weights                  VariableWeights
	SimilarityExclusion      float64
	WeatherPower             float64
	NormalizationK           float64
	LocalRadiusKm            float64
	RouteAffinityThreshold   float64
	MaxContributors          int
	Vectorized               bool
}

// SpatialBandwidth returns sigma in kilometers for a planned route type.
func (p *Params) SpatialBandwidth(rt types.RouteType) float64 {
	if v, ok := p.SpatialBandwidthKm[rt]; ok {
		return v
	}
	return p.SpatialBandwidthFallback
}

// DecayFactor returns the daily temporal decay lambda for a planned route type.
func (p *Params) DecayFactor(rt types.RouteType) float64 {
	if v, ok := p.TemporalDecay[rt]; ok {
		return v
	}
	return p.TemporalDecayFallback
}

// ElevationDecay returns the elevation decay constant in meters for a
// planned route type.
func (p *Params) ElevationDecay(rt types.RouteType) float64 {
	if v, ok := p.ElevationDecayM[rt]; ok {
		return v
	}
	return p.ElevationDecayFallback
}

// SeverityWeight returns the booster for an accident severity.
func (p *Params) SeverityWeight(sev types.Severity) float64 {
	if v, ok := p.SeverityBoost[sev]; ok {
		return v
	}
	return 1.0
}

// DefaultParams returns the full parameter set with calibrated defaults.
// The maps are cloned so callers may override entries without touching the
// package-level tables.
func DefaultParams() *Params {
	return &Params{
		SpatialBandwidthKm:       maps.Clone(defaultSpatialBandwidthKm),
		SpatialBandwidthFallback: defaultSpatialBandwidthFallbackKm,
		TemporalDecay:            maps.Clone(defaultTemporalDecay),
		TemporalDecayFallback:    defaultTemporalDecayFallback,
		SeasonalBoost:            DefaultSeasonalBoost,
		ElevationDecayM:          maps.Clone(defaultElevationDecayM),
		ElevationDecayFallback:   defaultElevationDecayFallbackM,
		SeverityBoost:            maps.Clone(defaultSeverityBoost),
		Weights:                  DefaultVariableWeights(),
		SimilarityExclusion:      DefaultSimilarityExclusion,
		WeatherPower:             DefaultWeatherPower,
		NormalizationK:           DefaultNormalizationK,
		LocalRadiusKm:            DefaultLocalRadiusKm,
		RouteAffinityThreshold:   DefaultRouteAffinityThreshold,
		MaxContributors:          DefaultMaxContributors,
		Vectorized:               true,
	}
}

// Validate checks the parameter set for values that would corrupt scoring.
func (p *Params) Validate() error {
	if p.NormalizationK <= 0 {
		return fmt.Errorf("normalization constant must be positive, got %v", p.NormalizationK)
	}
	if p.SeasonalBoost < 1.0 {
		return fmt.Errorf("seasonal boost must be at least 1.0, got %v", p.SeasonalBoost)
	}
	if p.SimilarityExclusion < 0 || p.SimilarityExclusion > 1 {
		return fmt.Errorf("similarity exclusion threshold must be in [0,1], got %v", p.SimilarityExclusion)
	}
	if p.RouteAffinityThreshold < 0 || p.RouteAffinityThreshold > 1 {
		return fmt.Errorf("route affinity threshold must be in [0,1], got %v", p.RouteAffinityThreshold)
	}
	if p.LocalRadiusKm <= 0 {
		return fmt.Errorf("local radius must be positive, got %v", p.LocalRadiusKm)
	}
	if p.MaxContributors <= 0 {
		return fmt.Errorf("max contributors must be positive, got %d", p.MaxContributors)
	}
	if math.Abs(p.Weights.Sum()-1.0) > 1e-9 {
		return fmt.Errorf("variable weights must sum to 1.0, got %v", p.Weights.Sum())
	}
	for rt, v := range p.SpatialBandwidthKm {
		if v <= 0 {
			return fmt.Errorf("spatial bandwidth for %s must be positive, got %v", rt, v)
		}
	}
	for rt, v := range p.TemporalDecay {
		if v <= 0 || v > 1 {
			return fmt.Errorf("temporal decay for %s must be in (0,1], got %v", rt, v)
		}
	}
	for rt, v := range p.ElevationDecayM {
		if v <= 0 {
			return fmt.Errorf("elevation decay for %s must be positive, got %v", rt, v)
		}
	}
	return nil
}

// Params materializes the scoring parameter set from the prediction section,
// applying defaults for everything left unset, and validates the result.
func (c *ConfigData) Params() (*Params, error) {
	p := DefaultParams()

	if c.Prediction.NormalizationK != 0 {
		p.NormalizationK = c.Prediction.NormalizationK
	}
	if c.Prediction.SeasonalBoost != 0 {
		p.SeasonalBoost = c.Prediction.SeasonalBoost
	}
	if c.Prediction.MaxContributors != 0 {
		p.MaxContributors = c.Prediction.MaxContributors
	}
	if c.Prediction.Vectorized != nil {
		p.Vectorized = *c.Prediction.Vectorized
	}

	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid prediction parameters: %w", err)
	}
	return p, nil
}

// RouteMatrixJSON returns the route-type affinity table: the contents of
// prediction.matrix_path when configured, the built-in table otherwise.
func (c *ConfigData) RouteMatrixJSON() ([]byte, error) {
	if c.Prediction.MatrixPath == "" {
		return defaultRouteMatrixJSON, nil
	}
	data, err := os.ReadFile(c.Prediction.MatrixPath)
	if err != nil {
		return nil, fmt.Errorf("reading route matrix override %s: %w", c.Prediction.MatrixPath, err)
	}
	return data, nil
}

// RequestTimeout parses the server request timeout, applying the default
// when unset.
func (c *ConfigData) RequestTimeout() (time.Duration, error) {
	if c.Server.RequestTimeout == "" {
		return DefaultRequestTimeout, nil
	}
	d, err := time.ParseDuration(c.Server.RequestTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid server request_timeout %q: %w", c.Server.RequestTimeout, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("server request_timeout must be positive, got %v", d)
	}
	return d, nil
}
