// Package kernels implements the weighting functions that score how much a
// historical accident should count toward a planned route: spatial and
// temporal decay, elevation asymmetry, route-type affinity, and severity.
// Every formula lives here exactly once; the scalar and vectorized
// aggregators both call through this package so they cannot drift apart.
package kernels

import (
	"math"
	"time"

	"github.com/safeascent/safeascent/internal/types"
	"github.com/safeascent/safeascent/pkg/config"
)

// Set bundles the kernel parameters and the route-type matrix resolved at
// startup. A Set is immutable after construction and safe for concurrent use.
type Set struct {
	params *config.Params
	matrix *RouteMatrix
}

// New creates a kernel set from validated parameters and a parsed matrix.
func New(params *config.Params, matrix *RouteMatrix) *Set {
	return &Set{
		params: params,
		matrix: matrix,
	}
}

// Params returns the parameter set the kernels were built with.
func (s *Set) Params() *config.Params {
	return s.params
}

// Matrix returns the route-type affinity matrix.
func (s *Set) Matrix() *RouteMatrix {
	return s.matrix
}

// Spatial returns the Gaussian distance weight exp(-d²/(2σ²)) where the
// bandwidth σ is selected by the planned route type.
func (s *Set) Spatial(distanceKm float64, planned types.RouteType) float64 {
	sigma := s.params.SpatialBandwidth(planned)
	return math.Exp(-(distanceKm * distanceKm) / (2 * sigma * sigma))
}

// Temporal returns λ^n multiplied by the seasonal boost, where n is the
// number of whole days between the accident and the target date and λ is the
// daily decay factor for the planned route type.
func (s *Set) Temporal(accidentDate, targetDate time.Time, planned types.RouteType) float64 {
	lambda := s.params.DecayFactor(planned)
	n := DaysElapsed(accidentDate, targetDate)
	w := math.Pow(lambda, float64(n))
	if SeasonalMatch(accidentDate, targetDate) {
		w *= s.params.SeasonalBoost
	}
	return w
}

// Elevation returns the asymmetric altitude weight. Accidents below the
// planned route always count in full; accidents above it decay with
// exp(-(Δ/D)²). A missing elevation on either side is treated as neutral.
func (s *Set) Elevation(accidentElev, routeElev *float64, planned types.RouteType) float64 {
	if accidentElev == nil || routeElev == nil {
		return 1.0
	}
	delta := *accidentElev - *routeElev
	if delta <= 0 {
		return 1.0
	}
	d := s.params.ElevationDecay(planned)
	r := delta / d
	return math.Exp(-(r * r))
}

// RouteAffinity returns the matrix weight for (planned, accident) with the
// matrix's fallback for unrecognized pairs.
func (s *Set) RouteAffinity(planned, accident types.RouteType) float64 {
	return s.matrix.Weight(planned, accident)
}

// Severity returns the severity booster in [1.0, 1.3].
func (s *Set) Severity(sev types.Severity) float64 {
	return s.params.SeverityWeight(sev)
}

// DaysElapsed counts whole calendar days from the accident date to the
// target date, clamped at zero so future-dated records never produce
// negative exponents. Both dates are normalized to midnight UTC first.
func DaysElapsed(accidentDate, targetDate time.Time) int {
	a := midnightUTC(accidentDate)
	t := midnightUTC(targetDate)
	n := int(t.Sub(a).Hours() / 24)
	if n < 0 {
		return 0
	}
	return n
}

// SeasonalMatch reports whether the accident month is within one month of
// the target month on the modular calendar, so December and January count as
// adjacent.
func SeasonalMatch(accidentDate, targetDate time.Time) bool {
	am := int(accidentDate.Month()) - 1
	tm := int(targetDate.Month()) - 1
	d := am - tm
	if d < 0 {
		d = -d
	}
	if d > 6 {
		d = 12 - d
	}
	return d <= 1
}

func midnightUTC(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
