package kernels

import (
	"math"
	"testing"
	"time"

	"github.com/safeascent/safeascent/internal/types"
	"github.com/safeascent/safeascent/pkg/config"
)

func newTestSet(t *testing.T) *Set {
	t.Helper()
	matrix, err := ParseRouteMatrix(config.DefaultRouteMatrixJSON())
	if err != nil {
		t.Fatalf("failed to parse built-in route matrix: %v", err)
	}
	return New(config.DefaultParams(), matrix)
}

func fptr(v float64) *float64 {
	return &v
}

func TestSpatialKernel(t *testing.T) {
	set := newTestSet(t)

	tests := []struct {
		name     string
		distance float64
		planned  types.RouteType
		expected float64
		epsilon  float64
	}{
		{
			name:     "zero distance is full weight",
			distance: 0,
			planned:  types.RouteAlpine,
			expected: 1.0,
			epsilon:  1e-12,
		},
		{
			name:     "alpine at one bandwidth",
			distance: 75, // sigma for alpine, exp(-0.5) = 0.60653
			planned:  types.RouteAlpine,
			expected: 0.60653,
			epsilon:  1e-5,
		},
		{
			name:     "sport at one bandwidth",
			distance: 30, // sigma for sport
			planned:  types.RouteSport,
			expected: 0.60653,
			epsilon:  1e-5,
		},
		{
			name:     "boulder decays fastest",
			distance: 50, // exp(-2500/800) = exp(-3.125) = 0.04394
			planned:  types.RouteBoulder,
			expected: 0.04394,
			epsilon:  1e-5,
		},
		{
			name:     "trad at 100 km",
			distance: 100, // exp(-10000/5000) = exp(-2) = 0.13534
			planned:  types.RouteTrad,
			expected: 0.13534,
			epsilon:  1e-5,
		},
		{
			name:     "unknown route type uses default bandwidth",
			distance: 50, // default sigma 50, exp(-0.5)
			planned:  types.RouteUnknown,
			expected: 0.60653,
			epsilon:  1e-5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := set.Spatial(tt.distance, tt.planned)
			if math.Abs(got-tt.expected) > tt.epsilon {
				t.Errorf("Spatial(%v, %s) = %.6f, want %.6f ± %g",
					tt.distance, tt.planned, got, tt.expected, tt.epsilon)
			}
		})
	}
}

func TestSpatialKernelMonotoneInDistance(t *testing.T) {
	set := newTestSet(t)

	prev := math.Inf(1)
	for d := 0.0; d <= 200.0; d += 10.0 {
		w := set.Spatial(d, types.RouteTrad)
		if w < 0 || w > 1 {
			t.Fatalf("Spatial(%v) = %v outside [0,1]", d, w)
		}
		if w >= prev {
			t.Fatalf("Spatial not strictly decreasing: w(%v) = %v, previous = %v", d, w, prev)
		}
		prev = w
	}
}

func TestTemporalKernelAtTargetDate(t *testing.T) {
	set := newTestSet(t)

	// An accident on the target date itself decays by nothing and always
	// lands in the seasonal window, so the weight is exactly the boost.
	date := time.Date(2025, time.July, 12, 0, 0, 0, 0, time.UTC)
	got := set.Temporal(date, date, types.RouteAlpine)
	if math.Abs(got-1.5) > 1e-12 {
		t.Errorf("Temporal(same date) = %v, want 1.5", got)
	}
}

func TestTemporalKernel(t *testing.T) {
	set := newTestSet(t)

	tests := []struct {
		name     string
		accident time.Time
		target   time.Time
		planned  types.RouteType
		expected float64
		epsilon  float64
	}{
		{
			name:     "alpine 487 days no seasonal overlap",
			accident: time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC),
			target:   time.Date(2025, time.July, 15, 0, 0, 0, 0, time.UTC),
			planned:  types.RouteAlpine,
			expected: 0.78383, // 0.9995^487
			epsilon:  1e-4,
		},
		{
			name:     "trad 100 days no seasonal overlap",
			accident: time.Date(2025, time.January, 10, 0, 0, 0, 0, time.UTC),
			target:   time.Date(2025, time.April, 20, 0, 0, 0, 0, time.UTC),
			planned:  types.RouteTrad,
			expected: 0.90479, // 0.9990^100
			epsilon:  1e-4,
		},
		{
			name:     "boulder 31 days with seasonal boost",
			accident: time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC),
			target:   time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC),
			planned:  types.RouteBoulder,
			expected: 1.43180, // 0.9985^31 * 1.5
			epsilon:  1e-4,
		},
		{
			name:     "unknown route type uses default decay",
			accident: time.Date(2025, time.January, 10, 0, 0, 0, 0, time.UTC),
			target:   time.Date(2025, time.April, 20, 0, 0, 0, 0, time.UTC),
			planned:  types.RouteUnknown,
			expected: 0.90479, // default lambda 0.9990
			epsilon:  1e-4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := set.Temporal(tt.accident, tt.target, tt.planned)
			if math.Abs(got-tt.expected) > tt.epsilon {
				t.Errorf("Temporal() = %.6f, want %.6f ± %g", got, tt.expected, tt.epsilon)
			}
		})
	}
}

func TestSeasonalMatch(t *testing.T) {
	tests := []struct {
		name     string
		accident time.Month
		target   time.Month
		expected bool
	}{
		{"same month", time.July, time.July, true},
		{"adjacent forward", time.January, time.February, true},
		{"adjacent backward", time.February, time.January, true},
		{"december wraps to january", time.December, time.January, true},
		{"january wraps to december", time.January, time.December, true},
		{"november to december", time.November, time.December, true},
		{"two months apart", time.January, time.March, false},
		{"june to august", time.June, time.August, false},
		{"may to december", time.May, time.December, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			accident := time.Date(2024, tt.accident, 10, 0, 0, 0, 0, time.UTC)
			target := time.Date(2025, tt.target, 10, 0, 0, 0, 0, time.UTC)
			if got := SeasonalMatch(accident, target); got != tt.expected {
				t.Errorf("SeasonalMatch(%s, %s) = %v, want %v",
					tt.accident, tt.target, got, tt.expected)
			}
		})
	}
}

func TestDaysElapsed(t *testing.T) {
	tests := []struct {
		name     string
		accident time.Time
		target   time.Time
		expected int
	}{
		{
			name:     "same day",
			accident: time.Date(2025, time.July, 12, 0, 0, 0, 0, time.UTC),
			target:   time.Date(2025, time.July, 12, 0, 0, 0, 0, time.UTC),
			expected: 0,
		},
		{
			name:     "next day",
			accident: time.Date(2025, time.July, 12, 0, 0, 0, 0, time.UTC),
			target:   time.Date(2025, time.July, 13, 0, 0, 0, 0, time.UTC),
			expected: 1,
		},
		{
			name:     "accident after target clamps to zero",
			accident: time.Date(2025, time.July, 20, 0, 0, 0, 0, time.UTC),
			target:   time.Date(2025, time.July, 12, 0, 0, 0, 0, time.UTC),
			expected: 0,
		},
		{
			name:     "across leap day",
			accident: time.Date(2024, time.February, 28, 0, 0, 0, 0, time.UTC),
			target:   time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
			expected: 2,
		},
		{
			name:     "one non-leap year",
			accident: time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC),
			target:   time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
			expected: 365,
		},
		{
			name:     "time of day is ignored",
			accident: time.Date(2025, time.January, 1, 23, 0, 0, 0, time.UTC),
			target:   time.Date(2025, time.January, 2, 1, 0, 0, 0, time.UTC),
			expected: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DaysElapsed(tt.accident, tt.target); got != tt.expected {
				t.Errorf("DaysElapsed() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestElevationKernel(t *testing.T) {
	set := newTestSet(t)

	tests := []struct {
		name     string
		accident *float64
		route    *float64
		planned  types.RouteType
		expected float64
		epsilon  float64
	}{
		{
			name:     "both elevations absent",
			accident: nil,
			route:    nil,
			planned:  types.RouteAlpine,
			expected: 1.0,
			epsilon:  1e-12,
		},
		{
			name:     "accident elevation absent",
			accident: nil,
			route:    fptr(2500),
			planned:  types.RouteAlpine,
			expected: 1.0,
			epsilon:  1e-12,
		},
		{
			name:     "route elevation absent",
			accident: fptr(2500),
			route:    nil,
			planned:  types.RouteAlpine,
			expected: 1.0,
			epsilon:  1e-12,
		},
		{
			name:     "accident below route counts in full",
			accident: fptr(1000),
			route:    fptr(3000),
			planned:  types.RouteAlpine,
			expected: 1.0,
			epsilon:  1e-12,
		},
		{
			name:     "equal elevations count in full",
			accident: fptr(2000),
			route:    fptr(2000),
			planned:  types.RouteAlpine,
			expected: 1.0,
			epsilon:  1e-12,
		},
		{
			name:     "alpine one decay constant above",
			accident: fptr(3300),
			route:    fptr(2500), // delta 800 = D, exp(-1) = 0.36788
			planned:  types.RouteAlpine,
			expected: 0.36788,
			epsilon:  1e-5,
		},
		{
			name:     "sport 900 m above",
			accident: fptr(2400),
			route:    fptr(1500), // delta 900, D 1800, exp(-0.25) = 0.77880
			planned:  types.RouteSport,
			expected: 0.77880,
			epsilon:  1e-5,
		},
		{
			name:     "boulder is most tolerant",
			accident: fptr(4000),
			route:    fptr(1000), // delta 3000 = D, exp(-1)
			planned:  types.RouteBoulder,
			expected: 0.36788,
			epsilon:  1e-5,
		},
		{
			name:     "unknown route type uses default constant",
			accident: fptr(2200),
			route:    fptr(1000), // delta 1200 = default D, exp(-1)
			planned:  types.RouteUnknown,
			expected: 0.36788,
			epsilon:  1e-5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := set.Elevation(tt.accident, tt.route, tt.planned)
			if math.Abs(got-tt.expected) > tt.epsilon {
				t.Errorf("Elevation() = %.6f, want %.6f ± %g", got, tt.expected, tt.epsilon)
			}
		})
	}
}

func TestSeverityBooster(t *testing.T) {
	set := newTestSet(t)

	tests := []struct {
		severity types.Severity
		expected float64
	}{
		{types.SeverityFatal, 1.30},
		{types.SeveritySerious, 1.20},
		{types.SeverityModerate, 1.10},
		{types.SeverityMinor, 1.00},
		{types.SeverityUnknown, 1.00},
	}

	for _, tt := range tests {
		t.Run(string(tt.severity), func(t *testing.T) {
			if got := set.Severity(tt.severity); got != tt.expected {
				t.Errorf("Severity(%s) = %v, want %v", tt.severity, got, tt.expected)
			}
		})
	}
}
