package restserver

import (
	"github.com/safeascent/safeascent/internal/cache"
	"github.com/safeascent/safeascent/internal/faults"
	"github.com/safeascent/safeascent/internal/types"
)

// predictRequest is the wire form of a prediction query. Coordinates are
// pointers so a missing field and a legitimate zero are distinguishable.
type predictRequest struct {
	Latitude        *float64 `json:"latitude" validate:"required,min=-90,max=90"`
	Longitude       *float64 `json:"longitude" validate:"required,min=-180,max=180"`
	ElevationMeters *float64 `json:"elevation_meters,omitempty" validate:"omitempty,min=-500,max=9000"`
	RouteType       string   `json:"route_type" validate:"required"`
	TargetDate      string   `json:"target_date" validate:"required"`
	SearchRadiusKm  *float64 `json:"search_radius_km,omitempty" validate:"omitempty,min=10,max=500"`
}

// contributorResponse is one ranked contributor with presentation rounding
// applied.
type contributorResponse struct {
	AccidentID     int64          `json:"accident_id"`
	DistanceKm     float64        `json:"distance_km"`
	DaysAgo        int            `json:"days_ago"`
	TotalInfluence float64        `json:"total_influence"`
	Severity       types.Severity `json:"severity"`
}

// predictResponse is the wire form of a prediction result. Scores are rounded
// to two decimals here and nowhere else.
type predictResponse struct {
	RiskScore       float64               `json:"risk_score"`
	Confidence      float64               `json:"confidence"`
	NumContributing int                   `json:"num_contributing_accidents"`
	TopContributors []contributorResponse `json:"top_contributing_accidents"`
	RouteType       types.RouteType       `json:"route_type"`
	TargetDate      string                `json:"target_date"`
	Vectorized      bool                  `json:"vectorized"`
	Degraded        bool                  `json:"degraded"`
}

// errorResponse is the wire form of any failed request.
type errorResponse struct {
	Error  string              `json:"error"`
	Fields []faults.FieldError `json:"fields,omitempty"`
}

// statusResponse reports service health detail for operators.
type statusResponse struct {
	Version       string      `json:"version"`
	UptimeSeconds int64       `json:"uptime_seconds"`
	Aggregator    string      `json:"aggregator"`
	Storage       string      `json:"storage"`
	Cache         cache.Stats `json:"cache"`
}

type healthResponse struct {
	Status string `json:"status"`
}
