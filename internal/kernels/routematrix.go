package kernels

import (
	"encoding/json"
	"fmt"

	"github.com/safeascent/safeascent/internal/types"
)

// routeMatrixFile mirrors the on-disk JSON layout of the affinity table.
type routeMatrixFile struct {
	Version    int                           `json:"version"`
	Default    float64                       `json:"default"`
	RouteTypes []string                      `json:"route_types"`
	Weights    map[string]map[string]float64 `json:"weights"`
}

// RouteMatrix is the 7x7 affinity table indexed by (planned, accident) route
// type. Lookups for pairs the table does not cover return the fallback
// weight, which is spec'd behavior for unrecognized combinations rather than
// an error. Immutable after parse.
type RouteMatrix struct {
	version  int
	fallback float64
	weights  map[types.RouteType]map[types.RouteType]float64
}

// ParseRouteMatrix parses and validates an affinity table document. Every
// named route type must be recognized and every weight must sit in [0,1];
// a malformed table aborts startup rather than silently skewing scores.
func ParseRouteMatrix(data []byte) (*RouteMatrix, error) {
	var doc routeMatrixFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse route matrix: %w", err)
	}

	if doc.Default < 0 || doc.Default > 1 {
		return nil, fmt.Errorf("route matrix default weight %v outside [0,1]", doc.Default)
	}

	m := &RouteMatrix{
		version:  doc.Version,
		fallback: doc.Default,
		weights:  make(map[types.RouteType]map[types.RouteType]float64, len(doc.Weights)),
	}

	for planned, row := range doc.Weights {
		prt, ok := types.ParseRouteType(planned)
		if !ok {
			return nil, fmt.Errorf("route matrix names unknown planned route type %q", planned)
		}
		parsed := make(map[types.RouteType]float64, len(row))
		for accident, w := range row {
			art, ok := types.ParseRouteType(accident)
			if !ok {
				return nil, fmt.Errorf("route matrix names unknown accident route type %q under %q", accident, planned)
			}
			if w < 0 || w > 1 {
				return nil, fmt.Errorf("route matrix weight (%s, %s) = %v outside [0,1]", planned, accident, w)
			}
			parsed[art] = w
		}
		m.weights[prt] = parsed
	}

	return m, nil
}

// Weight returns the affinity for (planned, accident), or the fallback for
// pairs the table does not cover.
func (m *RouteMatrix) Weight(planned, accident types.RouteType) float64 {
	if row, ok := m.weights[planned]; ok {
		if w, ok := row[accident]; ok {
			return w
		}
	}
	return m.fallback
}

// Version returns the table's version number for the status endpoint.
func (m *RouteMatrix) Version() int {
	return m.version
}

// Fallback returns the weight used for unrecognized pairs.
func (m *RouteMatrix) Fallback() float64 {
	return m.fallback
}
