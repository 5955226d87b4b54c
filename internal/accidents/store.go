// Package accidents loads the historical accident corpus and the per-accident
// weather windows the scoring core consumes.
package accidents

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/safeascent/safeascent/internal/database"
	"github.com/safeascent/safeascent/internal/faults"
	"github.com/safeascent/safeascent/internal/types"
	"go.uber.org/zap"
)

// windowDays is the span of a weather window: the accident day plus the six
// days before it.
const windowDays = 7

// Store reads accidents and their weather windows from the database.
type Store struct {
	db     *database.Client
	logger *zap.SugaredLogger
}

// NewStore creates a store backed by an established database client.
func NewStore(db *database.Client, logger *zap.SugaredLogger) *Store {
	return &Store{
		db:     db,
		logger: logger,
	}
}

// LoadAll returns every accident carrying both coordinates and a date. No
// spatial pre-filter happens here; the orchestrator owns candidate selection.
func (s *Store) LoadAll(ctx context.Context) ([]types.AccidentRecord, error) {
	var models []AccidentModel
	err := s.db.DB.WithContext(ctx).
		Where("latitude IS NOT NULL AND longitude IS NOT NULL AND accident_date IS NOT NULL").
		Order("id").
		Find(&models).Error
	if err != nil {
		return nil, s.classify("loading accidents", err)
	}

	records := make([]types.AccidentRecord, 0, len(models))
	for i := range models {
		m := &models[i]
		if m.Latitude == nil || m.Longitude == nil || m.AccidentDate == nil {
			continue
		}
		rec := types.AccidentRecord{
			ID:              m.ID,
			Latitude:        *m.Latitude,
			Longitude:       *m.Longitude,
			ElevationMeters: m.ElevationMeters,
			AccidentDate:    *m.AccidentDate,
			Severity:        types.ParseSeverity(m.Severity),
		}
		rec.RouteType, _ = types.ParseRouteType(m.RouteType)
		rec.Source = sourceFromDetails(m.Details.Bytes)
		records = append(records, rec)
	}

	s.logger.Debugf("loaded %d accidents from database", len(records))
	return records, nil
}

// AttachWeatherWindows populates each accident's weather pattern with the
// daily observations spanning the six days up to the accident date. The whole
// set is fetched in one JOINed query and grouped in memory, so the number of
// database round-trips stays constant no matter how many accidents are
// passed. Days absent from the table are preserved as gaps; an accident with
// no rows at all keeps a nil pattern and later scores the neutral similarity.
func (s *Store) AttachWeatherWindows(ctx context.Context, accidents []types.AccidentRecord) error {
	if len(accidents) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(accidents))
	byID := make(map[int64]*types.AccidentRecord, len(accidents))
	for i := range accidents {
		ids = append(ids, accidents[i].ID)
		byID[accidents[i].ID] = &accidents[i]
	}

	var rows []WeatherRow
	err := s.db.DB.WithContext(ctx).Raw(
		`SELECT w.accident_id, w.date,
		        w.temperature_avg, w.temperature_min, w.temperature_max,
		        w.wind_speed_avg, w.wind_speed_max,
		        w.precipitation_total, w.cloud_cover_avg, w.visibility_avg
		 FROM accident_weather w
		 JOIN accidents a ON a.id = w.accident_id
		 WHERE w.accident_id IN ?
		   AND w.date >= a.accident_date - INTERVAL '6 days'
		   AND w.date <= a.accident_date`, ids).
		Scan(&rows).Error
	if err != nil {
		return s.classify("loading weather windows", err)
	}

	attached := 0
	for i := range rows {
		row := &rows[i]
		rec, ok := byID[row.AccidentID]
		if !ok {
			continue
		}
		idx := dayIndex(rec.AccidentDate, row.Date)
		if idx < 0 || idx >= windowDays {
			continue
		}
		if rec.Weather == nil {
			rec.Weather = &types.WeatherPattern{}
			attached++
		}
		rec.Weather.Days[idx] = types.DailyWeather{
			TemperatureAvg:     row.TemperatureAvg,
			TemperatureMin:     row.TemperatureMin,
			TemperatureMax:     row.TemperatureMax,
			WindSpeedAvg:       row.WindSpeedAvg,
			WindSpeedMax:       row.WindSpeedMax,
			PrecipitationTotal: row.PrecipitationTotal,
			CloudCoverAvg:      row.CloudCoverAvg,
			VisibilityAvg:      row.VisibilityAvg,
		}
	}

	s.logger.Debugf("attached weather windows to %d of %d accidents (%d rows)",
		attached, len(accidents), len(rows))
	return nil
}

// classify maps a database error onto the fault taxonomy: a dead deadline is
// a Timeout, anything else on this path is ResourceUnavailable and retryable.
func (s *Store) classify(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return faults.Timeout(op+" exceeded the request deadline", err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return faults.ResourceUnavailable(op+" failed", err)
}

// dayIndex places an observation date inside the 7-day window: index 6 is the
// accident day, index 0 six days before. Dates are compared at midnight UTC
// so timezone noise in the stored timestamps cannot shift a day.
func dayIndex(accidentDate, obsDate time.Time) int {
	a := time.Date(accidentDate.Year(), accidentDate.Month(), accidentDate.Day(), 0, 0, 0, 0, time.UTC)
	o := time.Date(obsDate.Year(), obsDate.Month(), obsDate.Day(), 0, 0, 0, 0, time.UTC)
	back := int(a.Sub(o).Hours() / 24)
	return windowDays - 1 - back
}

func sourceFromDetails(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	var d accidentDetails
	if err := json.Unmarshal(raw, &d); err != nil {
		return ""
	}
	return d.Source
}
