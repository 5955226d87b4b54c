package weather

import (
	"fmt"
	"time"

	"github.com/safeascent/safeascent/internal/types"
)

// dailyVariables is the variable list requested from the provider; it covers
// exactly the fields the similarity function consumes.
const dailyVariables = "temperature_2m_mean,temperature_2m_min,temperature_2m_max," +
	"wind_speed_10m_mean,wind_speed_10m_max,precipitation_sum,cloud_cover_mean,visibility_mean"

// openMeteoResponse is the provider's daily-forecast envelope. Null entries
// in the arrays survive decoding as nil pointers, which is how missing days
// stay missing instead of becoming zeroes.
type openMeteoResponse struct {
	Error  bool           `json:"error"`
	Reason string         `json:"reason"`
	Daily  openMeteoDaily `json:"daily"`
}

type openMeteoDaily struct {
	Time             []string   `json:"time"`
	TemperatureMean  []*float64 `json:"temperature_2m_mean"`
	TemperatureMin   []*float64 `json:"temperature_2m_min"`
	TemperatureMax   []*float64 `json:"temperature_2m_max"`
	WindSpeedMean    []*float64 `json:"wind_speed_10m_mean"`
	WindSpeedMax     []*float64 `json:"wind_speed_10m_max"`
	PrecipitationSum []*float64 `json:"precipitation_sum"`
	CloudCoverMean   []*float64 `json:"cloud_cover_mean"`
	VisibilityMean   []*float64 `json:"visibility_mean"`
}

// toPattern maps the provider's parallel daily arrays onto a 7-day window
// ending at anchor. Days outside the response, and null entries inside it,
// remain absent.
func (r *openMeteoResponse) toPattern(anchor time.Time) (types.WeatherPattern, error) {
	var p types.WeatherPattern

	start := anchor.AddDate(0, 0, -6)
	for i, ds := range r.Daily.Time {
		day, err := time.Parse("2006-01-02", ds)
		if err != nil {
			return p, fmt.Errorf("provider returned unparseable date %q: %v", ds, err)
		}
		idx := int(day.Sub(start).Hours() / 24)
		if idx < 0 || idx > 6 {
			continue
		}
		p.Days[idx] = types.DailyWeather{
			TemperatureAvg:     at(r.Daily.TemperatureMean, i),
			TemperatureMin:     at(r.Daily.TemperatureMin, i),
			TemperatureMax:     at(r.Daily.TemperatureMax, i),
			WindSpeedAvg:       at(r.Daily.WindSpeedMean, i),
			WindSpeedMax:       at(r.Daily.WindSpeedMax, i),
			PrecipitationTotal: at(r.Daily.PrecipitationSum, i),
			CloudCoverAvg:      at(r.Daily.CloudCoverMean, i),
			VisibilityAvg:      at(r.Daily.VisibilityMean, i),
		}
	}
	return p, nil
}

// dailyObservations flattens the response into dated observations for
// climatological aggregation.
func (r *openMeteoResponse) dailyObservations() ([]dailyObservation, error) {
	obs := make([]dailyObservation, 0, len(r.Daily.Time))
	for i, ds := range r.Daily.Time {
		day, err := time.Parse("2006-01-02", ds)
		if err != nil {
			return nil, fmt.Errorf("provider returned unparseable date %q: %v", ds, err)
		}
		obs = append(obs, dailyObservation{
			Date:          day,
			Temperature:   at(r.Daily.TemperatureMean, i),
			WindSpeed:     at(r.Daily.WindSpeedMean, i),
			Precipitation: at(r.Daily.PrecipitationSum, i),
			CloudCover:    at(r.Daily.CloudCoverMean, i),
			Visibility:    at(r.Daily.VisibilityMean, i),
		})
	}
	return obs, nil
}

// dailyObservation is one archive day used to derive climatological stats.
type dailyObservation struct {
	Date          time.Time
	Temperature   *float64
	WindSpeed     *float64
	Precipitation *float64
	CloudCover    *float64
	Visibility    *float64
}

func at(arr []*float64, i int) *float64 {
	if i < 0 || i >= len(arr) {
		return nil
	}
	return arr[i]
}
