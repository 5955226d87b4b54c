package accidents

import (
	"time"

	"github.com/jackc/pgtype"
)

// AccidentModel maps the accidents table. Nullable columns use pointers so a
// missing elevation stays missing instead of becoming zero.
type AccidentModel struct {
	ID              int64        `gorm:"column:id;primaryKey"`
	Latitude        *float64     `gorm:"column:latitude"`
	Longitude       *float64     `gorm:"column:longitude"`
	ElevationMeters *float64     `gorm:"column:elevation_meters"`
	AccidentDate    *time.Time   `gorm:"column:accident_date"`
	RouteType       string       `gorm:"column:route_type"`
	Severity        string       `gorm:"column:severity"`
	Details         pgtype.JSONB `gorm:"column:details;type:jsonb"`
}

// TableName sets the table name for GORM
func (AccidentModel) TableName() string {
	return "accidents"
}

// accidentDetails is the subset of the details JSONB column the core reads.
type accidentDetails struct {
	Source string `json:"source"`
}

// WeatherRow maps one daily observation from the accident_weather table.
type WeatherRow struct {
	AccidentID         int64     `gorm:"column:accident_id"`
	Date               time.Time `gorm:"column:date"`
	TemperatureAvg     *float64  `gorm:"column:temperature_avg"`
	TemperatureMin     *float64  `gorm:"column:temperature_min"`
	TemperatureMax     *float64  `gorm:"column:temperature_max"`
	WindSpeedAvg       *float64  `gorm:"column:wind_speed_avg"`
	WindSpeedMax       *float64  `gorm:"column:wind_speed_max"`
	PrecipitationTotal *float64  `gorm:"column:precipitation_total"`
	CloudCoverAvg      *float64  `gorm:"column:cloud_cover_avg"`
	VisibilityAvg      *float64  `gorm:"column:visibility_avg"`
}

// TableName sets the table name for GORM
func (WeatherRow) TableName() string {
	return "accident_weather"
}
