package accidents

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/safeascent/safeascent/internal/database"
	"github.com/safeascent/safeascent/internal/faults"
	"github.com/safeascent/safeascent/internal/log"
	"github.com/safeascent/safeascent/internal/types"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB, PreferSimpleProtocol: true}),
		&gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		t.Fatalf("failed to open gorm over sqlmock: %v", err)
	}

	client := database.NewClientFromGorm(gdb, log.GetSugaredLogger())
	return NewStore(client, log.GetSugaredLogger()), mock
}

func accidentColumns() []string {
	return []string{"id", "latitude", "longitude", "elevation_meters", "accident_date", "route_type", "severity", "details"}
}

func weatherColumns() []string {
	return []string{
		"accident_id", "date",
		"temperature_avg", "temperature_min", "temperature_max",
		"wind_speed_avg", "wind_speed_max",
		"precipitation_total", "cloud_cover_avg", "visibility_avg",
	}
}

func TestLoadAllMapsRows(t *testing.T) {
	store, mock := newMockStore(t)

	date := time.Date(2019, 7, 20, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(accidentColumns()).
		AddRow(int64(1), 40.25, -105.62, 4100.0, date, "alpine", "fatal", []byte(`{"source":"anac"}`)).
		AddRow(int64(2), 39.10, -106.40, nil, date, "gym", "bruised", nil)

	mock.ExpectQuery(`SELECT \* FROM "accidents"`).WillReturnRows(rows)

	records, err := store.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("LoadAll returned error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	first := records[0]
	if first.ID != 1 || first.RouteType != types.RouteAlpine || first.Severity != types.SeverityFatal {
		t.Errorf("first record mapped wrong: %+v", first)
	}
	if first.ElevationMeters == nil || *first.ElevationMeters != 4100.0 {
		t.Errorf("expected elevation 4100, got %v", first.ElevationMeters)
	}
	if first.Source != "anac" {
		t.Errorf("expected source anac, got %q", first.Source)
	}

	second := records[1]
	if second.RouteType != types.RouteUnknown {
		t.Errorf("unrecognized route type should map to unknown, got %s", second.RouteType)
	}
	if second.Severity != types.SeverityUnknown {
		t.Errorf("unrecognized severity should map to unknown, got %s", second.Severity)
	}
	if second.ElevationMeters != nil {
		t.Errorf("missing elevation should stay nil, got %v", second.ElevationMeters)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestLoadAllTransportErrorIsResourceUnavailable(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT \* FROM "accidents"`).WillReturnError(gorm.ErrInvalidDB)

	_, err := store.LoadAll(context.Background())
	if err == nil {
		t.Fatal("expected an error")
	}
	if !faults.IsKind(err, faults.KindResourceUnavailable) {
		t.Errorf("expected ResourceUnavailable, got %v", err)
	}
}

// The bulk-load contract: attaching windows for N accidents issues exactly
// one query. sqlmock fails the test if a second query is attempted.
func TestAttachWeatherWindowsSingleQuery(t *testing.T) {
	store, mock := newMockStore(t)

	day := func(offset int) time.Time {
		return time.Date(2019, 7, 20, 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
	}

	accidents := []types.AccidentRecord{
		{ID: 1, AccidentDate: day(0)},
		{ID: 2, AccidentDate: day(0)},
		{ID: 3, AccidentDate: day(0)},
	}

	temp := 12.5
	wind := 20.0
	rows := sqlmock.NewRows(weatherColumns()).
		// accident 1: anchor day and the earliest day; days 1..5 are gaps
		AddRow(int64(1), day(0), temp, nil, nil, wind, nil, 0.0, nil, nil).
		AddRow(int64(1), day(-6), temp, nil, nil, nil, nil, nil, nil, nil).
		// accident 2: a single mid-window day
		AddRow(int64(2), day(-3), nil, nil, nil, nil, nil, 4.2, nil, nil)

	mock.ExpectQuery(`FROM accident_weather w`).WillReturnRows(rows)

	if err := store.AttachWeatherWindows(context.Background(), accidents); err != nil {
		t.Fatalf("AttachWeatherWindows returned error: %v", err)
	}

	if accidents[0].Weather == nil {
		t.Fatal("accident 1 should have a weather pattern")
	}
	if accidents[0].Weather.Days[6].TemperatureAvg == nil {
		t.Error("accident 1 anchor day observation missing")
	}
	if accidents[0].Weather.Days[0].TemperatureAvg == nil {
		t.Error("accident 1 earliest day observation missing")
	}
	for i := 1; i <= 5; i++ {
		if accidents[0].Weather.Days[i].HasData() {
			t.Errorf("accident 1 day %d should be a gap", i)
		}
	}

	if accidents[1].Weather == nil || accidents[1].Weather.Days[3].PrecipitationTotal == nil {
		t.Error("accident 2 mid-window observation missing")
	}

	if accidents[2].Weather != nil {
		t.Error("accident 3 has no rows and should keep a nil pattern")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expected exactly one weather query: %v", err)
	}
}

func TestAttachWeatherWindowsEmptySet(t *testing.T) {
	store, mock := newMockStore(t)

	// No query expectations: an empty candidate set must not touch the database.
	if err := store.AttachWeatherWindows(context.Background(), nil); err != nil {
		t.Fatalf("AttachWeatherWindows on empty set returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unexpected database access: %v", err)
	}
}

func TestDayIndex(t *testing.T) {
	anchor := time.Date(2019, 7, 20, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		obs  time.Time
		want int
	}{
		{"accident day", anchor, 6},
		{"one day before", anchor.AddDate(0, 0, -1), 5},
		{"window start", anchor.AddDate(0, 0, -6), 0},
		{"before the window", anchor.AddDate(0, 0, -7), -1},
		{"after the accident", anchor.AddDate(0, 0, 1), 7},
		{"noon timestamp same day", time.Date(2019, 7, 20, 12, 30, 0, 0, time.UTC), 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := dayIndex(anchor, tt.obs); got != tt.want {
				t.Errorf("dayIndex = %d, want %d", got, tt.want)
			}
		})
	}
}
