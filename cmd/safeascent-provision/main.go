// safeascent-provision creates the accident database schema: the accidents
// table, the accident_weather daily-observation table, and the indexes the
// bulk window query depends on.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const schemaAccidents = `
CREATE TABLE IF NOT EXISTS accidents (
	id               BIGSERIAL PRIMARY KEY,
	latitude         DOUBLE PRECISION,
	longitude        DOUBLE PRECISION,
	elevation_meters DOUBLE PRECISION,
	accident_date    DATE,
	route_type       TEXT,
	severity         TEXT,
	details          JSONB NOT NULL DEFAULT '{}'
)`

const schemaAccidentWeather = `
CREATE TABLE IF NOT EXISTS accident_weather (
	accident_id         BIGINT NOT NULL REFERENCES accidents(id) ON DELETE CASCADE,
	date                DATE NOT NULL,
	temperature_avg     DOUBLE PRECISION,
	temperature_min     DOUBLE PRECISION,
	temperature_max     DOUBLE PRECISION,
	wind_speed_avg      DOUBLE PRECISION,
	wind_speed_max      DOUBLE PRECISION,
	precipitation_total DOUBLE PRECISION,
	cloud_cover_avg     DOUBLE PRECISION,
	visibility_avg      DOUBLE PRECISION,
	PRIMARY KEY (accident_id, date)
)`

var indexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_accidents_date ON accidents (accident_date)`,
	`CREATE INDEX IF NOT EXISTS idx_accidents_route_type ON accidents (route_type)`,
	`CREATE INDEX IF NOT EXISTS idx_accident_weather_accident_id ON accident_weather (accident_id)`,
}

func main() {
	var (
		dbHost    = flag.String("db-host", "localhost", "Database host")
		dbPort    = flag.Int("db-port", 5432, "Database port")
		dbUser    = flag.String("db-user", "safeascent", "Database user")
		dbPass    = flag.String("db-pass", "", "Database password")
		dbName    = flag.String("db-name", "safeascent", "Database name")
		sslMode   = flag.String("ssl-mode", "prefer", "SSL mode (disable, require, prefer)")
		timescale = flag.Bool("timescale", false, "Convert accident_weather into a TimescaleDB hypertable")
		drop      = flag.Bool("drop", false, "Drop existing tables first (DESTRUCTIVE)")
	)
	flag.Parse()

	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		*dbHost, *dbPort, *dbUser, *dbPass, *dbName, *sslMode)

	db, err := sql.Open("pgx", connStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error pinging database: %v\n", err)
		os.Exit(1)
	}

	if *drop {
		fmt.Println("Dropping existing tables...")
		for _, stmt := range []string{
			`DROP TABLE IF EXISTS accident_weather`,
			`DROP TABLE IF EXISTS accidents`,
		} {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				fmt.Fprintf(os.Stderr, "Error dropping tables: %v\n", err)
				os.Exit(1)
			}
		}
	}

	fmt.Println("Creating accidents table...")
	if _, err := db.ExecContext(ctx, schemaAccidents); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating accidents table: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Creating accident_weather table...")
	if _, err := db.ExecContext(ctx, schemaAccidentWeather); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating accident_weather table: %v\n", err)
		os.Exit(1)
	}

	for _, stmt := range indexes {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating index: %v\n", err)
			os.Exit(1)
		}
	}

	if *timescale {
		fmt.Println("Enabling TimescaleDB hypertable for accident_weather...")
		if _, err := db.ExecContext(ctx, `CREATE EXTENSION IF NOT EXISTS timescaledb`); err != nil {
			fmt.Fprintf(os.Stderr, "Error enabling timescaledb extension: %v\n", err)
			os.Exit(1)
		}
		if _, err := db.ExecContext(ctx,
			`SELECT create_hypertable('accident_weather', 'date', if_not_exists => TRUE, migrate_data => TRUE)`); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating hypertable: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Println("Schema provisioned successfully.")
}
