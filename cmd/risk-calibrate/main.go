// risk-calibrate estimates the score normalization constant from a live
// accident corpus. It replays every accident location as a probe query,
// accumulates the raw influence sums the kernels produce, and reports the
// constant that maps the chosen percentile onto the chosen target score.
//
// Weather similarity is held at the neutral 0.5 for every pair, so the
// reported constant reflects corpus density and recency rather than one
// day's forecast.
package main

import (
	"database/sql"
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	_ "github.com/lib/pq"
	"gonum.org/v1/gonum/stat"

	"github.com/safeascent/safeascent/internal/kernels"
	"github.com/safeascent/safeascent/internal/types"
	"github.com/safeascent/safeascent/pkg/config"
	"github.com/safeascent/safeascent/pkg/geo"
)

// neutralAmplifier is similarity^power at the neutral similarity 0.5.
const neutralSimilarity = 0.5

type accident struct {
	id        int64
	latitude  float64
	longitude float64
	elevation *float64
	date      time.Time
	routeType types.RouteType
	severity  types.Severity
}

type probeResult struct {
	accidentID   int64
	routeType    types.RouteType
	candidates   int
	contributing int
	rawSum       float64
}

func main() {
	var (
		dbHost     = flag.String("db-host", "localhost", "Database host")
		dbPort     = flag.Int("db-port", 5432, "Database port")
		dbUser     = flag.String("db-user", "safeascent", "Database user")
		dbPass     = flag.String("db-pass", "", "Database password")
		dbName     = flag.String("db-name", "safeascent", "Database name")
		percentile = flag.Float64("percentile", 0.95, "Raw-sum percentile to pin to the target score")
		target     = flag.Float64("target-score", 90.0, "Score the pinned percentile should map to")
		maxProbes  = flag.Int("max-probes", 2000, "Maximum number of probe locations to replay")
		csvOutput  = flag.String("csv", "", "Optional CSV output file path")
	)
	flag.Parse()

	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		*dbHost, *dbPort, *dbUser, *dbPass, *dbName)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		fmt.Fprintf(os.Stderr, "Error pinging database: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Risk Score Normalization Calibration\n")
	fmt.Printf("====================================\n\n")

	accidents := fetchAccidents(db)
	if len(accidents) < 10 {
		fmt.Fprintf(os.Stderr, "Error: Not enough accidents (%d). Need at least 10.\n", len(accidents))
		os.Exit(1)
	}
	fmt.Printf("Loaded %d accidents\n", len(accidents))

	matrix, err := kernels.ParseRouteMatrix(config.DefaultRouteMatrixJSON())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing route matrix: %v\n", err)
		os.Exit(1)
	}
	params := config.DefaultParams()
	set := kernels.New(params, matrix)

	probes := accidents
	if len(probes) > *maxProbes {
		probes = probes[:*maxProbes]
	}
	fmt.Printf("Replaying %d probe locations\n\n", len(probes))

	targetDate := time.Now().UTC()
	results := replayProbes(set, params, accidents, probes, targetDate)

	displayReport(results, params, *percentile, *target)

	if *csvOutput != "" {
		if err := exportCSV(*csvOutput, results); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing CSV: %v\n", err)
		} else {
			fmt.Printf("\nData exported to: %s\n", *csvOutput)
		}
	}
}

func fetchAccidents(db *sql.DB) []accident {
	query := `
		SELECT id, latitude, longitude, elevation_meters, accident_date, route_type, severity
		FROM accidents
		WHERE latitude IS NOT NULL
		  AND longitude IS NOT NULL
		  AND accident_date IS NOT NULL
		ORDER BY id
	`

	rows, err := db.Query(query)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error querying accidents: %v\n", err)
		os.Exit(1)
	}
	defer rows.Close()

	var accidents []accident
	for rows.Next() {
		var a accident
		var routeType, severity sql.NullString
		if err := rows.Scan(&a.id, &a.latitude, &a.longitude, &a.elevation, &a.date, &routeType, &severity); err != nil {
			fmt.Fprintf(os.Stderr, "Error scanning row: %v\n", err)
			os.Exit(1)
		}
		a.routeType, _ = types.ParseRouteType(routeType.String)
		a.severity = types.ParseSeverity(severity.String)
		accidents = append(accidents, a)
	}
	if err := rows.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading rows: %v\n", err)
		os.Exit(1)
	}
	return accidents
}

// replayProbes scores every probe against the full corpus with the neutral
// similarity amplifier applied uniformly.
func replayProbes(set *kernels.Set, params *config.Params, corpus, probes []accident, targetDate time.Time) []probeResult {
	amplifier := 1.0
	for i := 0; i < int(params.WeatherPower); i++ {
		amplifier *= neutralSimilarity
	}

	results := make([]probeResult, 0, len(probes))
	for _, probe := range probes {
		var routeElev *float64
		if probe.elevation != nil {
			e := *probe.elevation
			routeElev = &e
		}

		res := probeResult{accidentID: probe.id, routeType: probe.routeType}
		for _, acc := range corpus {
			if acc.id == probe.id {
				continue
			}

			d := geo.DistanceKm(probe.latitude, probe.longitude, acc.latitude, acc.longitude)
			affinity := set.RouteAffinity(probe.routeType, acc.routeType)
			if d > params.LocalRadiusKm && affinity < params.RouteAffinityThreshold {
				continue
			}
			res.candidates++

			base := set.Spatial(d, probe.routeType) *
				set.Temporal(acc.date, targetDate, probe.routeType) *
				set.Elevation(acc.elevation, routeElev, probe.routeType) *
				affinity *
				set.Severity(acc.severity)

			total := base * amplifier
			if total > 0 {
				res.contributing++
				res.rawSum += total
			}
		}
		results = append(results, res)
	}
	return results
}

func displayReport(results []probeResult, params *config.Params, percentile, target float64) {
	sums := make([]float64, len(results))
	for i, r := range results {
		sums[i] = r.rawSum
	}
	sort.Float64s(sums)

	mean := stat.Mean(sums, nil)
	p50 := stat.Quantile(0.50, stat.Empirical, sums, nil)
	p90 := stat.Quantile(0.90, stat.Empirical, sums, nil)
	pinned := stat.Quantile(percentile, stat.Empirical, sums, nil)

	fmt.Printf("Raw influence sums (neutral weather):\n")
	fmt.Printf("  mean:   %10.4f\n", mean)
	fmt.Printf("  median: %10.4f\n", p50)
	fmt.Printf("  p90:    %10.4f\n", p90)
	fmt.Printf("  p%.0f:    %10.4f\n", percentile*100, pinned)
	fmt.Printf("  max:    %10.4f\n\n", sums[len(sums)-1])

	if pinned <= 0 {
		fmt.Println("Pinned percentile is zero; the corpus is too sparse to calibrate against.")
		return
	}

	suggested := target / pinned
	fmt.Printf("Current normalization constant:   %.4f\n", params.NormalizationK)
	fmt.Printf("Suggested normalization constant: %.4f\n", suggested)
	fmt.Printf("  (maps the p%.0f raw sum %.4f onto a score of %.0f)\n",
		percentile*100, pinned, target)

	saturated := 0
	for _, s := range sums {
		if s*suggested > 100 {
			saturated++
		}
	}
	fmt.Printf("  %d of %d probes (%.1f%%) would saturate at 100\n",
		saturated, len(sums), 100*float64(saturated)/float64(len(sums)))
}

func exportCSV(path string, results []probeResult) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"accident_id", "route_type", "candidates", "contributing", "raw_sum"}); err != nil {
		return err
	}
	for _, r := range results {
		record := []string{
			fmt.Sprintf("%d", r.accidentID),
			string(r.routeType),
			fmt.Sprintf("%d", r.candidates),
			fmt.Sprintf("%d", r.contributing),
			fmt.Sprintf("%.6f", r.rawSum),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	return w.Error()
}
