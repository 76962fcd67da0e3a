// Package engine pushes the partitioning and windowing down to an
// external SQL engine. The database evaluates the group-by/aggregate
// plan with its own internal parallelism; the caller only measures
// wall-clock time from submit to final materialization.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"weatherbench/internal/analytics"
	"weatherbench/internal/anomaly"
	"weatherbench/internal/execution"
	"weatherbench/internal/readings"
)

const insertBatchRows = 500

// ErrUnsupportedRule indicates a rule the SQL plan cannot express.
var ErrUnsupportedRule = errors.New("engine: unsupported anomaly rule")

// Backend materializes the run's readings into a working table once,
// then computes all three metrics as SQL aggregates.
type Backend struct {
	db     *sql.DB
	rule   anomaly.Rule
	logger *log.Logger
}

// New wires an engine backend. Only the two known rule variants are
// accepted; anything else is a configuration error surfaced here.
func New(db *sql.DB, rule anomaly.Rule, logger *log.Logger) (*Backend, error) {
	if db == nil {
		return nil, errors.New("engine: nil db")
	}
	switch rule.(type) {
	case *anomaly.FixedBounds, *anomaly.StatisticalDeviation:
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedRule, rule)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Backend{db: db, rule: rule, logger: logger}, nil
}

// Name implements execution.Backend.
func (b *Backend) Name() string { return "engine" }

// Run implements execution.Backend. The region partitions define row
// order in the working table; the bench service builds station and
// region partitions over the same readings, so loading one cover loads
// every row exactly once.
func (b *Backend) Run(ctx context.Context, req execution.Request) (execution.RunResult, error) {
	start := time.Now()
	if req.Units() == 0 {
		return execution.RunResult{ElapsedMS: elapsedMS(start)}, nil
	}

	cover := req.Regions
	if len(cover) == 0 {
		cover = req.Stations
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return execution.RunResult{}, fmt.Errorf("engine: begin: %w", err)
	}
	defer tx.Rollback()

	if err := b.load(ctx, tx, cover); err != nil {
		return execution.RunResult{}, err
	}

	var frags analytics.Fragments
	if len(req.Stations) > 0 {
		if frags.Percentages, err = b.queryPercentages(ctx, tx); err != nil {
			return execution.RunResult{}, err
		}
		if frags.CoOccurrences, err = b.queryCoOccurrences(ctx, tx); err != nil {
			return execution.RunResult{}, err
		}
	}
	if len(req.Regions) > 0 {
		if frags.RegionalAverages, err = b.queryRegionalAverages(ctx, tx); err != nil {
			return execution.RunResult{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return execution.RunResult{}, fmt.Errorf("engine: commit: %w", err)
	}
	return execution.RunResult{
		ElapsedMS: elapsedMS(start),
		Fragments: analytics.Merge(frags),
	}, nil
}

// load creates the transaction-scoped working table and bulk-inserts the
// readings. seq preserves partition order so window frames tie-break the
// same way every backend does.
func (b *Backend) load(ctx context.Context, tx *sql.Tx, cover []readings.Partition) error {
	const ddl = `
CREATE TEMP TABLE wb_readings (
    seq         bigint PRIMARY KEY,
    ts          timestamptz NOT NULL,
    station_id  text NOT NULL,
    region      text NOT NULL,
    temperature double precision NOT NULL,
    humidity    double precision NOT NULL,
    pressure    double precision NOT NULL
) ON COMMIT DROP`
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("engine: create working table: %w", err)
	}

	seq := 0
	batch := make([]readings.Reading, 0, insertBatchRows)
	seqs := make([]int, 0, insertBatchRows)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		query, args := buildInsert(batch, seqs)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("engine: insert batch: %w", err)
		}
		batch = batch[:0]
		seqs = seqs[:0]
		return nil
	}

	for _, p := range cover {
		for _, r := range p.Readings {
			batch = append(batch, r)
			seqs = append(seqs, seq)
			seq++
			if len(batch) == insertBatchRows {
				if err := flush(); err != nil {
					return err
				}
			}
		}
	}
	return flush()
}

func buildInsert(batch []readings.Reading, seqs []int) (string, []any) {
	query := "INSERT INTO wb_readings (seq, ts, station_id, region, temperature, humidity, pressure) VALUES "
	args := make([]any, 0, len(batch)*7)
	for i, r := range batch {
		if i > 0 {
			query += ","
		}
		base := i * 7
		query += fmt.Sprintf("($%d,$%d,$%d,$%d,$%d,$%d,$%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7)
		args = append(args, seqs[i], r.TS.UTC(), r.StationID, r.Region,
			r.Temperature, r.Humidity, r.Pressure)
	}
	return query, args
}

// flaggedCTE renders the anomaly-flag stage of each query for the active
// rule, with per-group statistics when the rule is statistical.
func (b *Backend) flaggedCTE(groupCol string) (string, []any) {
	switch rule := b.rule.(type) {
	case *anomaly.FixedBounds:
		tb, _ := rule.Bounds(readings.SensorTemperature)
		hb, _ := rule.Bounds(readings.SensorHumidity)
		pb, _ := rule.Bounds(readings.SensorPressure)
		cte := `flagged AS (
    SELECT r.*,
        (r.temperature < $1 OR r.temperature > $2) AS t_anom,
        (r.humidity    < $3 OR r.humidity    > $4) AS h_anom,
        (r.pressure    < $5 OR r.pressure    > $6) AS p_anom
    FROM wb_readings r
)`
		return cte, []any{tb.Min, tb.Max, hb.Min, hb.Max, pb.Min, pb.Max}
	case *anomaly.StatisticalDeviation:
		cte := fmt.Sprintf(`grp_stats AS (
    SELECT %[1]s AS grp,
        avg(temperature) AS mt, coalesce(stddev_samp(temperature), 0) AS st,
        avg(humidity)    AS mh, coalesce(stddev_samp(humidity), 0)    AS sh,
        avg(pressure)    AS mp, coalesce(stddev_samp(pressure), 0)    AS sp
    FROM wb_readings
    GROUP BY %[1]s
),
flagged AS (
    SELECT r.*,
        (s.st > 0 AND abs(r.temperature - s.mt) > $1 * s.st) AS t_anom,
        (s.sh > 0 AND abs(r.humidity    - s.mh) > $1 * s.sh) AS h_anom,
        (s.sp > 0 AND abs(r.pressure    - s.mp) > $1 * s.sp) AS p_anom
    FROM wb_readings r
    JOIN grp_stats s ON s.grp = r.%[1]s
)`, groupCol)
		return cte, []any{rule.K}
	default:
		// constructor rejects other rule types
		panic(fmt.Sprintf("engine: unreachable rule %T", b.rule))
	}
}

func (b *Backend) queryPercentages(ctx context.Context, tx *sql.Tx) ([]analytics.AnomalyPercentage, error) {
	cte, args := b.flaggedCTE("station_id")
	query := "WITH " + cte + `
SELECT station_id,
    avg((t_anom)::int) * 100,
    avg((h_anom)::int) * 100,
    avg((p_anom)::int) * 100
FROM flagged
GROUP BY station_id
ORDER BY station_id`

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("engine: percentages: %w", err)
	}
	defer rows.Close()

	var out []analytics.AnomalyPercentage
	for rows.Next() {
		var station string
		var t, h, p float64
		if err := rows.Scan(&station, &t, &h, &p); err != nil {
			return nil, fmt.Errorf("engine: percentages scan: %w", err)
		}
		out = append(out,
			analytics.AnomalyPercentage{StationID: station, Sensor: readings.SensorTemperature, Pct: t},
			analytics.AnomalyPercentage{StationID: station, Sensor: readings.SensorHumidity, Pct: h},
			analytics.AnomalyPercentage{StationID: station, Sensor: readings.SensorPressure, Pct: p},
		)
	}
	return out, rows.Err()
}

func (b *Backend) queryCoOccurrences(ctx context.Context, tx *sql.Tx) ([]analytics.CoOccurrenceCount, error) {
	cte, args := b.flaggedCTE("station_id")
	windowSeconds := int(analytics.CoOccurrenceWindow.Seconds())
	query := "WITH " + cte + fmt.Sprintf(`,
windows AS (
    SELECT station_id,
        floor(extract(epoch FROM ts) / %[1]d) AS bucket,
        (bool_or(t_anom))::int + (bool_or(h_anom))::int + (bool_or(p_anom))::int AS hot
    FROM flagged
    GROUP BY station_id, bucket
)
SELECT station_id, count(*) FILTER (WHERE hot > 1)
FROM windows
GROUP BY station_id
ORDER BY station_id`, windowSeconds)

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("engine: co-occurrences: %w", err)
	}
	defer rows.Close()

	var out []analytics.CoOccurrenceCount
	for rows.Next() {
		var c analytics.CoOccurrenceCount
		if err := rows.Scan(&c.StationID, &c.Windows); err != nil {
			return nil, fmt.Errorf("engine: co-occurrences scan: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (b *Backend) queryRegionalAverages(ctx context.Context, tx *sql.Tx) ([]analytics.RegionalAverage, error) {
	cte, args := b.flaggedCTE("region")
	query := "WITH " + cte + fmt.Sprintf(`
SELECT region, ts,
    avg(temperature) OVER tw,
    avg(humidity)    OVER tw,
    avg(pressure)    OVER tw
FROM flagged
WHERE NOT (t_anom OR h_anom OR p_anom)
WINDOW tw AS (PARTITION BY region ORDER BY seq ROWS BETWEEN %d PRECEDING AND CURRENT ROW)
ORDER BY region, seq`, analytics.MovingAverageRows-1)

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("engine: regional averages: %w", err)
	}
	defer rows.Close()

	var out []analytics.RegionalAverage
	for rows.Next() {
		var r analytics.RegionalAverage
		var ts time.Time
		if err := rows.Scan(&r.Region, &ts, &r.Temperature, &r.Humidity, &r.Pressure); err != nil {
			return nil, fmt.Errorf("engine: regional averages scan: %w", err)
		}
		r.TS = ts.UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

func elapsedMS(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Millisecond)
}
