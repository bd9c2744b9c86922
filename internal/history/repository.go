// Package history keeps a bounded, volatile log of readings and alerts in
// SQLite. The default DSN is in-memory, so the log does not survive a restart.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"cloudpico-station/internal/history/migrate"
	"cloudpico-station/internal/types"
)

//go:embed sql/insert-reading.sql
var insertReadingSQL string

//go:embed sql/recent-readings.sql
var recentReadingsSQL string

//go:embed sql/prune-readings.sql
var pruneReadingsSQL string

//go:embed sql/insert-alert.sql
var insertAlertSQL string

//go:embed sql/count-alerts.sql
var countAlertsSQL string

type Repository struct {
	db      *sql.DB
	maxRows int
	logger  *slog.Logger
}

// Open connects to dsn, applies migrations and returns a repository that keeps
// at most maxRows readings.
func Open(ctx context.Context, dsn string, maxRows int, logger *slog.Logger) (*Repository, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var db *sql.DB
	if logger.Enabled(ctx, slog.LevelDebug) {
		db = openTraced(dsn, logger)
	} else {
		var err error
		if db, err = sql.Open("sqlite3", dsn); err != nil {
			return nil, fmt.Errorf("db open: %w", err)
		}
	}
	// One connection keeps an in-memory database alive and serializes writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	n, err := migrate.Run(ctx, db, logger)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	logger.Info("history ready", "migrations_applied", n, "max_rows", maxRows)

	return &Repository{db: db, maxRows: maxRows, logger: logger}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Append stores one reading and trims the log to maxRows.
func (r *Repository) Append(ctx context.Context, t types.Telemetry) error {
	seq := 0
	if t.Sequence != nil {
		seq = *t.Sequence
	}
	_, err := r.db.ExecContext(ctx, insertReadingSQL,
		t.StationID,
		t.Timestamp.UTC().Format(time.RFC3339Nano),
		seq,
		nullFloat(t.Temperature),
		nullFloat(t.Humidity),
		nullFloat(t.Pressure),
		nullFloat(t.Altitude),
		t.Degraded,
	)
	if err != nil {
		return fmt.Errorf("insert reading: %w", err)
	}
	if r.maxRows > 0 {
		if _, err := r.db.ExecContext(ctx, pruneReadingsSQL, r.maxRows); err != nil {
			return fmt.Errorf("prune readings: %w", err)
		}
	}
	return nil
}

// Recent returns up to limit readings, newest first.
func (r *Repository) Recent(ctx context.Context, limit int) ([]types.Telemetry, error) {
	rows, err := r.db.QueryContext(ctx, recentReadingsSQL, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.Error("close readings rows", "error", err)
		}
	}()
	return scanReadings(rows)
}

func (r *Repository) AppendAlert(ctx context.Context, e types.AlertEvent) error {
	_, err := r.db.ExecContext(ctx, insertAlertSQL,
		e.StationID,
		e.Timestamp.UTC().Format(time.RFC3339Nano),
		e.TemperatureC,
		e.HumidityPct,
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

func (r *Repository) CountAlerts(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, countAlertsSQL).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func scanReadings(rows *sql.Rows) ([]types.Telemetry, error) {
	var out []types.Telemetry
	for rows.Next() {
		var (
			rec                     types.Telemetry
			ts                      string
			seq                     int
			temp, hum, press, altit sql.NullFloat64
		)
		if err := rows.Scan(&rec.StationID, &ts, &seq, &temp, &hum, &press, &altit, &rec.Degraded); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			t, _ = time.Parse(time.RFC3339, ts)
		}
		rec.Timestamp = t
		rec.Sequence = &seq
		rec.Temperature = floatPtr(temp)
		rec.Humidity = floatPtr(hum)
		rec.Pressure = floatPtr(press)
		rec.Altitude = floatPtr(altit)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}
