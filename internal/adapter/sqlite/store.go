package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/shef-etl/internal/domain"
	"github.com/couchcryptid/shef-etl/internal/xref"

	_ "modernc.org/sqlite"
)

// Store archives decoded series in a SQLite database.
// It implements pipeline.TimeSeriesSink.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the database at path and migrates it.
// Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, logger: logger}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Store upserts every sample of ts. A sample already stored for the same
// path and time is replaced.
func (s *Store) Store(ctx context.Context, ts domain.TimeSeries) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO samples (path, units, time_ms, value, quality)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path, time_ms) DO UPDATE SET
			units = excluded.units,
			value = excluded.value,
			quality = excluded.quality
	`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, sm := range ts.Values {
		if _, err := stmt.ExecContext(ctx, ts.Path, ts.Units, sm.Time, sm.Value, sm.Quality); err != nil {
			return fmt.Errorf("upsert %s@%d: %w", ts.Path, sm.Time, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", ts.Path, err)
	}
	return nil
}

// Series returns the stored samples for path in time order. The bool is
// false when nothing is stored for path.
func (s *Store) Series(ctx context.Context, path string) (domain.TimeSeries, bool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT units, time_ms, value, quality FROM samples
		WHERE path = ?
		ORDER BY time_ms
	`, path)
	if err != nil {
		return domain.TimeSeries{}, false, err
	}
	defer rows.Close()

	ts := domain.TimeSeries{Path: path}
	for rows.Next() {
		var sm domain.Sample
		if err := rows.Scan(&ts.Units, &sm.Time, &sm.Value, &sm.Quality); err != nil {
			return domain.TimeSeries{}, false, err
		}
		ts.Values = append(ts.Values, sm)
	}
	if err := rows.Err(); err != nil {
		return domain.TimeSeries{}, false, err
	}
	return ts, len(ts.Values) > 0, nil
}

// AssignGroup records aliases under group, replacing earlier assignments of
// the same alias.
func (s *Store) AssignGroup(ctx context.Context, group string, aliases []xref.Alias) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, a := range aliases {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO aliases (grp, alias, timeseries_id) VALUES (?, ?, ?)
			ON CONFLICT(grp, alias) DO UPDATE SET timeseries_id = excluded.timeseries_id
		`, group, a.Name, a.TimeseriesID); err != nil {
			return fmt.Errorf("assign alias %s: %w", a.Name, err)
		}
	}
	return tx.Commit()
}

// Aliases returns the aliases assigned to group ordered by name.
func (s *Store) Aliases(ctx context.Context, group string) ([]xref.Alias, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT alias, timeseries_id FROM aliases WHERE grp = ? ORDER BY alias`, group)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []xref.Alias
	for rows.Next() {
		var a xref.Alias
		if err := rows.Scan(&a.Name, &a.TimeseriesID); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
