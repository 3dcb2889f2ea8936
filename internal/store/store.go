// Package store persists fetched FRED series in a local SQLite database so
// repeated runs against the same data do not refetch.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/o15CR/rv-curves/internal/fred"
)

// Store wraps a SQLite database used as a series cache.
type Store struct {
	sql *sql.DB
}

// Open opens (or creates) the SQLite database at path and runs migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &Store{sql: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate db: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.sql.Close()
}

func (s *Store) migrate() error {
	_, err := s.sql.Exec(`
		CREATE TABLE IF NOT EXISTS fred_series (
			series_id TEXT NOT NULL,
			date      TEXT NOT NULL,
			value_bp  REAL NOT NULL,
			PRIMARY KEY (series_id, date)
		);
		CREATE TABLE IF NOT EXISTS fred_fetches (
			series_id  TEXT PRIMARY KEY,
			fetched_at TEXT NOT NULL
		);
	`)
	return err
}

// SaveSeries replaces the cached observations for one series.
func (s *Store) SaveSeries(id string, points []fred.SeriesPoint) error {
	tx, err := s.sql.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM fred_series WHERE series_id = ?`, id); err != nil {
		return fmt.Errorf("clear series %s: %w", id, err)
	}

	stmt, err := tx.Prepare(`INSERT INTO fred_series (series_id, date, value_bp) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range points {
		if _, err := stmt.Exec(id, p.Date.Format("2006-01-02"), p.ValueBP); err != nil {
			return fmt.Errorf("insert %s @ %s: %w", id, p.Date.Format("2006-01-02"), err)
		}
	}

	if _, err := tx.Exec(
		`INSERT INTO fred_fetches (series_id, fetched_at) VALUES (?, ?)
		 ON CONFLICT(series_id) DO UPDATE SET fetched_at = excluded.fetched_at`,
		id, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("record fetch %s: %w", id, err)
	}

	return tx.Commit()
}

// LoadSeries returns the cached observations for one series, newest first.
// ok is false when the series has never been cached.
func (s *Store) LoadSeries(id string) ([]fred.SeriesPoint, bool) {
	rows, err := s.sql.Query(
		`SELECT date, value_bp FROM fred_series WHERE series_id = ? ORDER BY date DESC`, id)
	if err != nil {
		return nil, false
	}
	defer rows.Close()

	var out []fred.SeriesPoint
	for rows.Next() {
		var dateStr string
		var value float64
		if err := rows.Scan(&dateStr, &value); err != nil {
			return nil, false
		}
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			return nil, false
		}
		out = append(out, fred.SeriesPoint{Date: date, ValueBP: value})
	}
	if rows.Err() != nil || len(out) == 0 {
		return nil, false
	}
	return out, true
}
