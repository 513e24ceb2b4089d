// Package sqlite keeps a history of dispatch decisions in a local SQLite
// database using the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"

	"github.com/couchcryptid/responder-dispatch-service/internal/domain"
)

const schema = `CREATE TABLE IF NOT EXISTS dispatches (
	id          TEXT PRIMARY KEY,
	category    TEXT NOT NULL,
	station     TEXT NOT NULL,
	eta_minutes INTEGER NOT NULL,
	provider    TEXT NOT NULL,
	decided_at  TEXT NOT NULL,
	record      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS dispatches_decided_at ON dispatches(decided_at);`

// decidedAtLayout is fixed-width so that decided_at sorts lexically.
const decidedAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store persists DispatchRecords.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		logger.Warn("could not set WAL mode", "error", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000;"); err != nil {
		logger.Warn("could not set busy timeout", "error", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Save inserts a record. IDs are unique; saving the same ID twice fails.
func (s *Store) Save(ctx context.Context, rec domain.DispatchRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode dispatch record: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO dispatches(id, category, station, eta_minutes, provider, decided_at, record) VALUES(?,?,?,?,?,?,?)`,
		rec.ID, string(rec.Category), rec.ChosenStation, rec.ETAMinutes, rec.Provider,
		rec.DecidedAt.UTC().Format(decidedAtLayout), string(data))
	if err != nil {
		return fmt.Errorf("insert dispatch %s: %w", rec.ID, err)
	}
	return nil
}

// Get returns the record with the given ID, or domain.ErrDispatchNotFound.
func (s *Store) Get(ctx context.Context, id string) (domain.DispatchRecord, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT record FROM dispatches WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DispatchRecord{}, fmt.Errorf("%w: %s", domain.ErrDispatchNotFound, id)
	}
	if err != nil {
		return domain.DispatchRecord{}, fmt.Errorf("query dispatch %s: %w", id, err)
	}
	return decodeRecord(data)
}

// List returns up to limit records, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]domain.DispatchRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT record FROM dispatches ORDER BY decided_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list dispatches: %w", err)
	}
	defer rows.Close()

	out := make([]domain.DispatchRecord, 0, limit)
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		rec, err := decodeRecord(data)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Ping verifies the database is still reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func decodeRecord(data string) (domain.DispatchRecord, error) {
	var rec domain.DispatchRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return domain.DispatchRecord{}, fmt.Errorf("decode dispatch record: %w", err)
	}
	return rec, nil
}
