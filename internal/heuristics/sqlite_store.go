package heuristics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ManuGH/epgmerge/internal/persistence/sqlite"
)

const schemaVersion = 1

// SqliteStore implements Store using SQLite.
type SqliteStore struct {
	DB  *sql.DB
	now func() time.Time
}

// NewSqliteStore opens (and migrates) the heuristics table at dbPath.
func NewSqliteStore(dbPath string) (*SqliteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		return nil, fmt.Errorf("create heuristics dir: %w", err)
	}

	db, err := sqlite.Open(dbPath, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}

	s := &SqliteStore{DB: db, now: time.Now}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("heuristics store: migration failed: %w", err)
	}
	return s, nil
}

func (s *SqliteStore) migrate() error {
	var currentVersion int
	if err := s.DB.QueryRow("PRAGMA user_version").Scan(&currentVersion); err != nil {
		return err
	}
	if currentVersion >= schemaVersion {
		return nil
	}

	tx, err := s.DB.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	schema := `
	CREATE TABLE IF NOT EXISTS source_heuristics (
		url TEXT PRIMARY KEY,
		byte_size INTEGER NOT NULL DEFAULT 0,
		parse_duration_seconds REAL NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL
	);
	`
	if _, err := tx.Exec(schema); err != nil {
		return err
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SqliteStore) Get(ctx context.Context, url string) (Observation, bool, error) {
	query := `SELECT byte_size, parse_duration_seconds, updated_at FROM source_heuristics WHERE url = ?`
	var (
		obs        Observation
		seconds    float64
		updatedStr string
	)
	err := s.DB.QueryRowContext(ctx, query, url).Scan(&obs.ByteSize, &seconds, &updatedStr)
	if errors.Is(err, sql.ErrNoRows) {
		return Observation{}, false, nil
	}
	if err != nil {
		return Observation{}, false, err
	}
	obs.ParseDuration = time.Duration(seconds * float64(time.Second))
	obs.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedStr)
	return obs, true, nil
}

func (s *SqliteStore) RecordByteSize(ctx context.Context, url string, n int64) error {
	query := `
	INSERT INTO source_heuristics (url, byte_size, updated_at)
	VALUES (?, ?, ?)
	ON CONFLICT(url) DO UPDATE SET
		byte_size = excluded.byte_size,
		updated_at = excluded.updated_at
	`
	_, err := s.DB.ExecContext(ctx, query, url, n, s.stamp())
	return err
}

func (s *SqliteStore) RecordParseDuration(ctx context.Context, url string, d time.Duration) error {
	query := `
	INSERT INTO source_heuristics (url, parse_duration_seconds, updated_at)
	VALUES (?, ?, ?)
	ON CONFLICT(url) DO UPDATE SET
		parse_duration_seconds = excluded.parse_duration_seconds,
		updated_at = excluded.updated_at
	`
	_, err := s.DB.ExecContext(ctx, query, url, d.Seconds(), s.stamp())
	return err
}

func (s *SqliteStore) Close() error {
	return s.DB.Close()
}

func (s *SqliteStore) stamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}
