package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite" // SQLite driver (pure Go)

	"github.com/leapstack-labs/leapidl/pkg/core"
)

var errNotOpened = errors.New("database not opened")

// timeLayout is fixed width so stored times sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// DefaultFileName is the history database file inside the output directory.
const DefaultFileName = ".leapidl-history.db"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a store. A nil logger discards output.
func NewSQLiteStore(logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLiteStore{logger: logger}
}

// Open opens the database at path and migrates it.
func (s *SQLiteStore) Open(ctx context.Context, path string) error {
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// A single connection serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	s.db = db
	s.path = path

	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		s.db = nil
		return err
	}
	s.logger.Debug("opened history store", slog.String("path", path))
	return nil
}

// Path returns the database path.
func (s *SQLiteStore) Path() string { return s.path }

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// RecordBuild stores a build and its projection summaries in one transaction.
func (s *SQLiteStore) RecordBuild(ctx context.Context, result *core.BuildResult, configPath string) error {
	if s.db == nil {
		return errNotOpened
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO builds (id, status, started_at, duration_ms, config_path) VALUES (?, ?, ?, ?, ?)`,
		result.ID, string(result.Status), result.StartedAt.UTC().Format(timeLayout), result.Duration.Milliseconds(), configPath,
	)
	if err != nil {
		return fmt.Errorf("failed to record build: %w", err)
	}

	for i, p := range result.Projections {
		rec := Summarize(p)
		_, err = tx.ExecContext(ctx,
			`INSERT INTO build_projections (build_id, position, name, status, failed_at, error, artifacts, errors, warnings, plugin_errors)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			result.ID, i, rec.Name, string(rec.Status), string(rec.FailedAt), rec.Error,
			rec.Artifacts, rec.Errors, rec.Warnings, rec.PluginErrors,
		)
		if err != nil {
			return fmt.Errorf("failed to record projection %q: %w", p.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit build: %w", err)
	}
	s.logger.Debug("recorded build", slog.String("id", result.ID), slog.Int("projections", len(result.Projections)))
	return nil
}

// ListBuilds returns the most recent builds first, without projections.
// A limit of 0 or less returns every build.
func (s *SQLiteStore) ListBuilds(ctx context.Context, limit int) ([]BuildRecord, error) {
	if s.db == nil {
		return nil, errNotOpened
	}
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, status, started_at, duration_ms, config_path FROM builds ORDER BY started_at DESC, id LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list builds: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []BuildRecord
	for rows.Next() {
		rec, err := scanBuild(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list builds: %w", err)
	}
	return out, nil
}

// GetBuild returns one build with its projections.
func (s *SQLiteStore) GetBuild(ctx context.Context, id string) (*BuildRecord, error) {
	if s.db == nil {
		return nil, errNotOpened
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, started_at, duration_ms, config_path FROM builds WHERE id = ?`, id)
	rec, err := scanBuild(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrBuildNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT name, status, failed_at, error, artifacts, errors, warnings, plugin_errors
		 FROM build_projections WHERE build_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get projections: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var p ProjectionRecord
		var status, failedAt string
		if err := rows.Scan(&p.Name, &status, &failedAt, &p.Error, &p.Artifacts, &p.Errors, &p.Warnings, &p.PluginErrors); err != nil {
			return nil, fmt.Errorf("failed to scan projection: %w", err)
		}
		p.Status = core.ProjectionStatus(status)
		p.FailedAt = core.ProjectionStatus(failedAt)
		rec.Projections = append(rec.Projections, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get projections: %w", err)
	}
	return rec, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBuild(row scanner) (*BuildRecord, error) {
	var rec BuildRecord
	var status, started string
	var durationMS int64
	if err := row.Scan(&rec.ID, &status, &started, &durationMS, &rec.ConfigPath); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan build: %w", err)
	}
	t, err := time.Parse(timeLayout, started)
	if err != nil {
		return nil, fmt.Errorf("build %s: invalid start time %q: %w", rec.ID, started, err)
	}
	rec.Status = core.BuildStatus(status)
	rec.StartedAt = t
	rec.Duration = time.Duration(durationMS) * time.Millisecond
	return &rec, nil
}
