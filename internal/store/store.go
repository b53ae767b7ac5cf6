// Package store handles SQLite persistence.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/verte-zerg/moadil/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// StateKey is the fixed identifier the application state is stored under.
const StateKey = "moroccan_calc_state_v1"

// Store wraps SQLite access for the application state and result history.
type Store struct {
	db          *sql.DB
	logger      *zap.Logger
	defaultDark bool
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for recoverable problems.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithDefaultDarkMode sets isDarkMode for states that do not record it.
func WithDefaultDarkMode(dark bool) Option {
	return func(s *Store) {
		s.defaultDark = dark
	}
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string, opts ...Option) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(store)
	}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS app_state (
			key TEXT PRIMARY KEY,
			payload TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			id TEXT PRIMARY KEY,
			taken_at TEXT NOT NULL,
			level TEXT NOT NULL,
			branch_id TEXT NOT NULL,
			average REAL NOT NULL,
			progress REAL NOT NULL,
			note TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_taken_at ON snapshots(taken_at);`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_level ON snapshots(level);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// LoadState returns the persisted state. A missing row yields a fresh state.
// A row that cannot be decoded also yields a fresh state and is logged; only
// database failures are returned as errors.
func (s *Store) LoadState(ctx context.Context) (model.AppState, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM app_state WHERE key = ?`, StateKey).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return model.NewState(s.defaultDark), nil
	}
	if err != nil {
		return model.AppState{}, err
	}
	state, err := model.DecodeState([]byte(payload), s.defaultDark)
	if err != nil {
		s.logger.Warn("discarding unreadable saved state", zap.Error(err))
		return model.NewState(s.defaultDark), nil
	}
	return state, nil
}

// SaveState replaces the persisted state.
func (s *Store) SaveState(ctx context.Context, state model.AppState) error {
	payload, err := model.EncodeState(state)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO app_state (key, payload, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		StateKey, string(payload), time.Now().UTC().Format(time.RFC3339Nano))
	return err
}

// Clear deletes the persisted state and every snapshot.
func (s *Store) Clear(ctx context.Context) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()
	if _, err = tx.ExecContext(ctx, `DELETE FROM app_state`); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM snapshots`); err != nil {
		return err
	}
	return tx.Commit()
}

// InsertSnapshot records a computed result. An empty ID or zero TakenAt is
// filled in. The stored snapshot is returned.
func (s *Store) InsertSnapshot(ctx context.Context, snap model.Snapshot) (model.Snapshot, error) {
	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}
	if snap.TakenAt.IsZero() {
		snap.TakenAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots (id, taken_at, level, branch_id, average, progress, note)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		snap.ID,
		snap.TakenAt.UTC().Format(time.RFC3339Nano),
		string(snap.Level),
		snap.BranchID,
		snap.Average,
		snap.Progress,
		snap.Note,
	)
	if err != nil {
		return model.Snapshot{}, err
	}
	return snap, nil
}

// ListSnapshots returns snapshots oldest first, filtered by level when set.
func (s *Store) ListSnapshots(ctx context.Context, cfg model.HistoryConfig) ([]model.Snapshot, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if cfg.Level != "" {
		clauses = append(clauses, "level = ?")
		args = append(args, string(cfg.Level))
	}
	query := fmt.Sprintf(`SELECT id, taken_at, level, branch_id, average, progress, note
		FROM snapshots
		WHERE %s
		ORDER BY taken_at ASC, id ASC`, strings.Join(clauses, " AND "))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var snapshots []model.Snapshot
	for rows.Next() {
		var snap model.Snapshot
		var takenAt, level string
		if err := rows.Scan(&snap.ID, &takenAt, &level, &snap.BranchID, &snap.Average, &snap.Progress, &snap.Note); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(time.RFC3339Nano, takenAt)
		if err != nil {
			return nil, err
		}
		snap.TakenAt = parsed
		snap.Level = model.Level(level)
		snapshots = append(snapshots, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return snapshots, nil
}
