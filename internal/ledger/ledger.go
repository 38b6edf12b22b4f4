// Package ledger keeps an append-only audit trail of chain validations and
// change request transitions in SQLite.
//
// The ledger is a secondary record: the CR files stay the source of truth
// for lifecycle state, and a ledger failure never blocks an action.
package ledger

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/HendryAvila/specchain/internal/chain"
	"github.com/HendryAvila/specchain/internal/changes"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// timeNow is replaced in tests.
var timeNow = time.Now

// FileName is the database file inside the data directory.
const FileName = "ledger.db"

// ─── Types ───────────────────────────────────────────────────────────────────

// ValidationRun is one recorded chain validation.
type ValidationRun struct {
	ID          string `json:"id"`
	ConfigPath  string `json:"config_path"`
	Documents   int    `json:"documents"`
	Links       int    `json:"links"`
	OrphanedIDs int    `json:"orphaned_ids"`
	MissingIDs  int    `json:"missing_ids"`
	StalePairs  int    `json:"stale_pairs"`
	CreatedAt   string `json:"created_at"`
}

// Issues counts orphaned plus missing identifiers.
func (r ValidationRun) Issues() int { return r.OrphanedIDs + r.MissingIDs }

// Event is one recorded CR transition.
type Event struct {
	ID         int64          `json:"id"`
	CRID       string         `json:"cr_id"`
	OriginDoc  string         `json:"origin_doc"`
	FromStatus changes.Status `json:"from_status"`
	ToStatus   changes.Status `json:"to_status"`
	Reason     string         `json:"reason,omitempty"`
	CreatedAt  string         `json:"created_at"`
}

// ─── Config ──────────────────────────────────────────────────────────────────

// Config holds ledger configuration.
type Config struct {
	DataDir string
	// DefaultLimit bounds listings when the caller passes no limit.
	DefaultLimit int
}

// DefaultConfig stores the ledger under ~/.specchain.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		DataDir:      filepath.Join(home, ".specchain"),
		DefaultLimit: 20,
	}
}

// ─── Store ───────────────────────────────────────────────────────────────────

// Store is the SQLite-backed ledger.
type Store struct {
	db     *sql.DB
	cfg    Config
	logger *slog.Logger
}

// New opens (creating if needed) the ledger in cfg.DataDir with WAL mode
// and runs migrations.
func New(cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 20
	}
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("ledger: create data dir: %w", err)
	}

	db, err := openDB("sqlite", filepath.Join(cfg.DataDir, FileName))
	if err != nil {
		return nil, fmt.Errorf("ledger: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ledger: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, cfg: cfg, logger: logger}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ledger: migration: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ─── Migrations ──────────────────────────────────────────────────────────────

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS validation_runs (
			id           TEXT PRIMARY KEY,
			config_path  TEXT    NOT NULL,
			documents    INTEGER NOT NULL,
			links        INTEGER NOT NULL,
			orphaned_ids INTEGER NOT NULL,
			missing_ids  INTEGER NOT NULL,
			stale_pairs  INTEGER NOT NULL,
			created_at   TEXT    NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_runs_created ON validation_runs(created_at DESC);

		CREATE TABLE IF NOT EXISTS cr_events (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			cr_id       TEXT NOT NULL,
			origin_doc  TEXT NOT NULL,
			from_status TEXT NOT NULL,
			to_status   TEXT NOT NULL,
			reason      TEXT,
			created_at  TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_events_cr ON cr_events(cr_id, id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// ─── Validation runs ─────────────────────────────────────────────────────────

// RecordRun stores a summary of report and returns it.
func (s *Store) RecordRun(configPath string, report *chain.Report) (*ValidationRun, error) {
	run := &ValidationRun{
		ID:          uuid.NewString(),
		ConfigPath:  configPath,
		Documents:   len(report.Documents),
		Links:       len(report.Links),
		OrphanedIDs: len(report.OrphanedIDs),
		MissingIDs:  len(report.MissingIDs),
		StalePairs:  len(report.StalenessWarnings),
		CreatedAt:   now(),
	}
	_, err := s.db.Exec(
		`INSERT INTO validation_runs (id, config_path, documents, links, orphaned_ids, missing_ids, stale_pairs, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.ConfigPath, run.Documents, run.Links, run.OrphanedIDs, run.MissingIDs, run.StalePairs, run.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("ledger: record run: %w", err)
	}
	return run, nil
}

// RecentRuns returns the latest validation runs, newest first.
func (s *Store) RecentRuns(limit int) ([]ValidationRun, error) {
	if limit <= 0 {
		limit = s.cfg.DefaultLimit
	}
	rows, err := s.db.Query(
		`SELECT id, config_path, documents, links, orphaned_ids, missing_ids, stale_pairs, created_at
		 FROM validation_runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("ledger: query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	runs := []ValidationRun{}
	for rows.Next() {
		var r ValidationRun
		if err := rows.Scan(&r.ID, &r.ConfigPath, &r.Documents, &r.Links, &r.OrphanedIDs, &r.MissingIDs, &r.StalePairs, &r.CreatedAt); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ─── CR events ───────────────────────────────────────────────────────────────

// RecordEvent stores the transition of cr from `from` to its current status.
func (s *Store) RecordEvent(cr *changes.ChangeRequest, from changes.Status, reason string) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO cr_events (cr_id, origin_doc, from_status, to_status, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		cr.ID, cr.OriginDoc, string(from), string(cr.Status), nullableString(reason), now(),
	)
	if err != nil {
		return 0, fmt.Errorf("ledger: record event: %w", err)
	}
	return res.LastInsertId()
}

// Events returns the transitions of one CR in the order they happened. An
// empty crID returns the latest events across all CRs, newest first.
func (s *Store) Events(crID string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = s.cfg.DefaultLimit
	}

	query := `SELECT id, cr_id, origin_doc, from_status, to_status, reason, created_at FROM cr_events`
	var args []any
	if crID != "" {
		query += " WHERE cr_id = ? ORDER BY id ASC LIMIT ?"
		args = append(args, crID, limit)
	} else {
		query += " ORDER BY id DESC LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger: query events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	events := []Event{}
	for rows.Next() {
		var (
			e      Event
			from   string
			to     string
			reason *string
		)
		if err := rows.Scan(&e.ID, &e.CRID, &e.OriginDoc, &from, &to, &reason, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.FromStatus = changes.Status(from)
		e.ToStatus = changes.Status(to)
		e.Reason = derefString(reason)
		events = append(events, e)
	}
	return events, rows.Err()
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func now() string {
	return timeNow().UTC().Format(time.RFC3339)
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
