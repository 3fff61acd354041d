package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/newscrawl/internal/model"
)

// FileName is the journal database file inside the data directory.
const FileName = "newscrawl.db"

// ErrRunNotFound is returned when a run ID is not in the journal.
var ErrRunNotFound = errors.New("run not found")

// CrawlDB is the crawl journal: one row per run and one row per processed
// URL. It is safe for concurrent use; SQLite serializes the writes.
type CrawlDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging so readers do not block the
	// crawl's writes.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the journal in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Path returns the database file path.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (cdb *CrawlDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		state TEXT NOT NULL,
		reason TEXT,
		seeds INTEGER DEFAULT 0,
		articles INTEGER DEFAULT 0,
		hubs INTEGER DEFAULT 0,
		failed INTEGER DEFAULT 0,
		bytes INTEGER DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	-- One row per processed URL per run
	CREATE TABLE IF NOT EXISTS visits (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		url TEXT NOT NULL,
		host TEXT NOT NULL,
		outcome TEXT NOT NULL,
		status_code INTEGER,
		attempts INTEGER,
		duration_ms INTEGER,
		error TEXT,
		visited_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_visits_run ON visits(run_id);
	CREATE INDEX IF NOT EXISTS idx_visits_host ON visits(host);

	-- Latest stored article per URL, used to skip recent articles
	CREATE TABLE IF NOT EXISTS articles (
		url TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		stored_at TEXT NOT NULL
	);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// Run is one crawl run as recorded in the journal.
type Run struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	State      string    `json:"state"`
	Reason     string    `json:"reason,omitempty"`
	Seeds      int       `json:"seeds"`
	Articles   int64     `json:"articles"`
	Hubs       int64     `json:"hubs"`
	Failed     int64     `json:"failed"`
	Bytes      int64     `json:"bytes"`
}

// StartRun records a new running run and returns its ID.
func (cdb *CrawlDB) StartRun(ctx context.Context, seeds int) (string, error) {
	id := uuid.NewString()
	query := `
	INSERT INTO runs (id, started_at, state, seeds)
	VALUES (?, ?, 'running', ?)
	`
	if _, err := cdb.db.ExecContext(ctx, query, id, formatTimestamp(time.Now()), seeds); err != nil {
		return "", fmt.Errorf("failed to start run: %w", err)
	}
	return id, nil
}

// FinishRun stores the final state and counters of a run.
func (cdb *CrawlDB) FinishRun(ctx context.Context, run *Run) error {
	query := `
	UPDATE runs SET
		finished_at = ?,
		state = ?,
		reason = ?,
		articles = ?,
		hubs = ?,
		failed = ?,
		bytes = ?
	WHERE id = ?
	`
	finished := run.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}
	result, err := cdb.db.ExecContext(ctx, query,
		formatTimestamp(finished),
		run.State,
		run.Reason,
		run.Articles,
		run.Hubs,
		run.Failed,
		run.Bytes,
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, run.ID)
	}
	return nil
}

// GetRun returns one run.
func (cdb *CrawlDB) GetRun(ctx context.Context, id string) (*Run, error) {
	query := `
	SELECT id, started_at, finished_at, state, reason, seeds, articles, hubs, failed, bytes
	FROM runs
	WHERE id = ?
	`
	run, err := scanRun(cdb.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (cdb *CrawlDB) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `
	SELECT id, started_at, finished_at, state, reason, seeds, articles, hubs, failed, bytes
	FROM runs
	ORDER BY started_at DESC
	`
	args := make([]any, 0, 1)
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := cdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var started string
	var finished, reason sql.NullString
	if err := row.Scan(
		&run.ID,
		&started,
		&finished,
		&run.State,
		&reason,
		&run.Seeds,
		&run.Articles,
		&run.Hubs,
		&run.Failed,
		&run.Bytes,
	); err != nil {
		return nil, err
	}
	run.StartedAt = parseTimestamp(started)
	if finished.Valid {
		run.FinishedAt = parseTimestamp(finished.String)
	}
	run.Reason = reason.String
	return &run, nil
}

// RecordVisit journals one processed URL. Article visits also update the
// latest stored time of the URL.
func (cdb *CrawlDB) RecordVisit(ctx context.Context, v model.Visit) error {
	visitedAt := v.VisitedAt
	if visitedAt.IsZero() {
		visitedAt = time.Now()
	}

	query := `
	INSERT INTO visits (run_id, url, host, outcome, status_code, attempts, duration_ms, error, visited_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := cdb.db.ExecContext(ctx, query,
		v.RunID,
		v.URL,
		v.Host,
		v.Outcome.String(),
		v.StatusCode,
		v.Attempts,
		v.Duration.Milliseconds(),
		v.Error,
		formatTimestamp(visitedAt),
	); err != nil {
		return fmt.Errorf("failed to insert visit: %w", err)
	}

	if v.Outcome != model.OutcomeArticle {
		return nil
	}
	upsert := `
	INSERT INTO articles (url, run_id, stored_at)
	VALUES (?, ?, ?)
	ON CONFLICT(url) DO UPDATE SET
		run_id = excluded.run_id,
		stored_at = excluded.stored_at
	`
	if _, err := cdb.db.ExecContext(ctx, upsert, v.URL, v.RunID, formatTimestamp(visitedAt)); err != nil {
		return fmt.Errorf("failed to record article: %w", err)
	}
	return nil
}

// LastArticleVisit returns when url was last stored as an article.
func (cdb *CrawlDB) LastArticleVisit(ctx context.Context, url string) (time.Time, bool, error) {
	var stored string
	err := cdb.db.QueryRowContext(ctx, `SELECT stored_at FROM articles WHERE url = ?`, url).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to get article visit: %w", err)
	}
	return parseTimestamp(stored), true, nil
}

// HasRecentArticle checks if url was stored as an article within d.
func (cdb *CrawlDB) HasRecentArticle(ctx context.Context, url string, d time.Duration) (bool, error) {
	at, ok, err := cdb.LastArticleVisit(ctx, url)
	if err != nil || !ok {
		return false, err
	}
	return time.Since(at) < d, nil
}

// OutcomeCounts returns how many URLs of a run ended in each outcome.
func (cdb *CrawlDB) OutcomeCounts(ctx context.Context, runID string) (map[model.Outcome]int, error) {
	rows, err := cdb.db.QueryContext(ctx,
		`SELECT outcome, COUNT(*) FROM visits WHERE run_id = ? GROUP BY outcome`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to count outcomes: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.Outcome]int)
	for rows.Next() {
		var name string
		var n int
		if err := rows.Scan(&name, &n); err != nil {
			return nil, fmt.Errorf("failed to scan outcome count: %w", err)
		}
		if o, ok := model.ParseOutcome(name); ok {
			counts[o] = n
		}
	}
	return counts, rows.Err()
}

// HostFailure is the failure count of one host in a run.
type HostFailure struct {
	Host     string `json:"host"`
	Failures int    `json:"failures"`
}

// TopFailingHosts returns the hosts with the most failed visits in a run.
func (cdb *CrawlDB) TopFailingHosts(ctx context.Context, runID string, limit int) ([]HostFailure, error) {
	query := `
	SELECT host, COUNT(*) AS failures
	FROM visits
	WHERE run_id = ? AND outcome = ?
	GROUP BY host
	ORDER BY failures DESC, host
	LIMIT ?
	`
	rows, err := cdb.db.QueryContext(ctx, query, runID, model.OutcomeFailed.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query failing hosts: %w", err)
	}
	defer rows.Close()

	var out []HostFailure
	for rows.Next() {
		var hf HostFailure
		if err := rows.Scan(&hf.Host, &hf.Failures); err != nil {
			return nil, fmt.Errorf("failed to scan failing host: %w", err)
		}
		out = append(out, hf)
	}
	return out, rows.Err()
}

// timestampLayout has a fixed width so stored timestamps sort as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// timestampFormats contains the timestamp formats that may be stored.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	timestampLayout,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
