package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/ghcrawler/internal/model"
)

// FileName is the name of the database file inside the database directory.
const FileName = "ghcrawler.db"

// timeLayout sorts lexically in chronological order.
const timeLayout = "2006-01-02 15:04:05.000000000"

// RunDB provides SQLite-based storage for crawl runs.
type RunDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures RunDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the run database in dbDir.
func Open(dbDir string, opts Options) (*RunDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	rdb := &RunDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := rdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return rdb, nil
}

// Close closes the database connection.
func (r *RunDB) Close() error {
	return r.db.Close()
}

// Path returns the database file path.
func (r *RunDB) Path() string {
	return r.dbPath
}

func (r *RunDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		query TEXT NOT NULL,
		search_type TEXT NOT NULL,
		proxy TEXT,
		with_extra INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		listing_count INTEGER NOT NULL DEFAULT 0,
		fingerprint TEXT,
		error TEXT,
		run_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_query ON runs(query, search_type);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	-- One row per listing so a URL can be traced across runs
	CREATE TABLE IF NOT EXISTS listings (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		url TEXT NOT NULL,
		owner TEXT,
		PRIMARY KEY (run_id, position)
	);

	CREATE INDEX IF NOT EXISTS idx_listings_url ON listings(url);
	`

	_, err := r.db.ExecContext(context.Background(), schema)
	return err
}

// SaveRun stores a finished run and its listings. Saving a run with an ID
// that already exists replaces it.
func (r *RunDB) SaveRun(ctx context.Context, run *model.Run) error {
	runJSON, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to serialize run: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM listings WHERE run_id = ?`, run.ID); err != nil {
		return fmt.Errorf("failed to clear listings: %w", err)
	}

	query := `
	INSERT INTO runs (id, query, search_type, proxy, with_extra, status, started_at, finished_at,
		listing_count, fingerprint, error, run_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		status = excluded.status,
		finished_at = excluded.finished_at,
		listing_count = excluded.listing_count,
		fingerprint = excluded.fingerprint,
		error = excluded.error,
		run_json = excluded.run_json
	`
	_, err = tx.ExecContext(ctx, query,
		run.ID,
		run.Query(),
		string(run.SearchType),
		run.Proxy,
		run.WithExtra,
		string(run.Status),
		formatTimestamp(run.StartedAt),
		formatTimestamp(run.FinishedAt),
		len(run.Listings),
		run.Fingerprint(),
		run.Error,
		string(runJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	for i, l := range run.Listings {
		var owner sql.NullString
		if l.Extra != nil && l.Extra.Owner != nil {
			owner = sql.NullString{String: *l.Extra.Owner, Valid: true}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO listings (run_id, position, url, owner) VALUES (?, ?, ?, ?)`,
			run.ID, i, l.URL, owner,
		); err != nil {
			return fmt.Errorf("failed to save listing: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// GetRun returns the run with the given ID, or nil if there is none.
func (r *RunDB) GetRun(ctx context.Context, id string) (*model.Run, error) {
	var runJSON string
	err := r.db.QueryRowContext(ctx, `SELECT run_json FROM runs WHERE id = ?`, id).Scan(&runJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return decodeRun(runJSON)
}

// PreviousRun returns the most recent successful run of the same query and
// search type that started before the given time, or nil if there is none.
func (r *RunDB) PreviousRun(ctx context.Context, query string, searchType model.SearchType, before time.Time) (*model.Run, error) {
	q := `
	SELECT run_json FROM runs
	WHERE query = ? AND search_type = ? AND status = ? AND started_at < ?
	ORDER BY started_at DESC, rowid DESC
	LIMIT 1
	`

	var runJSON string
	err := r.db.QueryRowContext(ctx, q,
		query, string(searchType), string(model.RunStatusDone), formatTimestamp(before),
	).Scan(&runJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get previous run: %w", err)
	}
	return decodeRun(runJSON)
}

// RunSummary is the metadata of a stored run, without its listings.
type RunSummary struct {
	ID           string           `json:"id"`
	Query        string           `json:"query"`
	SearchType   model.SearchType `json:"search_type"`
	Status       model.RunStatus  `json:"status"`
	StartedAt    time.Time        `json:"started_at"`
	FinishedAt   time.Time        `json:"finished_at"`
	ListingCount int              `json:"listing_count"`
	Fingerprint  string           `json:"fingerprint,omitempty"`
	Error        string           `json:"error,omitempty"`
}

// ListRuns returns up to limit runs, newest first. A limit of zero or less
// returns every run.
func (r *RunDB) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	q := `
	SELECT id, query, search_type, status, started_at, finished_at,
		listing_count, fingerprint, error
	FROM runs
	ORDER BY started_at DESC, rowid DESC
	`
	args := []any{}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var summaries []RunSummary
	for rows.Next() {
		var (
			s                    RunSummary
			searchType, status   string
			started              string
			finished, fp, errMsg sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.Query, &searchType, &status, &started, &finished,
			&s.ListingCount, &fp, &errMsg); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		s.SearchType = model.SearchType(searchType)
		s.Status = model.RunStatus(status)
		s.StartedAt = parseTimestamp(started)
		s.FinishedAt = parseTimestamp(finished.String)
		s.Fingerprint = fp.String
		s.Error = errMsg.String
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// RunsWithURL returns the IDs of the runs whose listings include url,
// newest first.
func (r *RunDB) RunsWithURL(ctx context.Context, url string) ([]string, error) {
	q := `
	SELECT DISTINCT runs.id, runs.started_at FROM listings
	JOIN runs ON runs.id = listings.run_id
	WHERE listings.url = ?
	ORDER BY runs.started_at DESC
	`

	rows, err := r.db.QueryContext(ctx, q, url)
	if err != nil {
		return nil, fmt.Errorf("failed to find runs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id, started string
		if err := rows.Scan(&id, &started); err != nil {
			return nil, fmt.Errorf("failed to scan run id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func decodeRun(runJSON string) (*model.Run, error) {
	var run model.Run
	if err := json.Unmarshal([]byte(runJSON), &run); err != nil {
		return nil, fmt.Errorf("failed to parse run: %w", err)
	}
	return &run, nil
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

// timestampFormats contains the timestamp formats that may be stored.
// More specific formats come first.
var timestampFormats = []string{
	timeLayout,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	time.RFC3339,
	time.RFC3339Nano,
}

// parseTimestamp tries each known format and returns the zero time if
// none matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
