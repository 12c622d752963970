// Package persistence provides SQLite-based storage for completed runs.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/text/language"
	_ "modernc.org/sqlite"

	"github.com/talgya/flatten-sim/internal/engine"
)

// ErrRunNotFound is returned when no run has the requested id.
var ErrRunNotFound = errors.New("run not found")

const (
	// DefaultLimit caps FindRuns when the filter sets no limit.
	DefaultLimit = 10000

	// FallbackLimit is how many recent runs FindRunsWithDefault returns
	// when the filter matches nothing.
	FallbackLimit = 100

	// DefaultLocale is stored when a run has no locale and is never used
	// as a filter.
	DefaultLocale = "en"
)

// Run is a completed session with its metadata.
type Run struct {
	ID        string        `json:"id"`
	Team      string        `json:"team"`
	Region    string        `json:"region"`
	Locale    string        `json:"locale"`
	Weeks     int           `json:"weeks"`
	CreatedAt time.Time     `json:"created_at"`
	Result    engine.Result `json:"result"`
}

// Filter narrows FindRuns. Zero fields match everything.
type Filter struct {
	Region string
	Team   string // case-insensitive
	Locale string // "" and "en" match every locale
	Weeks  int
	Limit  int
}

// TeamName is one distinct team, spelled as in its most recent run.
type TeamName struct {
	Name    string    `json:"name" db:"team"`
	Runs    int       `json:"runs" db:"runs"`
	LastRun time.Time `json:"last_run" db:"-"`

	LastRunNanos int64 `json:"-" db:"last_run"`
}

// runRow mirrors the runs table.
type runRow struct {
	ID         string `db:"id"`
	Team       string `db:"team"`
	LowerTeam  string `db:"lower_team"`
	Region     string `db:"region"`
	Locale     string `db:"locale"`
	Weeks      int    `db:"weeks"`
	Seed       int64  `db:"seed"`
	CreatedAt  int64  `db:"created_at"`
	ResultJSON string `db:"result_json"`
}

func (r runRow) run() (Run, error) {
	run := Run{
		ID:        r.ID,
		Team:      r.Team,
		Region:    r.Region,
		Locale:    r.Locale,
		Weeks:     r.Weeks,
		CreatedAt: time.Unix(0, r.CreatedAt).UTC(),
	}
	if err := json.Unmarshal([]byte(r.ResultJSON), &run.Result); err != nil {
		return Run{}, fmt.Errorf("decode run %s: %w", r.ID, err)
	}
	return run, nil
}

// normalizeLocale reduces a BCP 47 tag to its base language, so "en-US"
// and "EN" both store as "en". Unparseable tags are kept lowercased.
func normalizeLocale(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultLocale
	}
	tag, err := language.Parse(s)
	if err != nil {
		return strings.ToLower(s)
	}
	base, _ := tag.Base()
	return base.String()
}

// DB wraps a SQLite connection for run storage.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		team TEXT NOT NULL,
		lower_team TEXT NOT NULL,
		region TEXT NOT NULL,
		locale TEXT NOT NULL,
		weeks INTEGER NOT NULL,
		seed INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		result_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
	CREATE INDEX IF NOT EXISTS idx_runs_team ON runs(lower_team, created_at);
	CREATE INDEX IF NOT EXISTS idx_runs_region ON runs(region);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveRun stores a run, assigning an id and creation time when unset, and
// records it as the latest run. Saving an existing id replaces it.
func (db *DB) SaveRun(run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	run.Locale = normalizeLocale(run.Locale)
	run.Team = strings.TrimSpace(run.Team)

	resultJSON, err := json.Marshal(run.Result)
	if err != nil {
		return fmt.Errorf("encode run: %w", err)
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.NamedExec(`INSERT OR REPLACE INTO runs
		(id, team, lower_team, region, locale, weeks, seed, created_at, result_json)
		VALUES (:id, :team, :lower_team, :region, :locale, :weeks, :seed, :created_at, :result_json)`,
		runRow{
			ID:         run.ID,
			Team:       run.Team,
			LowerTeam:  strings.ToLower(run.Team),
			Region:     run.Region,
			Locale:     run.Locale,
			Weeks:      run.Weeks,
			Seed:       run.Result.Seed,
			CreatedAt:  run.CreatedAt.UnixNano(),
			ResultJSON: string(resultJSON),
		})
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if _, err := tx.Exec("INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)", "last_run", run.ID); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Debug("run saved", "id", run.ID, "team", run.Team, "region", run.Region)
	return nil
}

// GetRun fetches a run by id.
func (db *DB) GetRun(id string) (*Run, error) {
	var row runRow
	err := db.conn.Get(&row, "SELECT * FROM runs WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	run, err := row.run()
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// FindRuns returns runs matching f, newest first.
func (db *DB) FindRuns(f Filter) ([]Run, error) {
	var (
		where []string
		args  []any
	)
	if f.Region != "" {
		where = append(where, "region = ?")
		args = append(args, strings.TrimSpace(f.Region))
	}
	if f.Team != "" {
		where = append(where, "lower_team = ?")
		args = append(args, strings.ToLower(strings.TrimSpace(f.Team)))
	}
	if loc := normalizeLocale(f.Locale); loc != DefaultLocale {
		where = append(where, "locale = ?")
		args = append(args, loc)
	}
	if f.Weeks > 0 {
		where = append(where, "weeks = ?")
		args = append(args, f.Weeks)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	query := "SELECT * FROM runs"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	var rows []runRow
	if err := db.conn.Select(&rows, query, args...); err != nil {
		return nil, fmt.Errorf("find runs: %w", err)
	}

	runs := make([]Run, 0, len(rows))
	for _, r := range rows {
		run, err := r.run()
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// FindRunsWithDefault falls back to the latest runs when f matches nothing,
// so a history view is never empty while any run exists.
func (db *DB) FindRunsWithDefault(f Filter) ([]Run, error) {
	runs, err := db.FindRuns(f)
	if err != nil || len(runs) > 0 {
		return runs, err
	}
	return db.FindRuns(Filter{Limit: FallbackLimit})
}

// TeamNames lists distinct team names case-insensitively, most recently
// active first.
func (db *DB) TeamNames() ([]TeamName, error) {
	var names []TeamName
	// SQLite takes the bare team column from the row holding MAX(created_at).
	err := db.conn.Select(&names, `
		SELECT team, COUNT(*) AS runs, MAX(created_at) AS last_run
		FROM runs
		WHERE lower_team <> ''
		GROUP BY lower_team
		ORDER BY last_run DESC`)
	if err != nil {
		return nil, fmt.Errorf("team names: %w", err)
	}
	for i := range names {
		names[i].LastRun = time.Unix(0, names[i].LastRunNanos).UTC()
	}
	return names, nil
}

// CountRuns returns the number of stored runs.
func (db *DB) CountRuns() (int, error) {
	var n int
	err := db.conn.Get(&n, "SELECT COUNT(*) FROM runs")
	return n, err
}

// SaveMeta stores a key-value pair.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value. Missing keys return "".
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM meta WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}
