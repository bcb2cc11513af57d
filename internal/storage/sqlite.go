package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/noot-app/nutrition-log-mcp-server/internal/types"
)

// ErrCacheMiss is returned by GetCachedNutrients when the key is not cached
var ErrCacheMiss = errors.New("nutrient cache miss")

// Filter narrows ListEntries. Dates are inclusive YYYY-MM-DD strings; empty means unbounded.
type Filter struct {
	StartDate string
	EndDate   string
	Limit     int
}

// Totals is the raw per-day aggregate of the food log
type Totals struct {
	Entries      int
	Calories     float64
	Protein      float64
	SugarOrCarbs float64
}

// CachedNutrients is a nutrient_cache row
type CachedNutrients struct {
	Key       string
	Record    types.NutrientRecord
	Source    string
	FetchedAt time.Time
}

// BusyTimeout is how long a statement waits on a locked database before failing
const BusyTimeout = 5 * time.Second

// SQLiteStorage persists the append-only food log and the nutrient cache
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens (creating if needed) the database at dbPath.
// ":memory:" is accepted for tests.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection serializes writers and keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	// Another process (CLI and server sharing one file) may hold the write lock.
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", BusyTimeout.Milliseconds())); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	s := &SQLiteStorage{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

// Close closes the database
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable
func (s *SQLiteStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStorage) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS food_log (
        id TEXT PRIMARY KEY,
        logged_at TEXT NOT NULL,
        date TEXT NOT NULL,
        time TEXT NOT NULL,
        food_name TEXT NOT NULL,
        amount REAL NOT NULL,
        unit TEXT NOT NULL,
        grams REAL NOT NULL,
        calories REAL NOT NULL,
        protein REAL NOT NULL,
        sugar_or_carbs REAL NOT NULL,
        macro_column TEXT NOT NULL,
        unit_weight_matched INTEGER NOT NULL
    );

    CREATE INDEX IF NOT EXISTS idx_food_log_date ON food_log(date, time);

    CREATE TRIGGER IF NOT EXISTS food_log_no_update BEFORE UPDATE ON food_log
    BEGIN
        SELECT RAISE(ABORT, 'food_log is append-only');
    END;

    CREATE TRIGGER IF NOT EXISTS food_log_no_delete BEFORE DELETE ON food_log
    BEGIN
        SELECT RAISE(ABORT, 'food_log is append-only');
    END;

    CREATE TABLE IF NOT EXISTS nutrient_cache (
        key TEXT PRIMARY KEY,
        calories REAL NOT NULL,
        protein REAL NOT NULL,
        sugar_or_carbs REAL NOT NULL,
        source TEXT NOT NULL,
        fetched_at TEXT NOT NULL
    );
    `

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// AppendEntry inserts a log entry. Existing rows are never modified.
func (s *SQLiteStorage) AppendEntry(ctx context.Context, e *types.LogEntry) error {
	query := `
        INSERT INTO food_log (id, logged_at, date, time, food_name, amount, unit, grams,
            calories, protein, sugar_or_carbs, macro_column, unit_weight_matched)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err := s.db.ExecContext(ctx, query,
		e.ID, e.LoggedAt.Format(time.RFC3339Nano), e.Date, e.Time, e.FoodName,
		e.Amount, string(e.Unit), e.Grams, e.Calories, e.Protein, e.SugarOrCarbs,
		string(e.MacroColumn), e.UnitWeightMatched)
	if err != nil {
		return fmt.Errorf("failed to insert entry: %w", err)
	}
	return nil
}

// ListEntries returns entries newest first
func (s *SQLiteStorage) ListEntries(ctx context.Context, f Filter) ([]*types.LogEntry, error) {
	query := `
        SELECT id, logged_at, date, time, food_name, amount, unit, grams,
            calories, protein, sugar_or_carbs, macro_column, unit_weight_matched
        FROM food_log
        WHERE 1=1
    `
	args := []interface{}{}

	if f.StartDate != "" {
		query += " AND date >= ?"
		args = append(args, f.StartDate)
	}
	if f.EndDate != "" {
		query += " AND date <= ?"
		args = append(args, f.EndDate)
	}

	query += " ORDER BY date DESC, time DESC, logged_at DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []*types.LogEntry
	for rows.Next() {
		e := &types.LogEntry{}
		var loggedAt, unit, column string

		if err := rows.Scan(
			&e.ID, &loggedAt, &e.Date, &e.Time, &e.FoodName, &e.Amount, &unit, &e.Grams,
			&e.Calories, &e.Protein, &e.SugarOrCarbs, &column, &e.UnitWeightMatched); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}

		if e.LoggedAt, err = time.Parse(time.RFC3339Nano, loggedAt); err != nil {
			return nil, fmt.Errorf("failed to parse logged_at of %s: %w", e.ID, err)
		}
		e.Unit = types.Unit(unit)
		e.MacroColumn = types.MacroColumn(column)

		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return entries, nil
}

// DailyTotals sums the entries logged on date (YYYY-MM-DD)
func (s *SQLiteStorage) DailyTotals(ctx context.Context, date string) (Totals, error) {
	query := `
        SELECT COUNT(*), COALESCE(SUM(calories), 0), COALESCE(SUM(protein), 0), COALESCE(SUM(sugar_or_carbs), 0)
        FROM food_log
        WHERE date = ?
    `
	var t Totals
	if err := s.db.QueryRowContext(ctx, query, date).Scan(&t.Entries, &t.Calories, &t.Protein, &t.SugarOrCarbs); err != nil {
		return Totals{}, fmt.Errorf("failed to sum entries for %s: %w", date, err)
	}
	return t, nil
}

// GetCachedNutrients returns ErrCacheMiss when key is not cached
func (s *SQLiteStorage) GetCachedNutrients(ctx context.Context, key string) (*CachedNutrients, error) {
	query := `
        SELECT key, calories, protein, sugar_or_carbs, source, fetched_at
        FROM nutrient_cache
        WHERE key = ?
    `
	c := &CachedNutrients{}
	var fetchedAt string
	err := s.db.QueryRowContext(ctx, query, key).Scan(
		&c.Key, &c.Record.Calories, &c.Record.Protein, &c.Record.SugarOrCarbs, &c.Source, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read nutrient cache: %w", err)
	}
	if c.FetchedAt, err = time.Parse(time.RFC3339Nano, fetchedAt); err != nil {
		return nil, fmt.Errorf("failed to parse fetched_at: %w", err)
	}
	return c, nil
}

// PutCachedNutrients inserts or replaces a cache row
func (s *SQLiteStorage) PutCachedNutrients(ctx context.Context, c *CachedNutrients) error {
	query := `
        INSERT INTO nutrient_cache (key, calories, protein, sugar_or_carbs, source, fetched_at)
        VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT(key) DO UPDATE SET
            calories = excluded.calories,
            protein = excluded.protein,
            sugar_or_carbs = excluded.sugar_or_carbs,
            source = excluded.source,
            fetched_at = excluded.fetched_at
    `
	_, err := s.db.ExecContext(ctx, query,
		c.Key, c.Record.Calories, c.Record.Protein, c.Record.SugarOrCarbs, c.Source,
		c.FetchedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to write nutrient cache: %w", err)
	}
	return nil
}
