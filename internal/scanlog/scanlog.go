// Package scanlog keeps a SQLite history of recently scanned products.
//
// The log is informational only. Media naming and the product index never read it;
// the media store stays the single source of truth.
package scanlog

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/scanshelf/scanshelf/internal/logger"
)

//go:embed schema.sql
var schemaSQL string

// DefaultLimit caps Recent when no limit is given.
const DefaultLimit = 50

// Scan is one scanned product.
type Scan struct {
	PrimaryID      string    `json:"primary_id"`
	SecondaryID    string    `json:"secondary_id,omitempty"`
	BaseName       string    `json:"base_name"`
	Bucket         string    `json:"bucket"`
	CaptureCount   int       `json:"capture_count"`
	FirstScannedAt time.Time `json:"first_scanned_at"`
	LastScannedAt  time.Time `json:"last_scanned_at"`
}

// Log provides SQLite-backed scan history.
type Log struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// Open creates or opens the scan log at path. Use ":memory:" for tests.
func Open(path string, log *slog.Logger) (*Log, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(time.Hour)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("exec schema: %w", err)
	}

	return &Log{db: db, logger: logger.OrDiscard(log), now: time.Now}, nil
}

// Close closes the underlying database connection.
func (l *Log) Close() error {
	return l.db.Close()
}

// Record upserts a scan of primaryID. captured is how many assets the scan
// added to the product.
func (l *Log) Record(ctx context.Context, e Scan, captured int) error {
	if e.PrimaryID == "" {
		return errors.New("scanlog: primary id is required")
	}
	ts := formatTime(l.now())
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO scans (primary_id, secondary_id, base_name, bucket, capture_count, first_scanned_at, last_scanned_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(primary_id) DO UPDATE SET
			secondary_id    = excluded.secondary_id,
			base_name       = excluded.base_name,
			bucket          = excluded.bucket,
			capture_count   = scans.capture_count + excluded.capture_count,
			last_scanned_at = excluded.last_scanned_at`,
		e.PrimaryID, e.SecondaryID, e.BaseName, e.Bucket, captured, ts, ts)
	if err != nil {
		return fmt.Errorf("record scan: %w", err)
	}
	return nil
}

// Recent returns the most recently scanned products, newest first.
func (l *Log) Recent(ctx context.Context, limit int) ([]Scan, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return l.query(ctx, `SELECT `+columns+` FROM scans ORDER BY last_scanned_at DESC, primary_id LIMIT ?`, limit)
}

// Search returns scans whose primary or secondary identifier contains query,
// ignoring ASCII case.
func (l *Log) Search(ctx context.Context, query string, limit int) ([]Scan, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return l.Recent(ctx, limit)
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	pattern := "%" + escapeLike(query) + "%"
	return l.query(ctx, `SELECT `+columns+` FROM scans
		WHERE primary_id LIKE ? ESCAPE '\' OR secondary_id LIKE ? ESCAPE '\'
		ORDER BY last_scanned_at DESC, primary_id LIMIT ?`, pattern, pattern, limit)
}

// Get returns the entry for primaryID. ok is false when it was never scanned.
func (l *Log) Get(ctx context.Context, primaryID string) (Scan, bool, error) {
	entries, err := l.query(ctx, `SELECT `+columns+` FROM scans WHERE primary_id = ?`, primaryID)
	if err != nil || len(entries) == 0 {
		return Scan{}, false, err
	}
	return entries[0], true, nil
}

// Count returns the number of distinct scanned products.
func (l *Log) Count(ctx context.Context) (int, error) {
	var n int
	if err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scans`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count scans: %w", err)
	}
	return n, nil
}

// Delete removes one product from the log.
func (l *Log) Delete(ctx context.Context, primaryID string) error {
	if _, err := l.db.ExecContext(ctx, `DELETE FROM scans WHERE primary_id = ?`, primaryID); err != nil {
		return fmt.Errorf("delete scan: %w", err)
	}
	return nil
}

// DeleteAll clears the log.
func (l *Log) DeleteAll(ctx context.Context) error {
	if _, err := l.db.ExecContext(ctx, `DELETE FROM scans`); err != nil {
		return fmt.Errorf("clear scans: %w", err)
	}
	return nil
}

const columns = `primary_id, secondary_id, base_name, bucket, capture_count, first_scanned_at, last_scanned_at`

func (l *Log) query(ctx context.Context, q string, args ...any) ([]Scan, error) {
	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query scans: %w", err)
	}
	defer rows.Close()

	var entries []Scan
	for rows.Next() {
		var e Scan
		var first, last string
		if err := rows.Scan(&e.PrimaryID, &e.SecondaryID, &e.BaseName, &e.Bucket, &e.CaptureCount, &first, &last); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if e.FirstScannedAt, err = parseTime(first); err != nil {
			return nil, err
		}
		if e.LastScannedAt, err = parseTime(last); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// timeLayout has fixed-width fractional seconds so stored values sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}
