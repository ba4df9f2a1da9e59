// Package journal records program runs in a SQL database. SQLite is the
// default backend; postgres:// and mysql:// DSNs select a server database.
package journal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	verrors "github.com/sambeau/vivarium/pkg/vivarium/errors"
)

// Run statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// DefaultMaxEntries is the number of runs kept when Config.MaxEntries is zero.
const DefaultMaxEntries = 1000

// Journal is a persistent log of program runs.
type Journal struct {
	mu         sync.RWMutex
	db         *sql.DB
	driver     string
	maxEntries int
	seq        uint64 // incremented on each recorded run
	warn       func(format string, args ...any)
}

// Entry is one recorded run.
type Entry struct {
	ID           int64
	Source       string // file path, or "<inline>"
	StartedAt    time.Time
	Duration     time.Duration
	Status       string
	ErrorClass   string
	ErrorMessage string
	OutputLines  int
}

// Config holds configuration for the journal.
type Config struct {
	DSN        string // SQLite path or postgres:// / mysql:// URL
	MaxEntries int    // oldest runs beyond this are pruned; negative keeps all

	// Warn receives failures that do not fail the operation, such as
	// pruning. Nil discards them.
	Warn func(format string, args ...any)
}

// NewEntry describes a finished run. A non-nil err marks it failed and
// records its class.
func NewEntry(source string, started time.Time, outputLines int, err error) Entry {
	e := Entry{
		Source:      source,
		StartedAt:   started,
		Duration:    time.Since(started),
		Status:      StatusOK,
		OutputLines: outputLines,
	}
	if err != nil {
		e.Status = StatusError
		e.ErrorMessage = err.Error()
		if class, ok := verrors.ClassOf(err); ok {
			e.ErrorClass = string(class)
		}
	}
	return e
}

// Open connects to the journal database and creates its schema.
func Open(cfg Config) (*Journal, error) {
	driver, source, err := parseDSN(cfg.DSN)
	if err != nil {
		return nil, err
	}

	if path := strings.TrimPrefix(cfg.DSN, "sqlite://"); driver == DriverSQLite && path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating journal directory: %w", err)
		}
	}

	db, err := sql.Open(driver, source)
	if err != nil {
		return nil, fmt.Errorf("opening journal database: %w", err)
	}

	// Verify connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to journal database: %w", err)
	}

	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	}

	j := &Journal{
		db:         db,
		driver:     driver,
		maxEntries: cfg.MaxEntries,
		warn:       cfg.Warn,
	}
	if j.maxEntries == 0 {
		j.maxEntries = DefaultMaxEntries
	}

	for _, stmt := range schema(driver) {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating journal schema: %w", err)
		}
	}
	return j, nil
}

// Driver returns the database/sql driver name in use.
func (j *Journal) Driver() string {
	return j.driver
}

// Record writes a run and prunes the oldest runs beyond the configured limit.
func (j *Journal) Record(e Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.Exec(rebind(j.driver, `
		INSERT INTO runs (source, started_at, duration_ms, status, error_class, error_message, output_lines)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`), e.Source, e.StartedAt.UnixMilli(), e.Duration.Milliseconds(), e.Status, e.ErrorClass, e.ErrorMessage, e.OutputLines)
	if err != nil {
		return fmt.Errorf("recording run: %w", err)
	}
	j.seq++

	if err := j.prune(); err != nil && j.warn != nil {
		// Pruning errors don't fail the record operation
		j.warn("journal pruning failed: %v", err)
	}
	return nil
}

// prune deletes all but the newest maxEntries runs.
// Must be called with lock held.
func (j *Journal) prune() error {
	if j.maxEntries < 0 {
		return nil
	}

	var cutoff int64
	err := j.db.QueryRow(rebind(j.driver,
		"SELECT id FROM runs ORDER BY id DESC LIMIT 1 OFFSET ?"), j.maxEntries-1).Scan(&cutoff)
	if err == sql.ErrNoRows {
		return nil // Under limit
	}
	if err != nil {
		return err
	}

	_, err = j.db.Exec(rebind(j.driver, "DELETE FROM runs WHERE id < ?"), cutoff)
	return err
}

// Seq returns the number of runs recorded through this handle.
func (j *Journal) Seq() uint64 {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.seq
}

// Recent returns up to limit runs, newest first.
func (j *Journal) Recent(limit int) ([]Entry, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}

	rows, err := j.db.Query(rebind(j.driver, `
		SELECT id, source, started_at, duration_ms, status, error_class, error_message, output_lines
		FROM runs
		ORDER BY id DESC
		LIMIT ?
	`), limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var started, duration int64
		if err := rows.Scan(&e.ID, &e.Source, &started, &duration, &e.Status, &e.ErrorClass, &e.ErrorMessage, &e.OutputLines); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		e.StartedAt = time.UnixMilli(started)
		e.Duration = time.Duration(duration) * time.Millisecond
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Count returns the number of recorded runs.
func (j *Journal) Count() (int, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var count int
	err := j.db.QueryRow("SELECT COUNT(*) FROM runs").Scan(&count)
	return count, err
}

// Clear removes every recorded run.
func (j *Journal) Clear() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.Exec("DELETE FROM runs")
	return err
}

// Close closes the database connection.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.db.Close()
}
