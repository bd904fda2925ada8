// Package store persists generation records in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"

	"codegend/pkg/types"
)

var (
	// ErrNotFound is returned when no record has the requested id.
	ErrNotFound = errors.New("generation not found")
	// ErrAlreadyTerminal is returned by Finish when the record has already
	// left the processing state.
	ErrAlreadyTerminal = errors.New("generation already finalized")
)

const (
	defaultLanguage = "unknown"
	defaultFilename = "generated_code.txt"
)

// Record is one persisted generation.
type Record struct {
	ID        string
	Prompt    string
	Model     string
	Status    types.GenerationStatus
	Language  string
	Filename  string
	Output    string
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Update lists the fields a terminal write sets. Empty strings and a nil
// Output leave the stored value unchanged.
type Update struct {
	Status   types.GenerationStatus
	Output   *string
	Language string
	Filename string
	Error    string
}

// DB wraps the SQLite connection.
type DB struct {
	conn *sql.DB
	now  func() time.Time
}

// Open opens (creating if needed) the database at path and initializes the
// schema. Use ":memory:" for a private in-memory database.
func Open(path string) (*DB, error) {
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_busy_timeout=5000&_journal_mode=WAL"
	}
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// Each connection would get its own empty database.
		conn.SetMaxOpenConns(1)
	}
	db := &DB{conn: conn, now: func() time.Time { return time.Now().UTC() }}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return db, nil
}

func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS generations (
		id TEXT PRIMARY KEY,
		prompt TEXT NOT NULL,
		model TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		language TEXT NOT NULL DEFAULT 'unknown',
		filename TEXT NOT NULL DEFAULT 'generated_code.txt',
		output TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_generations_created_at ON generations(created_at);
	CREATE INDEX IF NOT EXISTS idx_generations_status ON generations(status);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// Create inserts a processing record. An empty id is replaced by a new ULID.
func (db *DB) Create(ctx context.Context, id, prompt, model string) (Record, error) {
	if id == "" {
		id = ulid.Make().String()
	}
	now := db.now()
	rec := Record{
		ID:        id,
		Prompt:    prompt,
		Model:     model,
		Status:    types.StatusProcessing,
		Language:  defaultLanguage,
		Filename:  defaultFilename,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO generations (id, prompt, model, status, language, filename, output, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, '', '', ?, ?)`,
		rec.ID, rec.Prompt, rec.Model, string(rec.Status), rec.Language, rec.Filename, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return Record{}, fmt.Errorf("failed to insert generation: %w", err)
	}
	return rec, nil
}

const selectColumns = `id, prompt, model, status, language, filename, output, error, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (Record, error) {
	var r Record
	var status string
	err := s.Scan(&r.ID, &r.Prompt, &r.Model, &status, &r.Language, &r.Filename, &r.Output, &r.Error, &r.CreatedAt, &r.UpdatedAt)
	r.Status = types.GenerationStatus(status)
	return r, err
}

// Find returns the record with id or ErrNotFound.
func (db *DB) Find(ctx context.Context, id string) (Record, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM generations WHERE id = ?`, id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("failed to query generation: %w", err)
	}
	return r, nil
}

// List returns up to limit records, newest first.
func (db *DB) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.conn.QueryContext(ctx, `SELECT `+selectColumns+` FROM generations ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query generations: %w", err)
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan generation: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}

// Finish applies a terminal update only while the record is still
// processing. The check and the write are one statement, so concurrent
// writers cannot both succeed.
func (db *DB) Finish(ctx context.Context, id string, u Update) error {
	sets := []string{"status = ?", "updated_at = ?"}
	args := []any{string(u.Status), db.now()}
	if u.Output != nil {
		sets = append(sets, "output = ?")
		args = append(args, *u.Output)
	}
	if u.Language != "" {
		sets = append(sets, "language = ?")
		args = append(args, u.Language)
	}
	if u.Filename != "" {
		sets = append(sets, "filename = ?")
		args = append(args, u.Filename)
	}
	if u.Error != "" {
		sets = append(sets, "error = ?")
		args = append(args, u.Error)
	}
	args = append(args, id, string(types.StatusProcessing))
	res, err := db.conn.ExecContext(ctx,
		`UPDATE generations SET `+strings.Join(sets, ", ")+` WHERE id = ? AND status = ?`, args...)
	if err != nil {
		return fmt.Errorf("failed to update generation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update generation: %w", err)
	}
	if n > 0 {
		return nil
	}
	if _, err := db.Find(ctx, id); err != nil {
		return err
	}
	return ErrAlreadyTerminal
}

// Delete removes the record and reports whether it existed.
func (db *DB) Delete(ctx context.Context, id string) (bool, error) {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM generations WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete generation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete generation: %w", err)
	}
	return n > 0, nil
}

// Ping checks the database connection.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
