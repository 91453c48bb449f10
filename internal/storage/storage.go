package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"wedding-rsvp/internal/apperr"
	"wedding-rsvp/internal/models"
	"wedding-rsvp/internal/outbox"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Storage is the local SQLite database holding the outbox, submission log and credentials
type Storage struct {
	db *sqlx.DB
}

// Open creates or opens the database file and applies migrations
func Open(path string) (*Storage, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sqlx.Open("sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite has a single writer
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := migrateUp(db.DB); err != nil {
		db.Close()
		return nil, err
	}

	return New(db), nil
}

// New wraps an already migrated database
func New(db *sqlx.DB) *Storage {
	return &Storage{db: db}
}

// Close closes the database
func (s *Storage) Close() error {
	return s.db.Close()
}

// Ping checks the database connection
func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func migrateUp(db *sql.DB) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

const entryColumns = `id, kind, payload, status, attempts, max_attempts, last_error,
	next_attempt_at, processed_at, created_at, updated_at`

// SaveEntry inserts a new outbox entry
func (s *Storage) SaveEntry(ctx context.Context, entry *outbox.Entry) error {
	_, err := s.db.NamedExecContext(ctx, `INSERT INTO outbox_entries (`+entryColumns+`)
		VALUES (:id, :kind, :payload, :status, :attempts, :max_attempts, :last_error,
			:next_attempt_at, :processed_at, :created_at, :updated_at)`, entry)
	if err != nil {
		return fmt.Errorf("failed to save outbox entry: %w", err)
	}
	return nil
}

// FindDue returns pending entries and failed entries whose next attempt is due, oldest first
func (s *Storage) FindDue(ctx context.Context, now time.Time, limit int) ([]*outbox.Entry, error) {
	entries := make([]*outbox.Entry, 0)
	err := s.db.SelectContext(ctx, &entries, `SELECT `+entryColumns+` FROM outbox_entries
		WHERE status = ? OR (status = ? AND next_attempt_at <= ?)
		ORDER BY created_at
		LIMIT ?`, outbox.StatusPending, outbox.StatusFailed, now.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to find due outbox entries: %w", err)
	}
	return entries, nil
}

// FindEntry returns one entry by id
func (s *Storage) FindEntry(ctx context.Context, id string) (*outbox.Entry, error) {
	var entry outbox.Entry
	err := s.db.GetContext(ctx, &entry, `SELECT `+entryColumns+` FROM outbox_entries WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("outbox entry %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox entry: %w", err)
	}
	return &entry, nil
}

// UpdateEntry stores the delivery state of an entry
func (s *Storage) UpdateEntry(ctx context.Context, entry *outbox.Entry) error {
	res, err := s.db.NamedExecContext(ctx, `UPDATE outbox_entries SET
		status = :status,
		attempts = :attempts,
		last_error = :last_error,
		next_attempt_at = :next_attempt_at,
		processed_at = :processed_at,
		updated_at = :updated_at
		WHERE id = :id`, entry)
	if err != nil {
		return fmt.Errorf("failed to update outbox entry: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.NotFound("outbox entry %s not found", entry.ID)
	}
	return nil
}

// ListEntries returns the newest entries, optionally filtered by status
func (s *Storage) ListEntries(ctx context.Context, status outbox.Status, limit int) ([]*outbox.Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	entries := make([]*outbox.Entry, 0)
	var err error
	if status == "" {
		err = s.db.SelectContext(ctx, &entries, `SELECT `+entryColumns+` FROM outbox_entries
			ORDER BY created_at DESC LIMIT ?`, limit)
	} else {
		err = s.db.SelectContext(ctx, &entries, `SELECT `+entryColumns+` FROM outbox_entries
			WHERE status = ? ORDER BY created_at DESC LIMIT ?`, status, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list outbox entries: %w", err)
	}
	return entries, nil
}

// CountByStatus returns the number of entries in each status
func (s *Storage) CountByStatus(ctx context.Context) (map[outbox.Status]int64, error) {
	rows := []struct {
		Status outbox.Status `db:"status"`
		Count  int64         `db:"count"`
	}{}
	if err := s.db.SelectContext(ctx, &rows, `SELECT status, COUNT(*) AS count FROM outbox_entries GROUP BY status`); err != nil {
		return nil, fmt.Errorf("failed to count outbox entries: %w", err)
	}
	counts := make(map[outbox.Status]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

// DeleteSentBefore removes delivered entries processed before the cutoff
func (s *Storage) DeleteSentBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM outbox_entries WHERE status = ? AND processed_at < ?`,
		outbox.StatusSent, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete outbox entries: %w", err)
	}
	return res.RowsAffected()
}

// RecordSubmission appends an accepted submission to the local log
func (s *Storage) RecordSubmission(ctx context.Context, rec *models.SubmissionRecord) error {
	if rec.SubmittedAt.IsZero() {
		rec.SubmittedAt = time.Now().UTC()
	}
	res, err := s.db.NamedExecContext(ctx, `INSERT INTO submissions
		(phone, record_ids, attending_count, declined_count, song_request, track_uri, submitted_at)
		VALUES (:phone, :record_ids, :attending_count, :declined_count, :song_request, :track_uri, :submitted_at)`, rec)
	if err != nil {
		return fmt.Errorf("failed to record submission: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		rec.ID = id
	}
	return nil
}

// SubmissionFilter narrows ListSubmissions
type SubmissionFilter struct {
	// Attending selects submissions with at least one attending guest (true) or none (false)
	Attending *bool
	Limit     int
}

// ListSubmissions returns the newest submissions first
func (s *Storage) ListSubmissions(ctx context.Context, filter SubmissionFilter) ([]models.SubmissionRecord, error) {
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	query := `SELECT id, phone, record_ids, attending_count, declined_count, song_request, track_uri, submitted_at
		FROM submissions`
	args := []any{}
	if filter.Attending != nil {
		if *filter.Attending {
			query += ` WHERE attending_count > 0`
		} else {
			query += ` WHERE attending_count = 0`
		}
	}
	query += ` ORDER BY submitted_at DESC, id DESC LIMIT ?`
	args = append(args, filter.Limit)

	records := make([]models.SubmissionRecord, 0)
	if err := s.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	return records, nil
}

// GetCredential returns a stored credential, or "" when unset
func (s *Storage) GetCredential(ctx context.Context, name string) (string, error) {
	var value string
	err := s.db.GetContext(ctx, &value, `SELECT value FROM credentials WHERE name = ?`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get credential %s: %w", name, err)
	}
	return value, nil
}

// PutCredential stores or replaces a credential
func (s *Storage) PutCredential(ctx context.Context, name, value string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO credentials (name, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		name, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to store credential %s: %w", name, err)
	}
	return nil
}
