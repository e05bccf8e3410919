// Package journal keeps a local SQLite log of submission attempts: how each
// attempt ended and which object paths it used.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/bloodlink/internal/journal/migrations"
	"github.com/dmitrijs2005/bloodlink/internal/models"
	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// Journal is a SQLite-backed attempt log.
type Journal struct {
	db *sql.DB
}

// New wraps an already migrated database.
func New(db *sql.DB) *Journal {
	return &Journal{db: db}
}

// RunMigrations applies the embedded schema.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	return goose.UpContext(ctx, db, ".")
}

// Open opens (creating if needed) the journal at dsn and migrates it.
func Open(ctx context.Context, dsn string) (*Journal, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	// a single connection keeps ":memory:" databases and writers consistent
	db.SetMaxOpenConns(1)

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}

	return New(db), nil
}

// Record appends a. Missing ID and CreatedAt are filled in.
func (j *Journal) Record(ctx context.Context, a *models.Attempt) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO attempts (id, request_id, state, prescription_path, blood_bag_path, record_id, error, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := j.db.ExecContext(ctx, query,
		a.ID, a.RequestID, string(a.State), a.PrescriptionPath, a.BloodBagPath, a.RecordID, a.Error, a.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to insert attempt: %w", err)
	}
	return nil
}

// ListByRequest returns the attempts for requestID, oldest first.
func (j *Journal) ListByRequest(ctx context.Context, requestID string) ([]models.Attempt, error) {
	query := `SELECT id, request_id, state, prescription_path, blood_bag_path, record_id, error, created_at
			FROM attempts WHERE request_id = ? ORDER BY created_at, rowid`

	rows, err := j.db.QueryContext(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to select attempts: %w", err)
	}
	defer rows.Close()

	var result []models.Attempt
	for rows.Next() {
		var (
			a      models.Attempt
			state  string
			millis int64
		)
		if err := rows.Scan(&a.ID, &a.RequestID, &state, &a.PrescriptionPath, &a.BloodBagPath, &a.RecordID, &a.Error, &millis); err != nil {
			return nil, fmt.Errorf("failed to scan attempt: %w", err)
		}
		a.State = models.SubmissionState(state)
		a.CreatedAt = time.UnixMilli(millis).UTC()
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}
