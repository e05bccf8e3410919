package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/bloodlink/internal/common"
	"github.com/dmitrijs2005/bloodlink/internal/dbx"
	"github.com/dmitrijs2005/bloodlink/internal/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Insert(ctx context.Context, rec *models.VerificationRecord) error {
	query :=
		`INSERT INTO donation_verifications (id, request_id, prescription_url, blood_bag_url, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 `

	_, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.RequestID, rec.PrescriptionURL, rec.BloodBagURL, string(rec.Status), rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

// LatestByRequest returns the newest record for requestID. Records created
// within the same timestamp are ordered by insertion.
func (r *PostgresRepository) LatestByRequest(ctx context.Context, requestID string) (*models.VerificationRecord, error) {
	query :=
		`SELECT id, request_id, prescription_url, blood_bag_url, status, created_at, updated_at
		 FROM donation_verifications
		 WHERE request_id = $1
		 ORDER BY created_at DESC, seq DESC
		 LIMIT 1
		 `

	rec := &models.VerificationRecord{}
	var status string
	err := r.db.QueryRowContext(ctx, query, requestID).Scan(
		&rec.ID, &rec.RequestID, &rec.PrescriptionURL, &rec.BloodBagURL, &status, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	rec.Status = models.VerificationStatus(status)
	rec.TrackingID = rec.RequestID
	return rec, nil
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, status models.VerificationStatus, at time.Time) error {
	query := `UPDATE donation_verifications SET status = $2, updated_at = $3 WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id, string(status), at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}

	return nil
}

func (r *PostgresRepository) AppendHistory(ctx context.Context, change *models.StatusChange) error {
	query :=
		`INSERT INTO verification_status_history (verification_id, status, note, changed_at)
		 VALUES ($1, $2, $3, $4)
		 `

	_, err := r.db.ExecContext(ctx, query, change.VerificationID, string(change.Status), change.Note, change.ChangedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) History(ctx context.Context, verificationID string) ([]models.StatusChange, error) {
	query :=
		`SELECT verification_id, status, note, changed_at
		 FROM verification_status_history
		 WHERE verification_id = $1
		 ORDER BY changed_at, id
		 `

	rows, err := r.db.QueryContext(ctx, query, verificationID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.StatusChange
	for rows.Next() {
		var c models.StatusChange
		var status string
		if err := rows.Scan(&c.VerificationID, &status, &c.Note, &c.ChangedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		c.Status = models.VerificationStatus(status)
		result = append(result, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}
