// Package records is the PostgreSQL-backed record store. It owns the
// donation_verifications and verification_status_history tables and exposes
// the operations the submission coordinator and the approval poller need.
package records

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/bloodlink/internal/common"
	"github.com/dmitrijs2005/bloodlink/internal/dbx"
	"github.com/dmitrijs2005/bloodlink/internal/logging"
	"github.com/dmitrijs2005/bloodlink/internal/models"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

const (
	noteSubmitted = "submitted"
)

// Store implements the record store operations on top of a Repository
// factory, running multi-row writes in one transaction.
type Store struct {
	db     *sql.DB
	repo   func(dbx.DBTX) Repository
	clock  clockwork.Clock
	logger logging.Logger
	newID  func() string
}

// StoreOption customizes a Store.
type StoreOption func(*Store)

// WithClock sets the clock used for record timestamps.
func WithClock(c clockwork.Clock) StoreOption {
	return func(s *Store) { s.clock = c }
}

// WithLogger sets the store logger.
func WithLogger(l logging.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// NewStore wraps an open database.
func NewStore(db *sql.DB, opts ...StoreOption) *Store {
	s := &Store{
		db:     db,
		repo:   func(d dbx.DBTX) Repository { return NewPostgresRepository(d) },
		clock:  clockwork.NewRealClock(),
		logger: logging.NewDiscardLogger(),
		newID:  uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// CreateVerificationRecord inserts a PENDING record that references both
// uploaded proofs together with its first history row. Nothing is written
// unless both rows are.
func (s *Store) CreateVerificationRecord(ctx context.Context, requestID, prescriptionLocator, bloodBagLocator string) (*models.VerificationRecord, error) {
	if strings.TrimSpace(requestID) == "" || prescriptionLocator == "" || bloodBagLocator == "" {
		return nil, fmt.Errorf("%w: request id and both locators are required", common.ErrInvalidInput)
	}

	now := s.clock.Now().UTC()
	rec := &models.VerificationRecord{
		ID:              s.newID(),
		RequestID:       requestID,
		TrackingID:      requestID,
		PrescriptionURL: prescriptionLocator,
		BloodBagURL:     bloodBagLocator,
		Status:          models.StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repo(tx)
		if err := repo.Insert(ctx, rec); err != nil {
			return err
		}
		return repo.AppendHistory(ctx, &models.StatusChange{
			VerificationID: rec.ID,
			Status:         rec.Status,
			Note:           noteSubmitted,
			ChangedAt:      now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "verification record created", "request_id", requestID, "record_id", rec.ID)
	return rec, nil
}

// GetStatusByTrackingID returns the status of the latest record for the
// tracking id, or common.ErrorNotFound.
func (s *Store) GetStatusByTrackingID(ctx context.Context, trackingID string) (models.VerificationStatus, error) {
	rec, err := s.repo(s.db).LatestByRequest(ctx, trackingID)
	if err != nil {
		return "", err
	}
	return rec.Status, nil
}

// Latest returns the latest record for the tracking id.
func (s *Store) Latest(ctx context.Context, trackingID string) (*models.VerificationRecord, error) {
	return s.repo(s.db).LatestByRequest(ctx, trackingID)
}

// SetStatus moves the latest record for trackingID to status and appends a
// history row carrying note.
func (s *Store) SetStatus(ctx context.Context, trackingID string, status models.VerificationStatus, note string) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", common.ErrInvalidInput, status)
	}

	now := s.clock.Now().UTC()
	var recordID string
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repo(tx)
		rec, err := repo.LatestByRequest(ctx, trackingID)
		if err != nil {
			return err
		}
		recordID = rec.ID
		if err := repo.UpdateStatus(ctx, rec.ID, status, now); err != nil {
			return err
		}
		return repo.AppendHistory(ctx, &models.StatusChange{
			VerificationID: rec.ID,
			Status:         status,
			Note:           note,
			ChangedAt:      now,
		})
	})
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "verification status changed", "tracking_id", trackingID, "record_id", recordID, "status", status)
	return nil
}

// History returns the status history of the latest record for trackingID.
func (s *Store) History(ctx context.Context, trackingID string) ([]models.StatusChange, error) {
	repo := s.repo(s.db)
	rec, err := repo.LatestByRequest(ctx, trackingID)
	if err != nil {
		return nil, err
	}
	return repo.History(ctx, rec.ID)
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
