package records

import (
	"context"
	"time"

	"github.com/dmitrijs2005/bloodlink/internal/models"
)

// Repository is the row-level access to the record store tables.
type Repository interface {
	Insert(ctx context.Context, rec *models.VerificationRecord) error
	LatestByRequest(ctx context.Context, requestID string) (*models.VerificationRecord, error)
	UpdateStatus(ctx context.Context, id string, status models.VerificationStatus, at time.Time) error
	AppendHistory(ctx context.Context, change *models.StatusChange) error
	History(ctx context.Context, verificationID string) ([]models.StatusChange, error)
}
