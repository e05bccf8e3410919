package verification

import (
	"context"

	"github.com/dmitrijs2005/bloodlink/internal/imaging"
	"github.com/dmitrijs2005/bloodlink/internal/models"
)

// Compressor shrinks a selected image. *imaging.Compressor satisfies it.
type Compressor interface {
	Compress(ctx context.Context, raw []byte, mimeType string) (*imaging.Result, error)
}

// ObjectStore uploads and deletes proof objects. *storage.Uploader satisfies it.
type ObjectStore interface {
	Upload(ctx context.Context, path string, blob []byte, contentType string) (string, error)
	Delete(ctx context.Context, paths []string) error
}

// RecordCreator commits a verification record. *records.Store satisfies it.
type RecordCreator interface {
	CreateVerificationRecord(ctx context.Context, requestID, prescriptionLocator, bloodBagLocator string) (*models.VerificationRecord, error)
}

// AttemptRecorder logs how each submit attempt ended. *journal.Journal
// satisfies it.
type AttemptRecorder interface {
	Record(ctx context.Context, a *models.Attempt) error
}

// Deps are the collaborators of a Coordinator. Journal and Previews are
// optional.
type Deps struct {
	Compressor Compressor
	Objects    ObjectStore
	Records    RecordCreator
	Journal    AttemptRecorder
	Previews   PreviewFactory
}
