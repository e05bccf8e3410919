package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/dmitrijs2005/bloodlink/internal/config"
	"github.com/dmitrijs2005/bloodlink/internal/imaging"
	"github.com/dmitrijs2005/bloodlink/internal/journal"
	"github.com/dmitrijs2005/bloodlink/internal/logging"
	"github.com/dmitrijs2005/bloodlink/internal/models"
	"github.com/dmitrijs2005/bloodlink/internal/records"
	"github.com/dmitrijs2005/bloodlink/internal/storage"
	"github.com/dmitrijs2005/bloodlink/internal/verification"
	"github.com/jonboulle/clockwork"
)

// recordStore is the part of *records.Store the client uses.
type recordStore interface {
	CreateVerificationRecord(ctx context.Context, requestID, prescriptionLocator, bloodBagLocator string) (*models.VerificationRecord, error)
	GetStatusByTrackingID(ctx context.Context, trackingID string) (models.VerificationStatus, error)
	SetStatus(ctx context.Context, trackingID string, status models.VerificationStatus, note string) error
	History(ctx context.Context, trackingID string) ([]models.StatusChange, error)
}

// attemptJournal is the part of *journal.Journal the client uses.
type attemptJournal interface {
	Record(ctx context.Context, a *models.Attempt) error
	ListByRequest(ctx context.Context, requestID string) ([]models.Attempt, error)
}

type App struct {
	config     *config.Config
	logger     logging.Logger
	out        io.Writer
	reader     *bufio.Reader
	clock      clockwork.Clock
	tty        bool
	compressor verification.Compressor
	objects    verification.ObjectStore
	records    recordStore
	journal    attemptJournal
	previews   verification.PreviewFactory
	closers    []io.Closer

	requestID string
	coord     *verification.Coordinator
}

// NewApp connects to every backend named in c.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewStderrLogger(slog.LevelInfo)

	comp, err := imaging.NewCompressor(imaging.Constraints{
		MaxSizeMB:        c.MaxSizeMB,
		MaxWidthOrHeight: c.MaxWidthOrHeight,
		OutputMimeType:   imaging.MimeJPEG,
		Quality:          c.Quality,
		MaxInputBytes:    int64(c.MaxInputSizeMB) << 20,
	})
	if err != nil {
		return nil, fmt.Errorf("compressor: %w", err)
	}

	backend, err := storage.NewS3Backend(ctx, storage.S3Options{
		Region:        c.S3Region,
		AccessKey:     c.S3RootUser,
		SecretKey:     c.S3RootPassword,
		Bucket:        c.S3Bucket,
		Endpoint:      c.S3BaseEndpoint,
		PublicBaseURL: c.S3PublicBaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("object storage: %w", err)
	}

	store, err := records.Open(ctx, c.DatabaseDSN, records.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("record store: %w", err)
	}

	j, err := journal.Open(ctx, c.JournalPath)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("journal: %w", err)
	}

	previews, err := verification.NewFilePreviews(c.PreviewDir)
	if err != nil {
		_ = store.Close()
		_ = j.Close()
		return nil, err
	}

	app := &App{
		config:     c,
		logger:     logger,
		out:        os.Stdout,
		reader:     bufio.NewReader(os.Stdin),
		clock:      clockwork.NewRealClock(),
		tty:        isTerminal(int(os.Stdout.Fd())),
		compressor: comp,
		objects:    storage.NewUploader(backend, logger),
		records:    store,
		journal:    j,
		previews:   previews,
		closers:    []io.Closer{store, j},
	}
	return app, nil
}

// Run starts the REPL and blocks until the user exits or stdin closes.
func (a *App) Run(ctx context.Context) {
	defer a.Close()

	printlnFn("Welcome to bloodlink (type 'help' for commands)")
	runREPL(ctx, a, a.getStatus, bufio.NewScanner(a.reader))
}

// Close releases the current coordinator and every backend.
func (a *App) Close() error {
	var errs []error
	if a.coord != nil {
		errs = append(errs, a.coord.Close())
		a.coord = nil
	}
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) getStatus() string {
	if a.requestID == "" {
		return ""
	}
	s := a.requestID
	if a.coord != nil {
		s += " " + string(a.coord.State())
	}
	return fmt.Sprintf("(%s)", s)
}

func (a *App) newCoordinator(requestID string) (*verification.Coordinator, error) {
	return verification.New(requestID, verification.Deps{
		Compressor: a.compressor,
		Objects:    a.objects,
		Records:    a.records,
		Journal:    a.journal,
		Previews:   a.previews,
	}, verification.WithClock(a.clock), verification.WithLogger(a.logger))
}

func (a *App) maxInputBytes() int64 {
	if a.config.MaxInputSizeMB <= 0 {
		return imaging.DefaultMaxInputBytes
	}
	return int64(a.config.MaxInputSizeMB) << 20
}

func (a *App) pollIntervals() (stage, poll time.Duration) {
	return a.config.StageInterval, a.config.PollInterval
}
