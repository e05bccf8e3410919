package verification

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/dmitrijs2005/bloodlink/internal/common"
	"github.com/dmitrijs2005/bloodlink/internal/imaging"
	"github.com/dmitrijs2005/bloodlink/internal/logging"
	"github.com/dmitrijs2005/bloodlink/internal/models"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrSelectionSuperseded is returned by Select when the same slot was
	// selected again before this compression finished. The newer selection wins.
	ErrSelectionSuperseded = errors.New("selection superseded")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("coordinator closed")
)

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithClock sets the clock used to stamp object paths.
func WithClock(c clockwork.Clock) Option {
	return func(co *Coordinator) { co.clock = c }
}

// WithLogger sets the logger. The request id is attached to every entry.
func WithLogger(l logging.Logger) Option {
	return func(co *Coordinator) { co.logger = l }
}

type slot struct {
	asset   *models.ProofAsset
	preview Preview
	// gen counts selections; a compression only installs its result if gen
	// has not moved on meanwhile.
	gen     uint64
	pending int
}

// Coordinator runs the submission pipeline for one request id.
type Coordinator struct {
	requestID string
	deps      Deps
	clock     clockwork.Clock
	logger    logging.Logger

	mu         sync.Mutex
	state      models.SubmissionState
	slots      map[models.ProofKind]*slot
	lastMillis int64
	closed     bool
}

// New returns a Coordinator in the DRAFT state.
func New(requestID string, deps Deps, opts ...Option) (*Coordinator, error) {
	if strings.TrimSpace(requestID) == "" {
		return nil, fmt.Errorf("%w: empty request id", common.ErrInvalidInput)
	}
	if deps.Compressor == nil || deps.Objects == nil || deps.Records == nil {
		return nil, fmt.Errorf("%w: compressor, object store and record store are required", common.ErrInvalidInput)
	}

	c := &Coordinator{
		requestID: requestID,
		deps:      deps,
		clock:     clockwork.NewRealClock(),
		logger:    logging.NewDiscardLogger(),
		state:     models.SubmissionDraft,
		slots:     make(map[models.ProofKind]*slot, len(models.ProofKinds)),
	}
	for _, o := range opts {
		o(c)
	}
	for _, k := range models.ProofKinds {
		c.slots[k] = &slot{}
	}
	c.logger = c.logger.With("request_id", requestID)
	return c, nil
}

// RequestID returns the request this coordinator serves.
func (c *Coordinator) RequestID() string {
	return c.requestID
}

// State returns the current submission state.
func (c *Coordinator) State() models.SubmissionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Asset returns a copy of the current asset for kind, or nil.
func (c *Coordinator) Asset(kind models.ProofKind) *models.ProofAsset {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.slots[kind]
	if !ok {
		return nil
	}
	return s.asset.Clone()
}

// Preview returns the live preview for kind, or nil.
func (c *Coordinator) Preview(kind models.ProofKind) Preview {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.slots[kind]
	if !ok {
		return nil
	}
	return s.preview
}

// Select installs a newly chosen image for kind and compresses it right
// away. Selections for different kinds run independently; a failure is
// reported for this kind only and leaves the other slot untouched.
//
// On failure the slot keeps the raw selection without compressed bytes, so
// Submit reports ErrIncompleteSubmission until the user selects again.
func (c *Coordinator) Select(ctx context.Context, kind models.ProofKind, raw []byte, mimeType string) (*models.ProofAsset, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown proof kind %q", common.ErrInvalidInput, kind)
	}

	c.mu.Lock()
	if err := c.editableLocked(); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	s := c.slots[kind]
	s.gen++
	s.pending++
	gen := s.gen
	c.state = models.SubmissionCompressing
	c.mu.Unlock()

	res, err := c.deps.Compressor.Compress(ctx, raw, mimeType)

	var preview Preview
	if err == nil && c.deps.Previews != nil {
		p, perr := c.deps.Previews.NewPreview(kind, res.Bytes, res.MimeType)
		if perr != nil {
			c.logger.Warn(ctx, "preview not created", "kind", kind, "error", perr)
		} else {
			preview = p
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	s.pending--

	if gen != s.gen || c.closed {
		releasePreview(ctx, c.logger, preview)
		if c.closed {
			return nil, ErrClosed
		}
		return nil, ErrSelectionSuperseded
	}

	asset := &models.ProofAsset{
		Kind:              kind,
		RawBytes:          raw,
		MimeType:          imaging.NormalizeMime(mimeType),
		OriginalSizeBytes: int64(len(raw)),
	}

	releasePreview(ctx, c.logger, s.preview)
	s.preview = nil

	if err != nil {
		s.asset = asset
		c.logger.Info(ctx, "selection rejected", "kind", kind, "error", err)
		return nil, err
	}

	asset.CompressedBytes = res.Bytes
	asset.CompressedMimeType = res.MimeType
	s.asset = asset
	s.preview = preview

	c.logger.Debug(ctx, "proof compressed", "kind", kind,
		"original_bytes", len(raw), "compressed_bytes", len(res.Bytes), "within_target", res.WithinTarget)
	return asset.Clone(), nil
}

// Submit uploads both compressed proofs concurrently and commits a record
// that references them. Any failure removes whatever was uploaded in this
// attempt; the selections are kept so Submit can simply be called again.
func (c *Coordinator) Submit(ctx context.Context) (*models.VerificationRecord, error) {
	c.mu.Lock()
	if err := c.submittableLocked(); err != nil {
		c.mu.Unlock()
		return nil, err
	}

	millis := c.nextMillisLocked()
	jobs := make([]uploadJob, 0, len(models.ProofKinds))
	for _, k := range models.ProofKinds {
		a := c.slots[k].asset
		jobs = append(jobs, uploadJob{
			kind: k,
			path: objectPath(k, c.requestID, millis, a.CompressedMimeType),
			blob: a.CompressedBytes,
			mime: a.CompressedMimeType,
		})
	}
	c.state = models.SubmissionUploading
	c.mu.Unlock()

	attempt := &models.Attempt{
		RequestID:        c.requestID,
		PrescriptionPath: jobs[0].path,
		BloodBagPath:     jobs[1].path,
	}

	c.logger.Info(ctx, "submission started", "prescription_path", jobs[0].path, "blood_bag_path", jobs[1].path)

	if err := c.uploadAll(ctx, jobs); err != nil {
		c.rollback(ctx, uploadedPaths(jobs))
		c.finish(ctx, models.SubmissionFailed, attempt, err)
		return nil, err
	}

	c.mu.Lock()
	for _, j := range jobs {
		a := c.slots[j.kind].asset
		a.ObjectPath = j.path
		a.PublicLocator = j.locator
	}
	c.state = models.SubmissionCommitting
	c.mu.Unlock()

	rec, err := c.deps.Records.CreateVerificationRecord(ctx, c.requestID, jobs[0].locator, jobs[1].locator)
	if err != nil {
		err = fmt.Errorf("%w: %w", common.ErrCommitFailed, err)
		c.rollback(ctx, uploadedPaths(jobs))
		c.finish(ctx, models.SubmissionRolledBack, attempt, err)
		return nil, err
	}

	attempt.RecordID = rec.ID
	c.finish(ctx, models.SubmissionCommitted, attempt, nil)
	return rec, nil
}

// Close releases every preview. Further Select and Submit calls fail with
// ErrClosed.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	var errs []error
	for _, k := range models.ProofKinds {
		s := c.slots[k]
		if s.preview != nil {
			if err := s.preview.Release(); err != nil {
				errs = append(errs, err)
			}
			s.preview = nil
		}
	}
	return errors.Join(errs...)
}

func (c *Coordinator) editableLocked() error {
	switch {
	case c.closed:
		return ErrClosed
	case c.state.InFlight():
		return common.ErrSubmissionInFlight
	case c.state == models.SubmissionCommitted:
		return common.ErrAlreadyCommitted
	}
	return nil
}

func (c *Coordinator) submittableLocked() error {
	if err := c.editableLocked(); err != nil {
		return err
	}
	if !c.state.Retryable() {
		return fmt.Errorf("%w: no proofs selected", common.ErrIncompleteSubmission)
	}
	for _, k := range models.ProofKinds {
		s := c.slots[k]
		if s.pending > 0 {
			return fmt.Errorf("%w: %s is still compressing", common.ErrIncompleteSubmission, k)
		}
		if !s.asset.Compressed() {
			return fmt.Errorf("%w: %s is missing", common.ErrIncompleteSubmission, k)
		}
	}
	return nil
}

// nextMillisLocked returns the clock's unix millis, bumped past the previous
// attempt so two attempts never share object paths.
func (c *Coordinator) nextMillisLocked() int64 {
	m := c.clock.Now().UnixMilli()
	if m <= c.lastMillis {
		m = c.lastMillis + 1
	}
	c.lastMillis = m
	return m
}

type uploadJob struct {
	kind    models.ProofKind
	path    string
	blob    []byte
	mime    string
	locator string
}

// uploadAll runs every upload to completion, even when one fails early, so
// the caller knows exactly which objects exist.
func (c *Coordinator) uploadAll(ctx context.Context, jobs []uploadJob) error {
	var g errgroup.Group
	for i := range jobs {
		j := &jobs[i]
		g.Go(func() error {
			loc, err := c.deps.Objects.Upload(ctx, j.path, j.blob, j.mime)
			if err != nil {
				return err
			}
			j.locator = loc
			return nil
		})
	}

	err := g.Wait()
	if err != nil && !errors.Is(err, common.ErrUploadFailed) {
		err = fmt.Errorf("%w: %w", common.ErrUploadFailed, err)
	}
	return err
}

func uploadedPaths(jobs []uploadJob) []string {
	var paths []string
	for _, j := range jobs {
		if j.locator != "" {
			paths = append(paths, j.path)
		}
	}
	return paths
}

// rollback deletes paths once. Failures are logged and otherwise ignored.
func (c *Coordinator) rollback(ctx context.Context, paths []string) {
	if len(paths) == 0 {
		return
	}
	if err := c.deps.Objects.Delete(context.WithoutCancel(ctx), paths); err != nil {
		c.logger.Warn(ctx, "rollback delete failed", "paths", paths, "error", err)
		return
	}
	c.logger.Info(ctx, "rolled back uploads", "paths", paths)
}

func (c *Coordinator) finish(ctx context.Context, state models.SubmissionState, attempt *models.Attempt, cause error) {
	c.mu.Lock()
	c.state = state
	if state != models.SubmissionCommitted {
		for _, k := range models.ProofKinds {
			c.slots[k].asset.ClearUpload()
		}
	}
	c.mu.Unlock()

	attempt.State = state
	if cause != nil {
		attempt.Error = cause.Error()
		c.logger.Warn(ctx, "submission failed", "state", state, "error", cause)
	} else {
		c.logger.Info(ctx, "submission committed", "record_id", attempt.RecordID)
	}

	if c.deps.Journal != nil {
		if err := c.deps.Journal.Record(context.WithoutCancel(ctx), attempt); err != nil {
			c.logger.Warn(ctx, "journal write failed", "error", err)
		}
	}
}

func objectPath(kind models.ProofKind, requestID string, millis int64, mimeType string) string {
	return kind.Category() + "/" + requestID + "_" + strconv.FormatInt(millis, 10) + "." + imaging.Extension(mimeType)
}

func releasePreview(ctx context.Context, logger logging.Logger, p Preview) {
	if p == nil {
		return
	}
	if err := p.Release(); err != nil {
		logger.Warn(ctx, "preview release failed", "location", p.Location(), "error", err)
	}
}
