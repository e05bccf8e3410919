package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/dmitrijs2005/bloodlink/internal/approval"
	"github.com/dmitrijs2005/bloodlink/internal/common"
	"github.com/dmitrijs2005/bloodlink/internal/models"
	"golang.org/x/sync/errgroup"
)

var errNoRequest = errors.New("no request selected")

// notifyContext is a test seam for signal.NotifyContext.
var notifyContext = signal.NotifyContext

// Request switches to requestID, dropping the previous request's selections.
func (a *App) Request(ctx context.Context, args []string) error {
	var id string
	if len(args) > 0 {
		id = args[0]
	} else {
		var err error
		if id, err = GetSimpleText(a.reader, "Request id", a.out); err != nil {
			return err
		}
	}

	coord, err := a.newCoordinator(id)
	if err != nil {
		printlnFn("Error:", err)
		return err
	}
	if a.coord != nil {
		if err := a.coord.Close(); err != nil {
			a.logger.Warn(ctx, "previews not released", "error", err)
		}
	}
	a.coord = coord
	a.requestID = id
	printlnFn("Working on request", id)
	return nil
}

// SelectProof loads args[0] and selects it for kind.
func (a *App) SelectProof(ctx context.Context, kind models.ProofKind, args []string) error {
	if a.coord == nil {
		printlnFn("Choose a request first: request <id>")
		return errNoRequest
	}
	if len(args) == 0 {
		printlnFn(fmt.Sprintf("Usage: %s <file>", commandFor(kind)))
		return common.ErrInvalidInput
	}
	return a.selectFile(ctx, kind, args[0])
}

// SelectBoth selects the prescription and the blood bag concurrently.
func (a *App) SelectBoth(ctx context.Context, args []string) error {
	if a.coord == nil {
		printlnFn("Choose a request first: request <id>")
		return errNoRequest
	}
	if len(args) != 2 {
		printlnFn("Usage: select <prescription file> <bag file>")
		return common.ErrInvalidInput
	}

	var g errgroup.Group
	for i, kind := range models.ProofKinds {
		g.Go(func() error { return a.selectFile(ctx, kind, args[i]) })
	}
	return g.Wait()
}

func (a *App) selectFile(ctx context.Context, kind models.ProofKind, path string) error {
	raw, mime, err := ReadProof(path, a.maxInputBytes())
	if err != nil {
		printlnFn(fmt.Sprintf("%s: %v", commandFor(kind), err))
		return err
	}

	asset, err := a.coord.Select(ctx, kind, raw, mime)
	if err != nil {
		printlnFn(fmt.Sprintf("%s: %v", commandFor(kind), err))
		return err
	}

	msg := fmt.Sprintf("%s: %s, %d KB -> %d KB", commandFor(kind), path,
		asset.OriginalSizeBytes/1024, len(asset.CompressedBytes)/1024)
	if p := a.coord.Preview(kind); p != nil {
		msg += ", preview " + p.Location()
	}
	printlnFn(msg)
	return nil
}

// Submit runs the submission and, once committed, waits for approval.
func (a *App) Submit(ctx context.Context) error {
	if a.coord == nil {
		printlnFn("Choose a request first: request <id>")
		return errNoRequest
	}

	rec, err := a.coord.Submit(ctx)
	if err != nil {
		printlnFn("Submit failed:", err)
		if errors.Is(err, common.ErrUploadFailed) || errors.Is(err, common.ErrCommitFailed) {
			printlnFn("Your photos are kept; run 'submit' again to retry.")
		}
		return err
	}

	printlnFn(fmt.Sprintf("Submitted verification %s for request %s", rec.ID, rec.RequestID))
	return a.awaitApproval(ctx, rec.TrackingID)
}

// awaitApproval runs the approval poller until it completes or the user
// interrupts.
func (a *App) awaitApproval(ctx context.Context, trackingID string) error {
	ctx, stop := notifyContext(ctx, os.Interrupt)
	defer stop()

	stageInterval, pollInterval := a.pollIntervals()
	pr := newProgress(a.out, a.tty, approval.DefaultStages)

	p, err := approval.New(trackingID, a.records,
		approval.WithClock(a.clock),
		approval.WithStageInterval(stageInterval),
		approval.WithPollInterval(pollInterval),
		approval.WithLogger(a.logger),
		approval.OnChange(pr.render),
		approval.OnComplete(func(s models.ApprovalPollState) {
			a.logger.Info(ctx, "approval completed", "tracking_id", s.TrackingID)
		}),
	)
	if err != nil {
		return err
	}
	pr.render(p.State())

	if err := p.Start(ctx); err != nil {
		return err
	}

	select {
	case <-p.Done():
	case <-ctx.Done():
	}
	p.Stop()

	pr.finish(p.State())
	return nil
}

// Status prints the review status of the current request.
func (a *App) Status(ctx context.Context) error {
	if a.requestID == "" {
		printlnFn("Choose a request first: request <id>")
		return errNoRequest
	}

	st, err := a.records.GetStatusByTrackingID(ctx, a.requestID)
	if errors.Is(err, common.ErrorNotFound) {
		printlnFn("No verification submitted for", a.requestID)
		return err
	}
	if err != nil {
		printlnFn("Error:", err)
		return err
	}
	printlnFn(fmt.Sprintf("%s: %s", a.requestID, st))
	return nil
}

// Review sets the status of the current request's verification. The note
// comes from args, or is prompted for on reject.
func (a *App) Review(ctx context.Context, status models.VerificationStatus, args []string) error {
	if a.requestID == "" {
		printlnFn("Choose a request first: request <id>")
		return errNoRequest
	}

	note := strings.Join(args, " ")
	if note == "" && status == models.StatusRejected {
		var err error
		if note, err = GetMultiline(a.reader, "Reason for rejection", a.out); err != nil {
			return err
		}
	}

	if err := a.records.SetStatus(ctx, a.requestID, status, note); err != nil {
		printlnFn("Error:", err)
		return err
	}
	printlnFn(fmt.Sprintf("%s marked %s", a.requestID, status))
	return nil
}

// History prints the local submit attempts and the review history.
func (a *App) History(ctx context.Context) error {
	if a.requestID == "" {
		printlnFn("Choose a request first: request <id>")
		return errNoRequest
	}

	attempts, err := a.journal.ListByRequest(ctx, a.requestID)
	if err != nil {
		printlnFn("Error:", err)
		return err
	}
	printlnFn("Attempts:")
	if len(attempts) == 0 {
		printlnFn("  (none)")
	}
	for _, at := range attempts {
		line := fmt.Sprintf("  %s %-11s %s %s", at.CreatedAt.Format("2006-01-02 15:04:05"), at.State, at.PrescriptionPath, at.BloodBagPath)
		if at.Error != "" {
			line += " (" + at.Error + ")"
		}
		printlnFn(line)
	}

	changes, err := a.records.History(ctx, a.requestID)
	if errors.Is(err, common.ErrorNotFound) {
		printlnFn("Review: no verification record")
		return nil
	}
	if err != nil {
		printlnFn("Error:", err)
		return err
	}
	printlnFn("Review:")
	for _, c := range changes {
		line := fmt.Sprintf("  %s %s", c.ChangedAt.Format("2006-01-02 15:04:05"), c.Status)
		if c.Note != "" {
			line += " " + c.Note
		}
		printlnFn(line)
	}
	return nil
}

func commandFor(kind models.ProofKind) string {
	if kind == models.ProofBloodBag {
		return "bag"
	}
	return "prescription"
}
