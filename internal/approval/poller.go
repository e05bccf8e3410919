// Package approval drives the waiting experience after a submission: a few
// timed "checking" stages, then periodic polling of the record store until
// the verification is approved or the caller tears the poller down.
package approval

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/bloodlink/internal/common"
	"github.com/dmitrijs2005/bloodlink/internal/logging"
	"github.com/dmitrijs2005/bloodlink/internal/models"
	"github.com/jonboulle/clockwork"
)

const (
	// DefaultStageInterval is the time between stage advances.
	DefaultStageInterval = 2200 * time.Millisecond
	// DefaultPollInterval is the time between status requests.
	DefaultPollInterval = 3 * time.Second
	// DefaultPollTimeout bounds a single status request.
	DefaultPollTimeout = 10 * time.Second
)

// DefaultStages are the labels shown while the submission is "being checked".
var DefaultStages = []string{
	"Checking prescription",
	"Checking blood bag tag",
	"Matching request",
	"Waiting for review",
}

var (
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("poller already started")
	// ErrStopped is returned by Start after Stop.
	ErrStopped = errors.New("poller stopped")
)

// StatusSource reports the review status for a tracking id.
// *records.Store satisfies it.
type StatusSource interface {
	GetStatusByTrackingID(ctx context.Context, trackingID string) (models.VerificationStatus, error)
}

// Option customizes a Poller.
type Option func(*Poller)

// WithClock sets the clock that drives both tickers.
func WithClock(c clockwork.Clock) Option {
	return func(p *Poller) { p.clock = c }
}

// WithStages replaces the stage labels. At least one label is required;
// an empty list keeps the defaults.
func WithStages(labels ...string) Option {
	return func(p *Poller) {
		if len(labels) > 0 {
			p.stages = append([]string(nil), labels...)
		}
	}
}

// WithStageInterval sets the time between stage advances.
func WithStageInterval(d time.Duration) Option {
	return func(p *Poller) { p.stageInterval = d }
}

// WithPollInterval sets the time between status requests.
func WithPollInterval(d time.Duration) Option {
	return func(p *Poller) { p.pollInterval = d }
}

// WithPollTimeout bounds each status request. Zero disables the bound.
func WithPollTimeout(d time.Duration) Option {
	return func(p *Poller) { p.pollTimeout = d }
}

// OnChange is called from the poller goroutine after every transition.
// It must not call Stop.
func OnChange(fn func(models.ApprovalPollState)) Option {
	return func(p *Poller) { p.onChange = fn }
}

// OnComplete is called once, from the poller goroutine, when the status
// becomes terminal. It must not call Stop.
func OnComplete(fn func(models.ApprovalPollState)) Option {
	return func(p *Poller) { p.onComplete = fn }
}

// WithLogger sets the logger. The tracking id is attached to every entry.
func WithLogger(l logging.Logger) Option {
	return func(p *Poller) { p.logger = l }
}

// Poller is the approval polling state machine. One goroutine owns both
// tickers; at most one of them exists at any time.
type Poller struct {
	trackingID    string
	source        StatusSource
	clock         clockwork.Clock
	stages        []string
	stageInterval time.Duration
	pollInterval  time.Duration
	pollTimeout   time.Duration
	onChange      func(models.ApprovalPollState)
	onComplete    func(models.ApprovalPollState)
	logger        logging.Logger

	mu      sync.Mutex
	state   models.ApprovalPollState
	started bool
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}

	completeOnce sync.Once
}

// New returns a Poller in ADVANCING at stage 0. Nothing runs until Start.
func New(trackingID string, source StatusSource, opts ...Option) (*Poller, error) {
	if trackingID == "" || source == nil {
		return nil, fmt.Errorf("%w: tracking id and status source are required", common.ErrInvalidInput)
	}

	p := &Poller{
		trackingID:    trackingID,
		source:        source,
		clock:         clockwork.NewRealClock(),
		stages:        append([]string(nil), DefaultStages...),
		stageInterval: DefaultStageInterval,
		pollInterval:  DefaultPollInterval,
		pollTimeout:   DefaultPollTimeout,
		logger:        logging.NewDiscardLogger(),
		done:          make(chan struct{}),
		state: models.ApprovalPollState{
			TrackingID: trackingID,
			Phase:      models.PhaseAdvancing,
		},
	}
	for _, o := range opts {
		o(p)
	}
	if p.stageInterval <= 0 || p.pollInterval <= 0 {
		return nil, fmt.Errorf("%w: intervals must be positive", common.ErrInvalidInput)
	}
	p.logger = p.logger.With("tracking_id", trackingID)
	return p, nil
}

// Stages returns the stage labels.
func (p *Poller) Stages() []string {
	return append([]string(nil), p.stages...)
}

// State returns a snapshot of the current state.
func (p *Poller) State() models.ApprovalPollState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Done is closed when the poller goroutine has exited, after completion or
// cancellation.
func (p *Poller) Done() <-chan struct{} {
	return p.done
}

// Start launches the poller goroutine. Cancelling ctx has the same effect
// as Stop, except that it does not wait.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case p.stopped:
		return ErrStopped
	case p.started:
		return ErrAlreadyStarted
	}
	p.started = true

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	ticker := p.clock.NewTicker(p.stageInterval)

	go p.run(ctx, ticker)
	return nil
}

// Stop cancels the poller, aborting an in-flight status request, and waits
// for its goroutine to exit. No callback runs after Stop returns. The phase
// becomes CANCELLED unless the poller already completed. Stop is idempotent.
func (p *Poller) Stop() {
	p.mu.Lock()
	first := !p.stopped
	p.stopped = true
	started := p.started
	cancel := p.cancel
	if !started && first {
		p.state.Phase = models.PhaseCancelled
		close(p.done)
	}
	p.mu.Unlock()

	if !started {
		return
	}
	cancel()
	<-p.done
}

func (p *Poller) run(ctx context.Context, ticker clockwork.Ticker) {
	defer close(p.done)
	defer func() {
		ticker.Stop()
		p.mu.Lock()
		if p.state.Phase != models.PhaseCompleted {
			p.state.Phase = models.PhaseCancelled
		}
		p.mu.Unlock()
	}()

	p.logger.Debug(ctx, "approval stages started", "stages", len(p.stages))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
		}

		snap, awaiting := p.advance()
		if awaiting {
			ticker.Stop()
			ticker = p.clock.NewTicker(p.pollInterval)
		}
		p.emit(ctx, snap)
		if awaiting {
			break
		}
	}

	p.logger.Debug(ctx, "awaiting terminal status")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
		}

		if p.poll(ctx) {
			return
		}
	}
}

// advance handles one stage tick. The tick that arrives on the last stage
// switches to AWAITING_TERMINAL.
func (p *Poller) advance() (models.ApprovalPollState, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state.StageIndex < len(p.stages)-1 {
		p.state.StageIndex++
		return p.state, false
	}
	p.state.Phase = models.PhaseAwaitingTerminal
	return p.state, true
}

// poll performs one status request and reports whether polling is over.
func (p *Poller) poll(ctx context.Context) bool {
	reqCtx, cancel := ctx, context.CancelFunc(func() {})
	if p.pollTimeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, p.pollTimeout)
	}
	status, err := p.source.GetStatusByTrackingID(reqCtx, p.trackingID)
	cancel()

	if ctx.Err() != nil {
		return true
	}
	if err != nil {
		err = fmt.Errorf("%w: %w", common.ErrPollTransport, err)
		p.logger.Warn(ctx, "status poll failed", "error", err)
		return false
	}

	p.mu.Lock()
	changed := p.state.LastObservedStatus != status
	p.state.LastObservedStatus = status
	terminal := status.Terminal()
	if terminal {
		p.state.Phase = models.PhaseCompleted
	}
	snap := p.state
	p.mu.Unlock()

	if changed || terminal {
		p.emit(ctx, snap)
	}
	if terminal {
		p.logger.Info(ctx, "verification approved")
		p.completeOnce.Do(func() {
			if p.onComplete != nil {
				p.onComplete(snap)
			}
		})
	}
	return terminal
}

func (p *Poller) emit(ctx context.Context, s models.ApprovalPollState) {
	p.logger.Debug(ctx, "approval state", "phase", s.Phase, "stage", s.StageIndex, "status", s.LastObservedStatus)
	if p.onChange != nil {
		p.onChange(s)
	}
}
