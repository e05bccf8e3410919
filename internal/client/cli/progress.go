package cli

import (
	"fmt"
	"io"
	"sync"

	"github.com/dmitrijs2005/bloodlink/internal/models"
)

// progress renders approval states. On a terminal it redraws one line,
// otherwise it prints one line per state.
type progress struct {
	mu     sync.Mutex
	w      io.Writer
	tty    bool
	stages []string
	dirty  bool
}

func newProgress(w io.Writer, tty bool, stages []string) *progress {
	return &progress{w: w, tty: tty, stages: stages}
}

func (p *progress) render(s models.ApprovalPollState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	line := describe(s, p.stages)
	if p.tty {
		fmt.Fprintf(p.w, "\r\033[K%s", line)
		p.dirty = true
		return
	}
	fmt.Fprintln(p.w, line)
}

// finish ends the redrawn line and prints the final state.
func (p *progress) finish(s models.ApprovalPollState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dirty {
		fmt.Fprintln(p.w)
		p.dirty = false
	}
	fmt.Fprintln(p.w, describe(s, p.stages))
}

func describe(s models.ApprovalPollState, stages []string) string {
	switch s.Phase {
	case models.PhaseAdvancing:
		label := ""
		if s.StageIndex >= 0 && s.StageIndex < len(stages) {
			label = stages[s.StageIndex]
		}
		return fmt.Sprintf("[%d/%d] %s...", s.StageIndex+1, len(stages), label)
	case models.PhaseAwaitingTerminal:
		status := s.LastObservedStatus
		if status == "" {
			status = "unknown"
		}
		return fmt.Sprintf("Waiting for approval of %s (status: %s, Ctrl-C to stop waiting)", s.TrackingID, status)
	case models.PhaseCompleted:
		return fmt.Sprintf("Verification %s approved.", s.TrackingID)
	case models.PhaseCancelled:
		return fmt.Sprintf("Stopped waiting for %s; use 'status' to check later.", s.TrackingID)
	}
	return string(s.Phase)
}
