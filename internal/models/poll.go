package models

// PollPhase is the approval poller's lifecycle phase.
type PollPhase string

const (
	PhaseAdvancing        PollPhase = "ADVANCING"
	PhaseAwaitingTerminal PollPhase = "AWAITING_TERMINAL"
	PhaseCompleted        PollPhase = "COMPLETED"
	PhaseCancelled        PollPhase = "CANCELLED"
)

// Final reports whether no more transitions can happen.
func (p PollPhase) Final() bool {
	return p == PhaseCompleted || p == PhaseCancelled
}

// ApprovalPollState is a snapshot of the approval poller.
type ApprovalPollState struct {
	TrackingID         string
	StageIndex         int
	Phase              PollPhase
	LastObservedStatus VerificationStatus
}
