package models

// SubmissionState is the coordinator's position in the submit pipeline.
type SubmissionState string

const (
	SubmissionDraft       SubmissionState = "DRAFT"
	SubmissionCompressing SubmissionState = "COMPRESSING"
	SubmissionUploading   SubmissionState = "UPLOADING"
	SubmissionCommitting  SubmissionState = "COMMITTING"
	SubmissionCommitted   SubmissionState = "COMMITTED"
	SubmissionRolledBack  SubmissionState = "ROLLED_BACK"
	SubmissionFailed      SubmissionState = "FAILED"
)

// Retryable reports whether Submit may be called from s.
func (s SubmissionState) Retryable() bool {
	return s == SubmissionCompressing || s == SubmissionFailed || s == SubmissionRolledBack
}

// InFlight reports whether network work for an attempt is running.
func (s SubmissionState) InFlight() bool {
	return s == SubmissionUploading || s == SubmissionCommitting
}
