package models

import "time"

// Attempt is a journal row describing how one submit attempt ended.
type Attempt struct {
	ID               string
	RequestID        string
	State            SubmissionState
	PrescriptionPath string
	BloodBagPath     string
	RecordID         string
	Error            string
	CreatedAt        time.Time
}
