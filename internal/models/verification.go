package models

import "time"

// VerificationStatus is the review status held by the record store.
type VerificationStatus string

const (
	StatusPending  VerificationStatus = "PENDING"
	StatusApproved VerificationStatus = "APPROVED"
	StatusRejected VerificationStatus = "REJECTED"
)

// Terminal reports whether the approval poll should stop on s.
func (s VerificationStatus) Terminal() bool {
	return s == StatusApproved
}

// Valid reports whether s is one of the known statuses.
func (s VerificationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// VerificationRecord is a committed donation proof. Both URLs point at
// objects that existed when the record was created.
type VerificationRecord struct {
	ID              string             `db:"id"`
	RequestID       string             `db:"request_id"`
	TrackingID      string             `db:"-"`
	PrescriptionURL string             `db:"prescription_url"`
	BloodBagURL     string             `db:"blood_bag_url"`
	Status          VerificationStatus `db:"status"`
	CreatedAt       time.Time          `db:"created_at"`
	UpdatedAt       time.Time          `db:"updated_at"`
}

// StatusChange is one row of a record's review history.
type StatusChange struct {
	VerificationID string
	Status         VerificationStatus
	Note           string
	ChangedAt      time.Time
}
