package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinels_MatchThroughDoubleWrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("%w: %w", ErrUploadFailed, cause)

	assert.ErrorIs(t, err, ErrUploadFailed)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrCommitFailed)
}

func TestSentinels_AreDistinct(t *testing.T) {
	all := []error{
		ErrorNotFound, ErrorInternal,
		ErrInvalidInput, ErrCompressionFailed,
		ErrUploadFailed, ErrCommitFailed,
		ErrDeleteFailed, ErrPollTransport,
		ErrIncompleteSubmission, ErrSubmissionInFlight, ErrAlreadyCommitted,
	}
	for i := range all {
		for j := range all {
			if i != j && errors.Is(all[i], all[j]) {
				t.Fatalf("%v must not match %v", all[i], all[j])
			}
		}
	}
}
