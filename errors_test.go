package cassandrapool

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMarkTransientAndIsTransient(t *testing.T) {
	cause := errors.New("connection reset")
	wrapped := MarkTransient(cause)

	assert.True(t, isTransient(wrapped))
	assert.False(t, isTransient(cause), "an unmarked error must not be treated as transient")
	assert.ErrorIs(t, wrapped, cause)
}

func TestMarkTransientNil(t *testing.T) {
	assert.Nil(t, MarkTransient(nil))
}

func TestAllServersUnavailableErrorUnwraps(t *testing.T) {
	last := errors.New("connection refused")
	err := &AllServersUnavailableError{Attempts: 6, LastErr: last}

	assert.ErrorIs(t, err, last)
	assert.Contains(t, err.Error(), "6 attempts")
}

func TestNoConnectionAvailableErrorMessage(t *testing.T) {
	err := &NoConnectionAvailableError{Size: 5, Overflow: 10, Timeout: 30 * time.Second}
	assert.Contains(t, err.Error(), "size 5")
	assert.Contains(t, err.Error(), "overflow 10")
}

func TestMaximumRetryErrorMessage(t *testing.T) {
	err := &MaximumRetryError{Retries: 3}
	assert.Contains(t, err.Error(), "3")
}

func TestInvalidRequestErrorMessage(t *testing.T) {
	err := &InvalidRequestError{Reason: "double checkin"}
	assert.Contains(t, err.Error(), "double checkin")
}
