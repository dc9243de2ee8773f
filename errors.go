package cassandrapool

import (
	"errors"
	"fmt"
	"time"
)

// TransientError is the marker interface a transport's error values may
// implement to tell the retry interceptor that the failure is retriable
// (Thrift's TIMED_OUT transport exception, Cassandra's UnavailableException)
// rather than fatal. Errors that don't implement it are treated as fatal and
// propagated unchanged, per spec.
type TransientError interface {
	error
	IsTransient() bool
}

// transientError is the default TransientError implementation, wrapping an
// underlying cause.
type transientError struct {
	cause error
}

// MarkTransient wraps err so the retry interceptor treats it as retriable.
// Transport adapters that can't implement TransientError directly on their
// own error types (e.g. because they come from a third-party package) can
// call this instead.
func MarkTransient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{cause: err}
}

func (e *transientError) Error() string   { return e.cause.Error() }
func (e *transientError) Unwrap() error   { return e.cause }
func (e *transientError) IsTransient() bool { return true }

// isTransient reports whether err should drive the retry interceptor's
// failover path rather than propagate to the caller.
func isTransient(err error) bool {
	var te TransientError
	if errors.As(err, &te) {
		return te.IsTransient()
	}
	return false
}

// AllServersUnavailableError is returned when _create_connection exhausted
// 2*len(server_list) attempts without successfully opening a transport to
// any server.
type AllServersUnavailableError struct {
	Attempts int
	LastErr  error
}

func (e *AllServersUnavailableError) Error() string {
	if e.LastErr != nil {
		return fmt.Sprintf("cassandrapool: all servers unavailable after %d attempts: %v", e.Attempts, e.LastErr)
	}
	return fmt.Sprintf("cassandrapool: all servers unavailable after %d attempts", e.Attempts)
}

func (e *AllServersUnavailableError) Unwrap() error { return e.LastErr }

// NoConnectionAvailableError is returned when a checkout waited PoolTimeout
// with overflow exhausted and no idle wrapper became available.
type NoConnectionAvailableError struct {
	Size     int
	Overflow int
	Timeout  time.Duration
}

func (e *NoConnectionAvailableError) Error() string {
	return fmt.Sprintf(
		"cassandrapool: pool limit of size %d overflow %d reached, connection timed out, pool_timeout %s",
		e.Size, e.Overflow, e.Timeout,
	)
}

// MaximumRetryError is returned when a single RPC's consecutive failover
// count exceeded max_retries.
type MaximumRetryError struct {
	Retries int
}

func (e *MaximumRetryError) Error() string {
	return fmt.Sprintf("cassandrapool: retried %d times", e.Retries)
}

// InvalidRequestError signals programmer error: a double checkin, a double
// checkout of an in-queue wrapper, a double dispose, or returning a wrapper
// to the wrong pool.
type InvalidRequestError struct {
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return "cassandrapool: invalid request: " + e.Reason
}
