package cassandrapool

import (
	"context"
	"sync"
	"time"
)

type wrapperState int32

const (
	stateInQueue wrapperState = iota
	stateCheckedOut
	stateDisposed
)

func (s wrapperState) String() string {
	switch s {
	case stateInQueue:
		return "in_queue"
	case stateCheckedOut:
		return "checked_out"
	case stateDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// connState is the part of a ConnectionWrapper that gets swapped wholesale
// during failover ("splicing", spec.md §4.2/§9): the transport handle, the
// server it's bound to, its operation counter, and its creation time.
type connState struct {
	transport Transport
	server    ServerAddress
	opCount   uint64
	startTime time.Time
}

// ConnectionWrapper is the pool-owned handle around one live Transport. It
// carries retry and recycling state and transparently fails over to a
// different server on transient errors while preserving the caller's
// reference to it (spec.md §4.2, "Rationale for splicing").
//
// A ConnectionWrapper is not safe for concurrent use by multiple
// goroutines; exactly one goroutine should hold it checked out at a time
// (spec.md §5: combining use_threadlocal=false with retries requires the
// caller to provide its own synchronization).
type ConnectionWrapper struct {
	pool *QueuePool

	mu         sync.Mutex
	state      wrapperState
	retryCount int
	maxRetries int
	cur        *connState
	info       map[string]any
}

func newConnectionWrapper(pool *QueuePool, maxRetries int, server ServerAddress, transport Transport) *ConnectionWrapper {
	return &ConnectionWrapper{
		pool:       pool,
		state:      stateCheckedOut,
		maxRetries: maxRetries,
		info:       make(map[string]any),
		cur: &connState{
			transport: transport,
			server:    server,
			startTime: time.Now(),
		},
	}
}

// Info returns the wrapper's opaque caller scratch map, matching pycassa's
// ConnectionWrapper.info.
func (w *ConnectionWrapper) Info() map[string]any {
	return w.info
}

// Server returns the address this wrapper is currently bound to. It changes
// across a failover.
func (w *ConnectionWrapper) Server() ServerAddress {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cur.server
}

// OpCount returns the number of retriable RPCs attempted on the wrapper's
// current underlying transport since it was created or last spliced.
func (w *ConnectionWrapper) OpCount() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cur.opCount
}

// StartTime returns the creation instant of the wrapper's current
// transport.
func (w *ConnectionWrapper) StartTime() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cur.startTime
}

// RetryCount returns the number of consecutive failovers performed since
// the last successful checkin reset.
func (w *ConnectionWrapper) RetryCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.retryCount
}

// resetRetryCount clears the consecutive-failover counter. Called on every
// successful checkin, matching pycassa's behavior of only counting retries
// within a single checkout.
func (w *ConnectionWrapper) resetRetryCount() {
	w.mu.Lock()
	w.retryCount = 0
	w.mu.Unlock()
}

// checkin transitions CHECKED_OUT -> IN_QUEUE.
func (w *ConnectionWrapper) checkin() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != stateCheckedOut {
		return &InvalidRequestError{Reason: "a connection has been returned to the connection pool twice"}
	}
	w.state = stateInQueue
	return nil
}

// checkout transitions IN_QUEUE -> CHECKED_OUT.
func (w *ConnectionWrapper) checkout() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != stateInQueue {
		return &InvalidRequestError{Reason: "a connection has been checked out twice"}
	}
	w.state = stateCheckedOut
	return nil
}

func (w *ConnectionWrapper) inQueue() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state == stateInQueue
}

// dispose transitions to DISPOSED, closes the underlying transport exactly
// once, and notifies listeners.
func (w *ConnectionWrapper) dispose(reason string) error {
	w.mu.Lock()
	if w.state == stateDisposed {
		w.mu.Unlock()
		return &InvalidRequestError{Reason: "a connection has been disposed twice"}
	}
	w.state = stateDisposed
	transport := w.cur.transport
	w.mu.Unlock()

	err := transport.Close()
	w.pool.bus.notifyDisposed(w, reason, err)
	return nil
}

// ReturnToPool returns this wrapper to its owning pool; equivalent to
// calling Pool.ReturnConn(wrapper).
func (w *ConnectionWrapper) ReturnToPool() error {
	return w.pool.ReturnConn(w)
}

// Close is an alias for ReturnToPool so callers can `defer conn.Close()`,
// matching the teacher's ClientConn.Close naming.
func (w *ConnectionWrapper) Close() error {
	return w.ReturnToPool()
}

// splice adopts replacement's transport state wholesale, retargeting this
// wrapper to (possibly) a different server while preserving the caller's
// reference to w. This is pycassa's ConnectionWrapper._replace.
func (w *ConnectionWrapper) splice(replacement *ConnectionWrapper) {
	replacement.mu.Lock()
	cur := replacement.cur
	replacement.mu.Unlock()

	w.mu.Lock()
	w.cur = cur
	w.state = stateCheckedOut
	w.mu.Unlock()
}

// invoke is the single generic retry interceptor backing every retriable
// RPC (spec.md §9, "factor this as a single generic interceptor"). call is
// handed the wrapper's current live Transport and should invoke exactly one
// retriable method on it.
func (w *ConnectionWrapper) invoke(ctx context.Context, call func(Transport) (any, error)) (any, error) {
	for {
		w.mu.Lock()
		cur := w.cur
		w.mu.Unlock()
		cur.opCount++

		result, err := call(cur.transport)
		if err == nil {
			return result, nil
		}
		if !isTransient(err) {
			return nil, err
		}

		w.pool.bus.notifyFailed(err, cur.server, w)

		w.mu.Lock()
		w.retryCount++
		retryCount := w.retryCount
		maxRetries := w.maxRetries
		w.mu.Unlock()

		if maxRetries >= 0 && retryCount > maxRetries {
			return nil, &MaximumRetryError{Retries: retryCount}
		}

		_ = cur.transport.Close()

		if w.pool.threadLocalEnabled {
			w.pool.clearThreadLocal()
		}

		w.pool.tryReplaceWrapper(ctx)

		replacement, getErr := w.pool.Get(ctx)
		if getErr != nil {
			return nil, getErr
		}
		w.splice(replacement)
		if w.pool.threadLocalEnabled {
			// The wrapper the caller actually holds is w, not the
			// intermediate replacement Get() just cached; repoint the
			// cache at w so the next checkout on this goroutine returns
			// the object the caller is already using.
			w.pool.setThreadLocal(w)
		}
	}
}

func (w *ConnectionWrapper) GetSlice(ctx context.Context, args any) (any, error) {
	return w.invoke(ctx, func(t Transport) (any, error) { return t.GetSlice(ctx, args) })
}

func (w *ConnectionWrapper) GetRangeSlices(ctx context.Context, args any) (any, error) {
	return w.invoke(ctx, func(t Transport) (any, error) { return t.GetRangeSlices(ctx, args) })
}

func (w *ConnectionWrapper) GetIndexedSlices(ctx context.Context, args any) (any, error) {
	return w.invoke(ctx, func(t Transport) (any, error) { return t.GetIndexedSlices(ctx, args) })
}

func (w *ConnectionWrapper) BatchMutate(ctx context.Context, args any) (any, error) {
	return w.invoke(ctx, func(t Transport) (any, error) { return t.BatchMutate(ctx, args) })
}

func (w *ConnectionWrapper) Remove(ctx context.Context, args any) (any, error) {
	return w.invoke(ctx, func(t Transport) (any, error) { return t.Remove(ctx, args) })
}

func (w *ConnectionWrapper) Truncate(ctx context.Context, args any) (any, error) {
	return w.invoke(ctx, func(t Transport) (any, error) { return t.Truncate(ctx, args) })
}

// DescribeKeyspace is non-retriable introspection (spec.md §4.2): it is
// called directly against the current transport, with no failover on
// transient error.
func (w *ConnectionWrapper) DescribeKeyspace(ctx context.Context, keyspace string) (*KsDef, error) {
	w.mu.Lock()
	cur := w.cur
	w.mu.Unlock()
	return cur.transport.DescribeKeyspace(ctx, keyspace)
}

// GetKeyspaceDescription describes keyspace (defaulting to the pool's
// configured keyspace) and indexes the result's column families by name,
// optionally also indexing each column family's column metadata by column
// name. Ported from pycassa's get_keyspace_description convenience method
// (see SPEC_FULL.md §4).
func (w *ConnectionWrapper) GetKeyspaceDescription(ctx context.Context, keyspace string, useMapForColumnMetadata bool) (map[string]*CfDefView, error) {
	if keyspace == "" {
		keyspace = w.pool.keyspace
	}

	ksDef, err := w.DescribeKeyspace(ctx, keyspace)
	if err != nil {
		return nil, err
	}

	views := make(map[string]*CfDefView, len(ksDef.CfDefs))
	for _, cf := range ksDef.CfDefs {
		view := &CfDefView{Name: cf.Name, ColumnMetadataList: cf.ColumnMetadata}
		if useMapForColumnMetadata {
			byName := make(map[string]ColumnDef, len(cf.ColumnMetadata))
			for _, col := range cf.ColumnMetadata {
				byName[col.Name] = col
			}
			view.ColumnMetadataByName = byName
		}
		views[cf.Name] = view
	}
	return views, nil
}
