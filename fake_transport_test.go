package cassandrapool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// fakeTransport is a Transport used to drive pool tests without a real
// Thrift server: every retriable call succeeds with "ok" and is counted.
type fakeTransport struct {
	server ServerAddress
	closed atomic.Bool

	mu    sync.Mutex
	calls int
}

func (t *fakeTransport) GetSlice(ctx context.Context, args any) (any, error)         { return t.do() }
func (t *fakeTransport) GetRangeSlices(ctx context.Context, args any) (any, error)   { return t.do() }
func (t *fakeTransport) GetIndexedSlices(ctx context.Context, args any) (any, error) { return t.do() }
func (t *fakeTransport) BatchMutate(ctx context.Context, args any) (any, error)      { return t.do() }
func (t *fakeTransport) Remove(ctx context.Context, args any) (any, error)           { return t.do() }
func (t *fakeTransport) Truncate(ctx context.Context, args any) (any, error)         { return t.do() }

func (t *fakeTransport) DescribeKeyspace(ctx context.Context, keyspace string) (*KsDef, error) {
	return &KsDef{Name: keyspace, CfDefs: []*CfDef{{Name: "cf1", ColumnMetadata: []ColumnDef{{Name: "col1"}}}}}, nil
}

func (t *fakeTransport) Close() error {
	t.closed.Store(true)
	return nil
}

func (t *fakeTransport) do() (any, error) {
	t.mu.Lock()
	t.calls++
	t.mu.Unlock()
	return "ok", nil
}

var errFakeDial = errors.New("fake: dial refused")

// fakeCluster builds a TransportOpener that records every dial: a host marked
// down with markDown refuses dials with errFakeDial, and any other host dials
// successfully with a fakeTransport that always succeeds.
type fakeCluster struct {
	mu        sync.Mutex
	dialed    []ServerAddress
	unhealthy map[string]bool
}

func newFakeCluster() *fakeCluster {
	return &fakeCluster{unhealthy: make(map[string]bool)}
}

func (c *fakeCluster) opener() TransportOpener {
	return func(ctx context.Context, server ServerAddress) (Transport, error) {
		c.mu.Lock()
		c.dialed = append(c.dialed, server)
		down := c.unhealthy[server.Host]
		c.mu.Unlock()
		if down {
			return nil, errFakeDial
		}
		return &fakeTransport{server: server}, nil
	}
}

func (c *fakeCluster) markDown(host string) {
	c.mu.Lock()
	c.unhealthy[host] = true
	c.mu.Unlock()
}

func (c *fakeCluster) markUp(host string) {
	c.mu.Lock()
	delete(c.unhealthy, host)
	c.mu.Unlock()
}

// timedOutTransport always fails its first N retriable calls with a
// transient error, then succeeds; used to drive failover/retry-ceiling
// scenarios.
type timedOutTransport struct {
	server    ServerAddress
	failTimes int32
	calls     atomic.Int32
	closed    atomic.Bool
}

func (t *timedOutTransport) attempt() (any, error) {
	n := t.calls.Add(1)
	if n <= t.failTimes {
		return nil, MarkTransient(errors.New("timed out"))
	}
	return "ok", nil
}

func (t *timedOutTransport) GetSlice(ctx context.Context, args any) (any, error)         { return t.attempt() }
func (t *timedOutTransport) GetRangeSlices(ctx context.Context, args any) (any, error)   { return t.attempt() }
func (t *timedOutTransport) GetIndexedSlices(ctx context.Context, args any) (any, error) { return t.attempt() }
func (t *timedOutTransport) BatchMutate(ctx context.Context, args any) (any, error)      { return t.attempt() }
func (t *timedOutTransport) Remove(ctx context.Context, args any) (any, error)           { return t.attempt() }
func (t *timedOutTransport) Truncate(ctx context.Context, args any) (any, error)         { return t.attempt() }

func (t *timedOutTransport) DescribeKeyspace(ctx context.Context, keyspace string) (*KsDef, error) {
	return nil, nil
}

func (t *timedOutTransport) Close() error {
	t.closed.Store(true)
	return nil
}

// alwaysFailOpener never successfully dials, used to exercise
// AllServersUnavailable.
func alwaysFailOpener(ctx context.Context, server ServerAddress) (Transport, error) {
	return nil, errFakeDial
}
