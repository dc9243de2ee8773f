package cassandrapool

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresOpener(t *testing.T) {
	_, err := New(WithServerList("a:1"))
	assert.Error(t, err)
}

func TestNewAppliesDefaults(t *testing.T) {
	pool, err := New(
		WithServerList("a:1", "b:1"),
		WithOpener(newFakeCluster().opener()),
	)
	require.NoError(t, err)

	assert.Equal(t, defaultPoolSize, pool.Size())
	assert.Equal(t, defaultMaxOverflow, pool.maxOverflow)
	assert.Equal(t, defaultPoolTimeout, pool.poolTimeout)
	assert.Equal(t, defaultRecycle, pool.recycle)
	assert.Equal(t, defaultMaxRetries, pool.maxRetries)
	assert.True(t, pool.prefill)
	assert.True(t, pool.threadLocalEnabled)
	assert.True(t, pool.framedTransport)

	// prefill=true (the default) means the pool eagerly fills to pool_size.
	assert.Equal(t, defaultPoolSize, pool.CheckedIn())
	assert.Equal(t, 0, pool.Overflow())
}

func TestWithOpenerRejectsNil(t *testing.T) {
	_, err := New(WithServerList("a:1"), WithOpener(nil))
	assert.Error(t, err)
}

func TestWithPoolSizeRejectsNegative(t *testing.T) {
	_, err := New(WithServerList("a:1"), WithOpener(newFakeCluster().opener()), WithPoolSize(-1))
	assert.Error(t, err)
}

func TestNewWithoutPrefillStartsWithNegativeOverflow(t *testing.T) {
	pool, err := New(
		WithServerList("a:1"),
		WithOpener(newFakeCluster().opener()),
		WithPoolSize(4),
		WithPrefill(false),
	)
	require.NoError(t, err)

	assert.Equal(t, -4, pool.Overflow())
	assert.Equal(t, 0, pool.CheckedIn())
}

func TestNewPrefillFailurePropagatesDialError(t *testing.T) {
	_, err := New(
		WithServerList("a:1"),
		WithOpener(alwaysFailOpener),
		WithPoolSize(2),
		WithPrefill(true),
	)
	require.Error(t, err)
	var unavailable *AllServersUnavailableError
	assert.ErrorAs(t, err, &unavailable)
}

func TestNewAutoInstallsDefaultLogger(t *testing.T) {
	pool, err := New(
		WithServerList("a:1"),
		WithOpener(newFakeCluster().opener()),
	)
	require.NoError(t, err)

	found := false
	for _, l := range pool.bus.roster {
		if _, ok := l.(*ZapLogListener); ok {
			found = true
		}
	}
	assert.True(t, found, "New must auto-install a ZapLogListener by default")
}

func TestWithoutDefaultLoggerOptsOut(t *testing.T) {
	pool, err := New(
		WithServerList("a:1"),
		WithOpener(newFakeCluster().opener()),
		WithoutDefaultLogger(),
	)
	require.NoError(t, err)

	for _, l := range pool.bus.roster {
		_, ok := l.(*ZapLogListener)
		assert.False(t, ok, "WithoutDefaultLogger must prevent the default ZapLogListener")
	}
}

func TestConfiguredTimeoutsAreHonored(t *testing.T) {
	pool, err := New(
		WithServerList("a:1"),
		WithOpener(newFakeCluster().opener()),
		WithPoolTimeout(25*time.Millisecond),
		WithPoolSize(1),
		WithMaxOverflow(0),
		WithPrefill(true),
		WithThreadLocal(false),
	)
	require.NoError(t, err)

	_, err = pool.Get(context.Background())
	require.NoError(t, err) // consumes the single prefilled connection

	start := time.Now()
	_, err = pool.Get(context.Background())
	elapsed := time.Since(start)

	var noConn *NoConnectionAvailableError
	assert.ErrorAs(t, err, &noConn)
	assert.GreaterOrEqual(t, elapsed, 20*time.Millisecond)
}
