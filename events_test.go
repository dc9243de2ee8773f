package cassandrapool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// partialListener implements only ConnectionFailedListener and
// PoolAtMaxListener, mirroring the capability-based registration the bus
// relies on instead of a single monolithic interface.
type partialListener struct {
	failed []ConnectionFailedEvent
	atMax  []PoolAtMaxEvent
}

func (l *partialListener) ConnectionFailed(ev ConnectionFailedEvent) {
	l.failed = append(l.failed, ev)
}

func (l *partialListener) PoolAtMax(ev PoolAtMaxEvent) {
	l.atMax = append(l.atMax, ev)
}

func TestEventBusFanOutIsCapabilityBased(t *testing.T) {
	bus := newEventBus("QueuePool", "test-pool")
	listener := &partialListener{}
	bus.addListener(listener)

	assert.Len(t, bus.onFailed, 1)
	assert.Len(t, bus.onPoolMax, 1)
	assert.Empty(t, bus.onCreated, "listener implements no ConnectionCreatedListener method, so it must not be registered there")

	bus.notifyFailed(nil, ServerAddress{Host: "a", Port: "1"}, nil)
	bus.notifyPoolAtMax(10)
	bus.notifyConnectionCreated(nil, "should be a no-op", nil)

	assert.Len(t, listener.failed, 1)
	assert.Len(t, listener.atMax, 1)
}

func TestEventBusRecycledGatedBehindSubscribers(t *testing.T) {
	bus := newEventBus("QueuePool", "test-pool")
	// No listener registered for ConnectionRecycled; this must not panic
	// and must not be observable, fixing the unconditional-fire quirk.
	assert.NotPanics(t, func() {
		bus.notifyRecycled(nil, nil)
	})
	assert.Empty(t, bus.onRecycled)
}

func TestBasePoolListenerSatisfiesFullInterface(t *testing.T) {
	var _ PoolListener = BasePoolListener{}
}

func TestAddListenerNilIsNoOp(t *testing.T) {
	bus := newEventBus("QueuePool", "test-pool")
	bus.addListener(nil)
	assert.Empty(t, bus.roster)
}
