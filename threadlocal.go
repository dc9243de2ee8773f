package cassandrapool

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
	"weak"
)

// goroutineID returns the calling goroutine's runtime-assigned id, parsed
// out of runtime.Stack's header line ("goroutine 123 [running]: ..."). Go
// has no public goroutine-local-storage API; this is the standard
// workaround goroutine-local-storage shims across the ecosystem use, and is
// the closest available analogue to pycassa's threading.local() (spec.md
// §9, "Weak thread-local cache").
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := buf[:n]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i >= 0 {
		b = b[:i]
	}
	id, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		// Unreachable under the standard runtime's stack header format;
		// degrade to "every goroutine shares slot 0" rather than panic.
		return 0
	}
	return id
}

// threadLocalCache maps goroutine id -> weak reference to the wrapper that
// goroutine currently has checked out, approximating pycassa's
// threading.local() + weakref.ref(conn) (spec.md §5: "the pool holds only a
// weak reference; if the thread drops its strong reference without
// returning it, the cached slot decays to nothing rather than leaking").
// weak.Pointer (added in the standard library's weak package) gives us a
// real weak reference here instead of a hand-rolled approximation.
type threadLocalCache struct {
	mu    sync.Mutex
	slots map[uint64]weak.Pointer[ConnectionWrapper]
}

func newThreadLocalCache() *threadLocalCache {
	return &threadLocalCache{slots: make(map[uint64]weak.Pointer[ConnectionWrapper])}
}

// get returns the calling goroutine's cached wrapper, or nil if it has none
// or its weak reference has decayed (the goroutine dropped its last strong
// reference without returning the wrapper).
func (c *threadLocalCache) get() *ConnectionWrapper {
	gid := goroutineID()
	c.mu.Lock()
	wp, ok := c.slots[gid]
	c.mu.Unlock()
	if !ok {
		return nil
	}
	return wp.Value()
}

// set stores a weak reference to conn for the calling goroutine.
func (c *threadLocalCache) set(conn *ConnectionWrapper) {
	gid := goroutineID()
	c.mu.Lock()
	c.slots[gid] = weak.Make(conn)
	c.mu.Unlock()
}

// clear drops the calling goroutine's cached wrapper, if any.
func (c *threadLocalCache) clear() {
	gid := goroutineID()
	c.mu.Lock()
	delete(c.slots, gid)
	c.mu.Unlock()
}
