package cassandrapool

import (
	"fmt"
	"math/rand"
	"net"
	"sync/atomic"
)

// ServerAddress is an immutable (host, port) pair identifying one server in
// a pool's rotation.
type ServerAddress struct {
	Host string
	Port string
}

// String renders the address as "host:port".
func (a ServerAddress) String() string {
	return net.JoinHostPort(a.Host, a.Port)
}

// ParseServerAddress splits a "host:port" string into a ServerAddress.
func ParseServerAddress(hostPort string) (ServerAddress, error) {
	host, port, err := net.SplitHostPort(hostPort)
	if err != nil {
		return ServerAddress{}, fmt.Errorf("cassandrapool: invalid server address %q: %w", hostPort, err)
	}
	return ServerAddress{Host: host, Port: port}, nil
}

// ServerSource produces the sequence of "host:port" strings a pool should
// rotate across. It is invoked each time the pool's server list is
// (re)installed, so a ServerSource may do live discovery (e.g. DNS lookup)
// instead of returning a fixed set.
type ServerSource func() ([]string, error)

// StaticServers returns a ServerSource that always yields the given
// "host:port" strings, the equivalent of passing a plain sequence to
// pycassa's Pool(server_list=...).
func StaticServers(addrs ...string) ServerSource {
	fixed := append([]string(nil), addrs...)
	return func() ([]string, error) {
		return append([]string(nil), fixed...), nil
	}
}

// rotor holds a randomly permuted server list and hands out addresses
// round-robin. Per spec, the rotor is intentionally unsynchronized beyond
// what's needed to avoid data races: concurrent next() calls may return the
// same address under contention, which is acceptable since the goal is
// distribution, not exact round-robin.
type rotor struct {
	list atomic.Pointer[[]ServerAddress]
	idx  atomic.Uint64
}

// install materializes source (invoking it if it's callable-shaped),
// uniformly shuffles the result with Fisher-Yates, and resets the rotor to
// the head of the new list. It fails if the resulting list is empty.
func (r *rotor) install(source ServerSource) ([]ServerAddress, error) {
	raw, err := source()
	if err != nil {
		return nil, fmt.Errorf("cassandrapool: obtaining server list: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("cassandrapool: server list must not be empty")
	}

	addrs := make([]ServerAddress, len(raw))
	for i, s := range raw {
		addr, err := ParseServerAddress(s)
		if err != nil {
			return nil, err
		}
		addrs[i] = addr
	}

	shuffle(addrs)

	r.list.Store(&addrs)
	r.idx.Store(0)
	return append([]ServerAddress(nil), addrs...), nil
}

// next returns the next server in rotation and advances the rotor. It does
// not block and never fails once install has succeeded at least once.
func (r *rotor) next() ServerAddress {
	list := *r.list.Load()
	i := r.idx.Add(1) - 1
	return list[i%uint64(len(list))]
}

// len returns the number of servers currently installed.
func (r *rotor) len() int {
	list := r.list.Load()
	if list == nil {
		return 0
	}
	return len(*list)
}

// shuffle uniformly permutes addrs in place using Fisher-Yates, mirroring
// pycassa's set_server_list (random.randint(i, n-1) swap loop).
func shuffle(addrs []ServerAddress) {
	n := len(addrs)
	for i := 0; i < n; i++ {
		j := i + rand.Intn(n-i)
		addrs[i], addrs[j] = addrs[j], addrs[i]
	}
}
