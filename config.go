package cassandrapool

import (
	"fmt"
	"time"
)

const (
	defaultKeyspace    = ""
	defaultPoolSize     = 5
	defaultMaxOverflow  = 10
	defaultPoolTimeout  = 30 * time.Second
	defaultTimeout      = 500 * time.Millisecond
	defaultRecycle      = 10000
	defaultMaxRetries   = 5
	defaultLoggingName  = ""
)

// Option configures a QueuePool at construction time. Following the
// functional-options idiom, every Option returns an error so validation can
// be deferred to New rather than panicking mid-configuration.
type Option func(*QueuePool) error

// WithKeyspace sets the keyspace new transports select after connecting.
func WithKeyspace(keyspace string) Option {
	return func(p *QueuePool) error {
		p.keyspace = keyspace
		return nil
	}
}

// WithServerList sets the fixed "host:port" server list to rotate across.
// Mutually exclusive with WithServerSource; the last one applied wins.
func WithServerList(servers ...string) Option {
	return func(p *QueuePool) error {
		p.serverSource = StaticServers(servers...)
		return nil
	}
}

// WithServerSource sets a ServerSource invoked each time the server list is
// (re)installed, e.g. for DNS-backed discovery instead of a fixed list.
func WithServerSource(source ServerSource) Option {
	return func(p *QueuePool) error {
		if source == nil {
			return fmt.Errorf("cassandrapool: server source must not be nil")
		}
		p.serverSource = source
		return nil
	}
}

// WithCredentials sets the username/password passed to the transport opener.
func WithCredentials(creds Credentials) Option {
	return func(p *QueuePool) error {
		p.credentials = creds
		return nil
	}
}

// WithTimeout sets the per-attempt dial/RPC timeout threaded through to the
// transport opener.
func WithTimeout(timeout time.Duration) Option {
	return func(p *QueuePool) error {
		p.timeout = timeout
		return nil
	}
}

// WithLoggingName sets the pool's identity as it appears in emitted events
// (EventCommon.PoolID). Defaults to a generated id if left empty.
func WithLoggingName(name string) Option {
	return func(p *QueuePool) error {
		p.loggingName = name
		return nil
	}
}

// WithThreadLocal enables or disables the weak, goroutine-affine connection
// cache (spec.md §5, "Weak thread-local cache"). Enabled by default.
func WithThreadLocal(enabled bool) Option {
	return func(p *QueuePool) error {
		p.threadLocalEnabled = enabled
		return nil
	}
}

// WithFramedTransport selects whether new transports are opened framed.
// Enabled by default, matching pycassa's framed_transport=True default.
func WithFramedTransport(framed bool) Option {
	return func(p *QueuePool) error {
		p.framedTransport = framed
		return nil
	}
}

// WithListeners registers the given listeners at construction time, each via
// AddListener's capability-based fan-out.
func WithListeners(listeners ...any) Option {
	return func(p *QueuePool) error {
		p.pendingListeners = append(p.pendingListeners, listeners...)
		return nil
	}
}

// WithoutDefaultLogger opts out of the ZapLogListener that New installs by
// default (matching pycassa's PoolLogger being auto-installed in
// Pool.__init__; see SPEC_FULL.md §2.1).
func WithoutDefaultLogger() Option {
	return func(p *QueuePool) error {
		p.disableDefaultLogger = true
		return nil
	}
}

// WithPoolSize sets the number of idle connections the pool holds ready.
func WithPoolSize(size int) Option {
	return func(p *QueuePool) error {
		if size < 0 {
			return fmt.Errorf("cassandrapool: pool size must be >= 0, got %d", size)
		}
		p.poolSize = size
		return nil
	}
}

// WithMaxOverflow sets how many connections beyond PoolSize may be opened.
// 0 disables overflow entirely; a negative value means unlimited overflow.
func WithMaxOverflow(maxOverflow int) Option {
	return func(p *QueuePool) error {
		p.maxOverflow = maxOverflow
		return nil
	}
}

// WithPoolTimeout sets how long Get blocks waiting for an idle connection
// once the pool (including overflow) is exhausted.
func WithPoolTimeout(timeout time.Duration) Option {
	return func(p *QueuePool) error {
		p.poolTimeout = timeout
		return nil
	}
}

// WithRecycle sets the number of retriable RPCs a connection may serve
// before ReturnConn disposes and replaces it. A negative value disables
// recycling.
func WithRecycle(recycle int) Option {
	return func(p *QueuePool) error {
		p.recycle = recycle
		return nil
	}
}

// WithMaxRetries sets the number of consecutive failovers a single RPC may
// perform before giving up with MaximumRetryError. A negative value means
// unlimited retries.
func WithMaxRetries(maxRetries int) Option {
	return func(p *QueuePool) error {
		p.maxRetries = maxRetries
		return nil
	}
}

// WithPrefill selects whether New eagerly opens PoolSize connections (true,
// the default) or starts empty and opens connections lazily on demand.
func WithPrefill(prefill bool) Option {
	return func(p *QueuePool) error {
		p.prefill = prefill
		return nil
	}
}

// WithOpener sets the function used to dial a fresh Transport to a given
// server. Required: New returns an error if no opener is configured.
func WithOpener(opener TransportOpener) Option {
	return func(p *QueuePool) error {
		if opener == nil {
			return fmt.Errorf("cassandrapool: opener must not be nil")
		}
		p.opener = opener
		return nil
	}
}

func defaultQueuePool() *QueuePool {
	return &QueuePool{
		keyspace:           defaultKeyspace,
		serverSource:       StaticServers("localhost:9160"),
		timeout:            defaultTimeout,
		loggingName:        defaultLoggingName,
		threadLocalEnabled: true,
		framedTransport:    true,
		poolSize:           defaultPoolSize,
		maxOverflow:        defaultMaxOverflow,
		poolTimeout:        defaultPoolTimeout,
		recycle:            defaultRecycle,
		maxRetries:         defaultMaxRetries,
		prefill:            true,
	}
}

// New constructs a QueuePool, applying opts over the package defaults
// (spec.md §6), then installs the server list and (if Prefill) eagerly
// fills the idle queue to PoolSize.
func New(opts ...Option) (*QueuePool, error) {
	p := defaultQueuePool()
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	if p.opener == nil {
		return nil, fmt.Errorf("cassandrapool: an opener is required (WithOpener)")
	}
	if p.loggingName == "" {
		p.loggingName = fmt.Sprintf("pool-%p", p)
	}

	if err := p.init(); err != nil {
		return nil, err
	}
	return p, nil
}
