package cassandrapool

import "context"

// Transport is the opaque, blocking RPC surface a pool checks out and
// retries against. It is the seam described in spec.md §1 item 1: opening a
// socket, framing, authentication, keyspace selection, and the generated
// Thrift method stubs are all out of scope for this package and are
// supplied by whatever implements this interface (see thriftconn.go for a
// default adapter over github.com/apache/thrift).
//
// Every retriable method takes and returns opaque args/results: this
// package never serializes or interprets column/row data (spec.md §1,
// "higher-level data-mapping ... out of scope").
//
// Implementations signal a retriable failure by returning an error that
// implements TransientError (or by wrapping one with MarkTransient); any
// other error is treated as fatal and propagated unchanged.
type Transport interface {
	GetSlice(ctx context.Context, args any) (any, error)
	GetRangeSlices(ctx context.Context, args any) (any, error)
	GetIndexedSlices(ctx context.Context, args any) (any, error)
	BatchMutate(ctx context.Context, args any) (any, error)
	Remove(ctx context.Context, args any) (any, error)
	Truncate(ctx context.Context, args any) (any, error)

	// DescribeKeyspace is not retried by the interceptor (spec.md §4.2:
	// "non-retriable introspection").
	DescribeKeyspace(ctx context.Context, keyspace string) (*KsDef, error)

	// Close releases the underlying socket. Called at most once per
	// transport instance by the owning ConnectionWrapper.
	Close() error
}

// TransportOpener dials a fresh Transport bound to server. Pool._get_new_wrapper
// in spec.md §4.3 delegates to exactly this.
type TransportOpener func(ctx context.Context, server ServerAddress) (Transport, error)

// Credentials holds the optional username/password pycassa accepts for
// Thrift authentication.
type Credentials struct {
	Username string
	Password string
}

// ConnInfo carries the pool-level connection settings (keyspace,
// credentials, whether to use a framed transport) that a TransportOpener
// needs but that don't belong in the per-call ServerAddress argument.
// QueuePool attaches one to the context passed to every opener call via
// ContextWithConnInfo.
type ConnInfo struct {
	Keyspace    string
	Credentials Credentials
	Framed      bool
}

type connInfoKey struct{}

// ContextWithConnInfo returns a copy of ctx carrying info, retrievable with
// ConnInfoFromContext.
func ContextWithConnInfo(ctx context.Context, info ConnInfo) context.Context {
	return context.WithValue(ctx, connInfoKey{}, info)
}

// ConnInfoFromContext retrieves the ConnInfo attached by QueuePool, if any.
func ConnInfoFromContext(ctx context.Context) (ConnInfo, bool) {
	info, ok := ctx.Value(connInfoKey{}).(ConnInfo)
	return info, ok
}

// ColumnDef is an opaque column-metadata entry as returned by
// describe_keyspace; fields beyond Name are intentionally not modeled here
// (data-mapping is out of scope), but Raw carries whatever the transport
// returned so callers who need more can type-assert it.
type ColumnDef struct {
	Name string
	Raw  any
}

// CfDef is a column family definition as returned by describe_keyspace.
type CfDef struct {
	Name           string
	ColumnMetadata []ColumnDef
}

// KsDef is a keyspace definition as returned by describe_keyspace.
type KsDef struct {
	Name   string
	CfDefs []*CfDef
}

// CfDefView is what GetKeyspaceDescription hands back per column family: the
// column metadata either as the original ordered list, or additionally
// indexed by column name, mirroring pycassa's
// get_keyspace_description(use_dict_for_col_metadata=...).
type CfDefView struct {
	Name                string
	ColumnMetadataList  []ColumnDef
	ColumnMetadataByName map[string]ColumnDef
}
