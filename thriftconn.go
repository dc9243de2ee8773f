package cassandrapool

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/apache/thrift/lib/go/thrift"
)

// CassandraClient is the generated-stub surface a thrift transport adapter
// is expected to expose once a connection is open; it stands in for the
// generated Cassandra.Client that real Thrift IDL compilation would produce
// (out of scope for this package, spec.md §1 item 1). Its methods mirror a
// real generated client's one-RPC-per-method shape rather than thrift.TClient's
// generic Call, since Call's result comes back as a thrift.ResponseMeta plus
// an out-parameter struct, not a usable return value, and this package never
// has the generated args/result structs to hand it (data-mapping is out of
// scope, spec.md §1).
type CassandraClient interface {
	GetSlice(ctx context.Context, args any) (any, error)
	GetRangeSlices(ctx context.Context, args any) (any, error)
	GetIndexedSlices(ctx context.Context, args any) (any, error)
	BatchMutate(ctx context.Context, args any) (any, error)
	Remove(ctx context.Context, args any) (any, error)
	Truncate(ctx context.Context, args any) (any, error)
	DescribeKeyspace(ctx context.Context, keyspace string) (*KsDef, error)
}

// thriftTransport adapts a dialed thrift.TTransport + CassandraClient pair to
// the Transport interface, classifying transport-level failures as
// transient so the retry interceptor fails over instead of giving up.
type thriftTransport struct {
	transport thrift.TTransport
	client    CassandraClient
}

// call runs fn (one CassandraClient RPC) and reclassifies any error it
// returns through classifyThriftError, the way invoke's closures in
// wrapper.go run one Transport method at a time.
func (t *thriftTransport) call(fn func() (any, error)) (any, error) {
	result, err := fn()
	if err != nil {
		return nil, classifyThriftError(err)
	}
	return result, nil
}

func (t *thriftTransport) GetSlice(ctx context.Context, args any) (any, error) {
	return t.call(func() (any, error) { return t.client.GetSlice(ctx, args) })
}

func (t *thriftTransport) GetRangeSlices(ctx context.Context, args any) (any, error) {
	return t.call(func() (any, error) { return t.client.GetRangeSlices(ctx, args) })
}

func (t *thriftTransport) GetIndexedSlices(ctx context.Context, args any) (any, error) {
	return t.call(func() (any, error) { return t.client.GetIndexedSlices(ctx, args) })
}

func (t *thriftTransport) BatchMutate(ctx context.Context, args any) (any, error) {
	return t.call(func() (any, error) { return t.client.BatchMutate(ctx, args) })
}

func (t *thriftTransport) Remove(ctx context.Context, args any) (any, error) {
	return t.call(func() (any, error) { return t.client.Remove(ctx, args) })
}

func (t *thriftTransport) Truncate(ctx context.Context, args any) (any, error) {
	return t.call(func() (any, error) { return t.client.Truncate(ctx, args) })
}

func (t *thriftTransport) DescribeKeyspace(ctx context.Context, keyspace string) (*KsDef, error) {
	result, err := t.client.DescribeKeyspace(ctx, keyspace)
	if err != nil {
		return nil, classifyThriftError(err)
	}
	return result, nil
}

func (t *thriftTransport) Close() error {
	return t.transport.Close()
}

// NewThriftTransportOpener returns a TransportOpener that dials server with
// the apache/thrift socket/framed-transport stack, builds a protocol over
// it with protoFactory, and wraps the result behind Transport. newClient
// adapts the generated service client built from the open protocol (the
// same transport handed to both the input and output protocol, as generated
// Thrift code normally wires it up) down to the opaque CassandraClient
// surface above. Whether to frame the transport is read off the ConnInfo
// QueuePool attaches to ctx, not a fixed construction-time flag, since it's
// pool configuration.
func NewThriftTransportOpener(
	protoFactory thrift.TProtocolFactory,
	cfg *thrift.TConfiguration,
	newClient func(in, out thrift.TProtocol) CassandraClient,
) TransportOpener {
	return func(ctx context.Context, server ServerAddress) (Transport, error) {
		info, _ := ConnInfoFromContext(ctx)

		socket := thrift.NewTSocketConf(server.String(), cfg)

		var transport thrift.TTransport = socket
		if info.Framed {
			transport = thrift.NewTFramedTransportConf(transport, cfg)
		}

		if err := transport.Open(); err != nil {
			return nil, fmt.Errorf("cassandrapool: opening thrift transport to %s: %w", server, err)
		}

		protocol := protoFactory.GetProtocol(transport)
		client := newClient(protocol, protocol)

		return &thriftTransport{transport: transport, client: client}, nil
	}
}

// unavailableError is implemented by Cassandra's generated UnavailableException
// type; classifyThriftError treats it, like timeouts, as transient.
type unavailableError interface {
	error
	IsSetWhy() bool
}

// classifyThriftError maps a raw apache/thrift error to either a
// TransientError (the retry interceptor should fail over and retry) or the
// original error unchanged (fatal, propagate to the caller), mirroring
// pycassa's `except (TimedOutException, UnavailableException)` clause in
// ConnectionWrapper._retry.
func classifyThriftError(err error) error {
	if err == nil {
		return nil
	}

	var tte thrift.TTransportException
	if errors.As(err, &tte) {
		switch tte.TypeId() {
		case thrift.TIMED_OUT, thrift.NOT_OPEN, thrift.END_OF_FILE:
			return MarkTransient(err)
		}
	}

	var ue unavailableError
	if errors.As(err, &ue) {
		return MarkTransient(err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return MarkTransient(err)
	}

	return err
}
