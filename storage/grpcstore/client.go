// Package grpcstore carries envelope stores over gRPC.
//
// Client implements storage.Store against a remote Server, which in turn
// wraps any local storage.Store. Both sides recompute IDs from bytes, so a
// misbehaving peer can withhold objects but not substitute them.
package grpcstore

import (
	"context"
	"time"

	"github.com/ipfs/go-cid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/gordonbrander/szdat/envelope"
	"github.com/gordonbrander/szdat/storage"
)

// Client talks to a remote envelope store.
//
// The *Context methods take a caller context; the storage.Store methods use
// a background context bounded by Timeout.
type Client struct {
	conn *grpc.ClientConn
	rpc  EnvelopeStoreClient

	// Timeout bounds each storage.Store call when non-zero.
	Timeout time.Duration
}

var _ storage.Store = (*Client)(nil)

type DialOptions struct {
	// MaxMsgBytes caps sent and received messages when non-zero. Envelopes
	// larger than the gRPC default of 4 MiB need it.
	MaxMsgBytes int

	// Extra is appended after the defaults, so it can override them.
	Extra []grpc.DialOption
}

// Dial returns a client for target. No connection is made until the first
// call.
func Dial(target string, opts DialOptions) (*Client, error) {
	var callOpts []grpc.CallOption
	if n := opts.MaxMsgBytes; n > 0 {
		callOpts = append(callOpts, grpc.MaxCallRecvMsgSize(n), grpc.MaxCallSendMsgSize(n))
	}
	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(callOpts...),
	}, opts.Extra...)

	conn, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, rpc: NewEnvelopeStoreClient(conn)}, nil
}

func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// PutContext uploads an encoded envelope and returns its ID. The ID the
// server reports must match the one computed locally.
func (c *Client) PutContext(ctx context.Context, encoded []byte) (cid.Cid, error) {
	want, err := envelope.ID(encoded)
	if err != nil {
		return cid.Undef, err
	}
	reply, err := c.rpc.Put(ctx, wrapperspb.Bytes(encoded))
	if err != nil {
		return cid.Undef, mapRPC(err)
	}
	got, err := cid.Decode(reply.GetValue())
	switch {
	case err != nil || !got.Defined():
		return cid.Undef, storage.ErrInvalidID
	case !got.Equals(want):
		return cid.Undef, storage.ErrIDMismatch
	}
	return got, nil
}

// GetContext downloads the object stored under id and checks it hashes to id.
func (c *Client) GetContext(ctx context.Context, id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, storage.ErrInvalidID
	}
	reply, err := c.rpc.Get(ctx, wrapperspb.String(id.String()))
	if err != nil {
		return nil, mapRPC(err)
	}
	if err := storage.CheckID(id, reply.GetValue()); err != nil {
		return nil, err
	}
	return reply.GetValue(), nil
}

// HasContext reports whether the server holds id. Unlike Has, transport
// failures are returned rather than read as absence.
func (c *Client) HasContext(ctx context.Context, id cid.Cid) (bool, error) {
	if !id.Defined() {
		return false, storage.ErrInvalidID
	}
	reply, err := c.rpc.Has(ctx, wrapperspb.String(id.String()))
	if err != nil {
		return false, mapRPC(err)
	}
	return reply.GetValue(), nil
}

func (c *Client) Put(encoded []byte) (cid.Cid, error) {
	ctx, cancel := c.callContext()
	defer cancel()
	return c.PutContext(ctx, encoded)
}

func (c *Client) Get(id cid.Cid) ([]byte, error) {
	ctx, cancel := c.callContext()
	defer cancel()
	return c.GetContext(ctx, id)
}

func (c *Client) Has(id cid.Cid) bool {
	ctx, cancel := c.callContext()
	defer cancel()
	ok, err := c.HasContext(ctx, id)
	return err == nil && ok
}

func (c *Client) callContext() (context.Context, context.CancelFunc) {
	if c.Timeout > 0 {
		return context.WithTimeout(context.Background(), c.Timeout)
	}
	return context.WithCancel(context.Background())
}
