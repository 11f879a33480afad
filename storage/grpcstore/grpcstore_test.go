package grpcstore

import (
	"bytes"
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/ipfs/go-cid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	"github.com/gordonbrander/szdat/envelope"
	"github.com/gordonbrander/szdat/keys"
	"github.com/gordonbrander/szdat/storage"
	"github.com/gordonbrander/szdat/storage/localfs"
)

func newTestClient(t *testing.T) (*Client, *localfs.Store) {
	t.Helper()
	backing, err := localfs.New(t.TempDir())
	if err != nil {
		t.Fatalf("localfs.New: %v", err)
	}

	lis := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer()
	RegisterEnvelopeStoreServer(srv, &Server{Store: backing})
	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.Stop)

	dialer := func(ctx context.Context, s string) (net.Conn, error) { return lis.DialContext(ctx) }
	client, err := Dial("passthrough:///bufnet", DialOptions{
		Extra: []grpc.DialOption{grpc.WithContextDialer(dialer)},
	})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	client.Timeout = 5 * time.Second
	t.Cleanup(func() { _ = client.Close() })
	return client, backing
}

func sealedBytes(t *testing.T, body string) []byte {
	t.Helper()
	priv, _, err := keys.Generate(nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	env, err := envelope.Seal("text/plain", []byte(body), priv)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	b, err := envelope.Marshal(env)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	return b
}

func TestGRPCStore_LocalFS_RoundTrip(t *testing.T) {
	client, backing := newTestClient(t)

	payload := sealedBytes(t, "hello grpcstore")
	id, err := client.Put(payload)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	want, err := envelope.ID(payload)
	if err != nil {
		t.Fatal(err)
	}
	if !id.Equals(want) {
		t.Fatalf("Put ID mismatch: got %s want %s", id, want)
	}
	if !client.Has(id) || !backing.Has(id) {
		t.Fatalf("Has: expected true on client and backing store")
	}
	got, err := client.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload mismatch")
	}

	// Idempotent.
	if _, err := client.Put(payload); err != nil {
		t.Fatalf("second Put: %v", err)
	}
}

func TestGRPCStore_RefusesNonEnvelope(t *testing.T) {
	client, backing := newTestClient(t)

	raw := []byte("not an envelope")
	if _, err := client.Put(raw); !errors.Is(err, ErrNotEnvelope) {
		t.Fatalf("expected ErrNotEnvelope, got %v", err)
	}
	id, err := envelope.ID(raw)
	if err != nil {
		t.Fatal(err)
	}
	if backing.Has(id) {
		t.Fatalf("refused object reached the backing store")
	}
}

func TestGRPCStore_NotFoundAndInvalid(t *testing.T) {
	client, _ := newTestClient(t)

	id, err := envelope.ID(sealedBytes(t, "never stored"))
	if err != nil {
		t.Fatal(err)
	}
	if client.Has(id) {
		t.Fatalf("Has returned true for missing ID")
	}
	if _, err := client.Get(id); !storage.IsNotFound(err) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := client.Get(cid.Undef); err != storage.ErrInvalidID {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
}

func TestGRPCStore_ContextCalls(t *testing.T) {
	client, _ := newTestClient(t)
	payload := sealedBytes(t, "with context")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	id, err := client.PutContext(ctx, payload)
	if err != nil {
		t.Fatalf("PutContext: %v", err)
	}
	ok, err := client.HasContext(ctx, id)
	if err != nil || !ok {
		t.Fatalf("HasContext: ok=%v err=%v", ok, err)
	}
	if _, err := client.GetContext(ctx, id); err != nil {
		t.Fatalf("GetContext: %v", err)
	}

	done, stop := context.WithCancel(context.Background())
	stop()
	if _, err := client.HasContext(done, id); err == nil {
		t.Fatalf("expected HasContext to fail on a cancelled context")
	}
	if client.Has(cid.Undef) {
		t.Fatalf("Has should be false for an undefined ID")
	}
}

func TestGRPCStore_FetchThroughEnvelopes(t *testing.T) {
	client, _ := newTestClient(t)

	priv, pub, err := keys.Generate(nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	env, err := envelope.Seal("text/plain", []byte("published"), priv)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	envs := storage.Envelopes{Store: client}
	id, err := envs.Publish(env)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	got, err := envs.Fetch(id)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if err := got.Verify(pub); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestMapErr_RoundTrip(t *testing.T) {
	for _, want := range []error{
		storage.ErrNotFound,
		storage.ErrInvalidID,
		storage.ErrIDMismatch,
		storage.ErrImmutable,
		ErrNotEnvelope,
	} {
		if got := mapRPC(mapErr(want)); got != want {
			t.Fatalf("mapRPC(mapErr(%v)) = %v", want, got)
		}
	}
}
