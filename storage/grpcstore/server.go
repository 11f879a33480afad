package grpcstore

import (
	"context"
	"time"

	"github.com/ipfs/go-cid"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/gordonbrander/szdat/envelope"
	"github.com/gordonbrander/szdat/storage"
)

// Server exposes a storage.Store over the envelope store service.
//
// Put only accepts bytes that parse as an envelope. The server never
// verifies signatures: it holds no keys, and readers verify on their side.
type Server struct {
	UnimplementedEnvelopeStoreServer
	Store storage.Store
}

func (s *Server) Put(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.StringValue, error) {
	if s == nil || s.Store == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing store")
	}
	b := in.GetValue()
	if _, err := envelope.Unmarshal(b); err != nil {
		log.WithContext(ctx).WithError(err).Debug("refusing non-envelope object")
		return nil, mapErr(ErrNotEnvelope)
	}
	expected, err := envelope.ID(b)
	if err != nil {
		return nil, status.Error(codes.Internal, "id computation failed")
	}
	id, err := s.Store.Put(b)
	if err != nil {
		return nil, mapErr(err)
	}
	if !id.Equals(expected) {
		return nil, mapErr(storage.ErrIDMismatch)
	}
	return wrapperspb.String(id.String()), nil
}

func (s *Server) Get(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	if s == nil || s.Store == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing store")
	}
	id, err := cid.Decode(in.GetValue())
	if err != nil || !id.Defined() {
		return nil, mapErr(storage.ErrInvalidID)
	}
	b, err := s.Store.Get(id)
	if err != nil {
		return nil, mapErr(err)
	}
	if err := storage.CheckID(id, b); err != nil {
		log.WithContext(ctx).WithField("id", id.String()).Warn("stored object does not match its id")
		return nil, mapErr(err)
	}
	return wrapperspb.Bytes(b), nil
}

func (s *Server) Has(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	if s == nil || s.Store == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing store")
	}
	id, err := cid.Decode(in.GetValue())
	if err != nil || !id.Defined() {
		return nil, mapErr(storage.ErrInvalidID)
	}
	return wrapperspb.Bool(s.Store.Has(id)), nil
}

// LoggingInterceptor logs every unary call with its method, status code and
// duration.
func LoggingInterceptor(logger *log.Entry) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		entry := logger.WithFields(log.Fields{
			"method":   info.FullMethod,
			"code":     status.Code(err).String(),
			"duration": time.Since(start),
		})
		switch status.Code(err) {
		case codes.OK, codes.NotFound:
			entry.Debug("request served")
		case codes.Internal, codes.DataLoss:
			entry.WithError(err).Error("request failed")
		default:
			entry.WithError(err).Info("request rejected")
		}
		return resp, err
	}
}
