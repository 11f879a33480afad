package grpcstore

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/gordonbrander/szdat/storage"
)

// ErrNotEnvelope is returned when a server refuses bytes that do not parse
// as an envelope.
var ErrNotEnvelope = errors.New("grpcstore: object is not an envelope")

// mapErr converts store errors to gRPC status errors.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return status.Error(codes.NotFound, storage.ErrNotFound.Error())
	case errors.Is(err, storage.ErrInvalidID):
		return status.Error(codes.InvalidArgument, storage.ErrInvalidID.Error())
	case errors.Is(err, storage.ErrIDMismatch):
		return status.Error(codes.DataLoss, storage.ErrIDMismatch.Error())
	case errors.Is(err, storage.ErrImmutable):
		return status.Error(codes.AlreadyExists, storage.ErrImmutable.Error())
	case errors.Is(err, ErrNotEnvelope):
		return status.Error(codes.FailedPrecondition, ErrNotEnvelope.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// mapRPC converts gRPC status errors back to store errors.
func mapRPC(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.NotFound:
		return storage.ErrNotFound
	case codes.InvalidArgument:
		return storage.ErrInvalidID
	case codes.DataLoss:
		return storage.ErrIDMismatch
	case codes.AlreadyExists:
		return storage.ErrImmutable
	case codes.FailedPrecondition:
		if st.Message() == ErrNotEnvelope.Error() {
			return ErrNotEnvelope
		}
		return err
	default:
		return err
	}
}
