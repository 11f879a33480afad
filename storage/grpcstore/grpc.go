package grpcstore

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "szdat.store.v1.EnvelopeStore"

const (
	methodPut = "/" + ServiceName + "/Put"
	methodGet = "/" + ServiceName + "/Get"
	methodHas = "/" + ServiceName + "/Has"
)

// EnvelopeStoreServer is the server API for the envelope store service.
//
// Messages are protobuf well-known wrapper types, so no codegen step is
// needed: Put takes the encoded envelope and returns its ID string; Get and
// Has take an ID string.
type EnvelopeStoreServer interface {
	Put(context.Context, *wrapperspb.BytesValue) (*wrapperspb.StringValue, error)
	Get(context.Context, *wrapperspb.StringValue) (*wrapperspb.BytesValue, error)
	Has(context.Context, *wrapperspb.StringValue) (*wrapperspb.BoolValue, error)
}

// UnimplementedEnvelopeStoreServer can be embedded to have forward compatible implementations.
type UnimplementedEnvelopeStoreServer struct{}

func (UnimplementedEnvelopeStoreServer) Put(context.Context, *wrapperspb.BytesValue) (*wrapperspb.StringValue, error) {
	return nil, status.Error(codes.Unimplemented, "method Put not implemented")
}
func (UnimplementedEnvelopeStoreServer) Get(context.Context, *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	return nil, status.Error(codes.Unimplemented, "method Get not implemented")
}
func (UnimplementedEnvelopeStoreServer) Has(context.Context, *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	return nil, status.Error(codes.Unimplemented, "method Has not implemented")
}

// RegisterEnvelopeStoreServer registers the service on a gRPC server.
func RegisterEnvelopeStoreServer(s grpc.ServiceRegistrar, srv EnvelopeStoreServer) {
	s.RegisterService(&EnvelopeStore_ServiceDesc, srv)
}

// EnvelopeStoreClient is the client API for the envelope store service.
type EnvelopeStoreClient interface {
	Put(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.StringValue, error)
	Get(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error)
	Has(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.BoolValue, error)
}

type envelopeStoreClient struct{ cc grpc.ClientConnInterface }

func NewEnvelopeStoreClient(cc grpc.ClientConnInterface) EnvelopeStoreClient {
	return &envelopeStoreClient{cc: cc}
}

func (c *envelopeStoreClient) Put(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, methodPut, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *envelopeStoreClient) Get(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	out := new(wrapperspb.BytesValue)
	if err := c.cc.Invoke(ctx, methodGet, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *envelopeStoreClient) Has(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.BoolValue, error) {
	out := new(wrapperspb.BoolValue)
	if err := c.cc.Invoke(ctx, methodHas, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func putHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(EnvelopeStoreServer).Put(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodPut}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(EnvelopeStoreServer).Put(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

func getHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(EnvelopeStoreServer).Get(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodGet}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(EnvelopeStoreServer).Get(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func hasHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(EnvelopeStoreServer).Has(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodHas}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(EnvelopeStoreServer).Has(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

// EnvelopeStore_ServiceDesc is the grpc.ServiceDesc for the envelope store service.
var EnvelopeStore_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*EnvelopeStoreServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Put", Handler: putHandler},
		{MethodName: "Get", Handler: getHandler},
		{MethodName: "Has", Handler: hasHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "envelope_store.proto",
}
