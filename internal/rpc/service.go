package rpc

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "quotekeeper.records.RecordService"

// Full method names, as seen by interceptors.
const (
	UpsertMethod = "/" + ServiceName + "/Upsert"
	QueryMethod  = "/" + ServiceName + "/Query"
	DeleteMethod = "/" + ServiceName + "/Delete"
)

// RecordServiceServer is implemented by the record service.
type RecordServiceServer interface {
	Upsert(context.Context, *UpsertRequest) (*UpsertResponse, error)
	Query(context.Context, *QueryRequest) (*QueryResponse, error)
	Delete(context.Context, *DeleteRequest) (*DeleteResponse, error)
}

// RegisterRecordServiceServer registers srv on s.
func RegisterRecordServiceServer(s grpc.ServiceRegistrar, srv RecordServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RecordServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Upsert", Handler: upsertHandler},
		{MethodName: "Query", Handler: queryHandler},
		{MethodName: "Delete", Handler: deleteHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "records.json",
}

func upsertHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(UpsertRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RecordServiceServer).Upsert(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: UpsertMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RecordServiceServer).Upsert(ctx, req.(*UpsertRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func queryHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(QueryRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RecordServiceServer).Query(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: QueryMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RecordServiceServer).Query(ctx, req.(*QueryRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func deleteHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(DeleteRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RecordServiceServer).Delete(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: DeleteMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RecordServiceServer).Delete(ctx, req.(*DeleteRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// RecordServiceClient is the typed client of the record service.
type RecordServiceClient interface {
	Upsert(ctx context.Context, in *UpsertRequest, opts ...grpc.CallOption) (*UpsertResponse, error)
	Query(ctx context.Context, in *QueryRequest, opts ...grpc.CallOption) (*QueryResponse, error)
	Delete(ctx context.Context, in *DeleteRequest, opts ...grpc.CallOption) (*DeleteResponse, error)
}

type recordServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewRecordServiceClient(cc grpc.ClientConnInterface) RecordServiceClient {
	return &recordServiceClient{cc: cc}
}

func callOpts(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
}

func (c *recordServiceClient) Upsert(ctx context.Context, in *UpsertRequest, opts ...grpc.CallOption) (*UpsertResponse, error) {
	out := new(UpsertResponse)
	if err := c.cc.Invoke(ctx, UpsertMethod, in, out, callOpts(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *recordServiceClient) Query(ctx context.Context, in *QueryRequest, opts ...grpc.CallOption) (*QueryResponse, error) {
	out := new(QueryResponse)
	if err := c.cc.Invoke(ctx, QueryMethod, in, out, callOpts(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *recordServiceClient) Delete(ctx context.Context, in *DeleteRequest, opts ...grpc.CallOption) (*DeleteResponse, error) {
	out := new(DeleteResponse)
	if err := c.cc.Invoke(ctx, DeleteMethod, in, out, callOpts(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}
