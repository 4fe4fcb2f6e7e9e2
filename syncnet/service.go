// Package syncnet carries document entries and their content between peers
// over gRPC. A subscriber presents the document public key (its read
// capability), receives a snapshot of all current entries and then live
// updates, and fetches content blobs on demand.
package syncnet

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// SyncServer is the server API for the Sync gRPC service.
//
// We intentionally use protobuf well-known wrapper types so this package
// does not require a protoc/codegen toolchain; the payloads inside the
// wrappers are the canonical entry and hello encodings.
type SyncServer interface {
	Subscribe(*wrapperspb.BytesValue, Sync_SubscribeServer) error
	Content(context.Context, *wrapperspb.StringValue) (*wrapperspb.BytesValue, error)
}

// UnimplementedSyncServer can be embedded to have forward compatible
// implementations.
type UnimplementedSyncServer struct{}

func (UnimplementedSyncServer) Subscribe(*wrapperspb.BytesValue, Sync_SubscribeServer) error {
	return status.Error(codes.Unimplemented, "method Subscribe not implemented")
}
func (UnimplementedSyncServer) Content(context.Context, *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	return nil, status.Error(codes.Unimplemented, "method Content not implemented")
}

// RegisterSyncServer registers the Sync service on a gRPC server.
func RegisterSyncServer(s grpc.ServiceRegistrar, srv SyncServer) {
	s.RegisterService(&Sync_ServiceDesc, srv)
}

// Sync_SubscribeServer is the server side of the entry stream.
type Sync_SubscribeServer interface {
	Send(*wrapperspb.BytesValue) error
	grpc.ServerStream
}

type syncSubscribeServer struct{ grpc.ServerStream }

func (x *syncSubscribeServer) Send(m *wrapperspb.BytesValue) error {
	return x.ServerStream.SendMsg(m)
}

// SyncClient is the client API for the Sync gRPC service.
type SyncClient interface {
	Subscribe(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (Sync_SubscribeClient, error)
	Content(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error)
}

// Sync_SubscribeClient is the client side of the entry stream.
type Sync_SubscribeClient interface {
	Recv() (*wrapperspb.BytesValue, error)
	grpc.ClientStream
}

type syncClient struct{ cc grpc.ClientConnInterface }

func NewSyncClient(cc grpc.ClientConnInterface) SyncClient { return &syncClient{cc: cc} }

func (c *syncClient) Subscribe(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (Sync_SubscribeClient, error) {
	stream, err := c.cc.NewStream(ctx, &Sync_ServiceDesc.Streams[0], "/kompoti.sync.v1.Sync/Subscribe", opts...)
	if err != nil {
		return nil, err
	}
	x := &syncSubscribeClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

type syncSubscribeClient struct{ grpc.ClientStream }

func (x *syncSubscribeClient) Recv() (*wrapperspb.BytesValue, error) {
	m := new(wrapperspb.BytesValue)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *syncClient) Content(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	out := new(wrapperspb.BytesValue)
	err := c.cc.Invoke(ctx, "/kompoti.sync.v1.Sync/Content", in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func _Sync_Subscribe_Handler(srv interface{}, stream grpc.ServerStream) error {
	m := new(wrapperspb.BytesValue)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(SyncServer).Subscribe(m, &syncSubscribeServer{stream})
}

func _Sync_Content_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SyncServer).Content(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/kompoti.sync.v1.Sync/Content"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SyncServer).Content(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

// Sync_ServiceDesc is the grpc.ServiceDesc for the Sync service.
var Sync_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "kompoti.sync.v1.Sync",
	HandlerType: (*SyncServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Content", Handler: _Sync_Content_Handler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Subscribe", Handler: _Sync_Subscribe_Handler, ServerStreams: true},
	},
	Metadata: "sync.proto",
}
