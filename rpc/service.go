package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// The service is built from protobuf well-known types only,
// so no protoc toolchain is needed.
//
//	service ClaimService {
//	  rpc CreateClaim(google.protobuf.BytesValue) returns (google.protobuf.Empty);
//	  rpc RevokeClaim(google.protobuf.BytesValue) returns (google.protobuf.Empty);
//	  rpc GetClaim(google.protobuf.BytesValue) returns (google.protobuf.Struct);
//	  rpc Info(google.protobuf.Empty) returns (google.protobuf.Struct);
//	  rpc WatchClaims(google.protobuf.Empty) returns (stream google.protobuf.Struct);
//	}
const serviceName = "poe.v1.ClaimService"

const (
	createClaimMethod = "/" + serviceName + "/CreateClaim"
	revokeClaimMethod = "/" + serviceName + "/RevokeClaim"
	getClaimMethod    = "/" + serviceName + "/GetClaim"
	infoMethod        = "/" + serviceName + "/Info"
	watchClaimsMethod = "/" + serviceName + "/WatchClaims"
)

// ClaimServiceServer is the server API for the claim service.
type ClaimServiceServer interface {
	CreateClaim(context.Context, *wrapperspb.BytesValue) (*emptypb.Empty, error)
	RevokeClaim(context.Context, *wrapperspb.BytesValue) (*emptypb.Empty, error)
	GetClaim(context.Context, *wrapperspb.BytesValue) (*structpb.Struct, error)
	Info(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	WatchClaims(*emptypb.Empty, ClaimService_WatchClaimsServer) error
}

// UnimplementedClaimServiceServer can be embedded to have forward compatible implementations.
type UnimplementedClaimServiceServer struct{}

func (UnimplementedClaimServiceServer) CreateClaim(context.Context, *wrapperspb.BytesValue) (*emptypb.Empty, error) {
	return nil, status.Error(codes.Unimplemented, "method CreateClaim not implemented")
}

func (UnimplementedClaimServiceServer) RevokeClaim(context.Context, *wrapperspb.BytesValue) (*emptypb.Empty, error) {
	return nil, status.Error(codes.Unimplemented, "method RevokeClaim not implemented")
}

func (UnimplementedClaimServiceServer) GetClaim(context.Context, *wrapperspb.BytesValue) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method GetClaim not implemented")
}

func (UnimplementedClaimServiceServer) Info(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method Info not implemented")
}

func (UnimplementedClaimServiceServer) WatchClaims(*emptypb.Empty, ClaimService_WatchClaimsServer) error {
	return status.Error(codes.Unimplemented, "method WatchClaims not implemented")
}

func RegisterClaimServiceServer(s grpc.ServiceRegistrar, srv ClaimServiceServer) {
	s.RegisterService(&ClaimService_ServiceDesc, srv)
}

type ClaimService_WatchClaimsServer interface {
	Send(*structpb.Struct) error
	grpc.ServerStream
}

type claimServiceWatchClaimsServer struct {
	grpc.ServerStream
}

func (x *claimServiceWatchClaimsServer) Send(m *structpb.Struct) error {
	return x.ServerStream.SendMsg(m)
}

// ClaimServiceClient is the client API for the claim service.
type ClaimServiceClient interface {
	CreateClaim(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*emptypb.Empty, error)
	RevokeClaim(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*emptypb.Empty, error)
	GetClaim(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*structpb.Struct, error)
	Info(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	WatchClaims(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (ClaimService_WatchClaimsClient, error)
}

type claimServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewClaimServiceClient(cc grpc.ClientConnInterface) ClaimServiceClient {
	return &claimServiceClient{cc: cc}
}

func (c *claimServiceClient) CreateClaim(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, createClaimMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *claimServiceClient) RevokeClaim(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, revokeClaimMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *claimServiceClient) GetClaim(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, getClaimMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *claimServiceClient) Info(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, infoMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *claimServiceClient) WatchClaims(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (ClaimService_WatchClaimsClient, error) {
	stream, err := c.cc.NewStream(ctx, &ClaimService_ServiceDesc.Streams[0], watchClaimsMethod, opts...)
	if err != nil {
		return nil, err
	}
	x := &claimServiceWatchClaimsClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

type ClaimService_WatchClaimsClient interface {
	Recv() (*structpb.Struct, error)
	grpc.ClientStream
}

type claimServiceWatchClaimsClient struct {
	grpc.ClientStream
}

func (x *claimServiceWatchClaimsClient) Recv() (*structpb.Struct, error) {
	m := new(structpb.Struct)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func _ClaimService_CreateClaim_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ClaimServiceServer).CreateClaim(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: createClaimMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ClaimServiceServer).CreateClaim(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

func _ClaimService_RevokeClaim_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ClaimServiceServer).RevokeClaim(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: revokeClaimMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ClaimServiceServer).RevokeClaim(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

func _ClaimService_GetClaim_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ClaimServiceServer).GetClaim(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getClaimMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ClaimServiceServer).GetClaim(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

func _ClaimService_Info_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ClaimServiceServer).Info(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: infoMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ClaimServiceServer).Info(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func _ClaimService_WatchClaims_Handler(srv interface{}, stream grpc.ServerStream) error {
	m := new(emptypb.Empty)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(ClaimServiceServer).WatchClaims(m, &claimServiceWatchClaimsServer{stream})
}

// ClaimService_ServiceDesc is the grpc.ServiceDesc for the claim service.
var ClaimService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ClaimServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateClaim", Handler: _ClaimService_CreateClaim_Handler},
		{MethodName: "RevokeClaim", Handler: _ClaimService_RevokeClaim_Handler},
		{MethodName: "GetClaim", Handler: _ClaimService_GetClaim_Handler},
		{MethodName: "Info", Handler: _ClaimService_Info_Handler},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchClaims",
			Handler:       _ClaimService_WatchClaims_Handler,
			ServerStreams: true,
		},
	},
	Metadata: "poe/v1/claims.proto",
}
