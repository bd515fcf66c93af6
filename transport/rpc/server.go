// Package rpc is the gRPC collaborator transport (spec §6): a thin, contracts-only gRPC adapter in front of the actor,
// grounded on wso2-api-platform's grpc-based gateway-controller services.
//
// Its messages are plain Go structs (types.go) rather than protoc-generated
// code — see DESIGN.md for why — carried over the wire by jsonCodec instead
// of protobuf's binary codec. The service contract mirrors ratelimit.proto.
package rpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"

	"github.com/ratelimitd/ratelimitd/internal/actor"
	"github.com/ratelimitd/ratelimitd/internal/types"
)

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// ThrottleServiceServer is the contract transport/rpc implements, mirroring
// the Throttle RPC declared in ratelimit.proto.
type ThrottleServiceServer interface {
	Throttle(ctx context.Context, req *ThrottleRequest) (*ThrottleResponse, error)
}

// server adapts the actor to ThrottleServiceServer.
type server struct {
	handle actor.Handle
}

// NewServer builds a ThrottleServiceServer backed by handle.
func NewServer(handle actor.Handle) ThrottleServiceServer {
	return &server{handle: handle}
}

func (s *server) Throttle(ctx context.Context, req *ThrottleRequest) (*ThrottleResponse, error) {
	now := time.Now()
	if req.TimestampSecs != 0 || req.TimestampNanos != 0 {
		now = time.Unix(req.TimestampSecs, req.TimestampNanos)
	}

	allowed, verdict, err := s.handle.Throttle(ctx, types.ThrottleRequest{
		Key:            req.Key,
		MaxBurst:       req.MaxBurst,
		CountPerPeriod: req.CountPerPeriod,
		PeriodSeconds:  req.Period,
		Quantity:       req.Quantity,
		Timestamp:      now,
	}, now)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	resp := types.NewThrottleResponse(allowed, verdict.ToTypes())
	return &ThrottleResponse{
		Allowed:    resp.Allowed,
		Limit:      resp.Limit,
		Remaining:  resp.Remaining,
		ResetAfter: resp.ResetAfterSeconds,
		RetryAfter: resp.RetryAfterSeconds,
	}, nil
}

func throttleHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ThrottleRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ThrottleServiceServer).Throttle(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/ratelimitd.v1.ThrottleService/Throttle",
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ThrottleServiceServer).Throttle(ctx, req.(*ThrottleRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// serviceDesc is the hand-built equivalent of what protoc-gen-go-grpc would
// otherwise generate from ratelimit.proto's single Throttle method.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: "ratelimitd.v1.ThrottleService",
	HandlerType: (*ThrottleServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Throttle",
			Handler:    throttleHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ratelimit.proto",
}

// Register wires srv into a *grpc.Server. It does not select a codec;
// NewGRPCServer is what forces jsonCodec.
func Register(s *grpc.Server, srv ThrottleServiceServer) {
	s.RegisterService(&serviceDesc, srv)
}

// NewGRPCServer builds a *grpc.Server with jsonCodec forced as the codec for
// every call and srv registered, ready for Serve on a net.Listener.
func NewGRPCServer(srv ThrottleServiceServer) *grpc.Server {
	s := grpc.NewServer(grpc.ForceServerCodec(jsonCodec{}))
	Register(s, srv)
	return s
}
