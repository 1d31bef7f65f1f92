package rpc

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/poexist/poe/auth"
	"github.com/poexist/poe/claim"
	"github.com/poexist/poe/logging"
	"github.com/poexist/poe/registry"
)

type subscriber interface {
	Subscribe(ctx context.Context) <-chan claim.Event
}

// rpcServer is a gRPC, RPC front end to the claim registry.
type rpcServer struct {
	UnimplementedClaimServiceServer
	reg     *registry.Registry
	auth    auth.Authenticator
	events  subscriber
	version string
	done    <-chan struct{}
}

// A compile time check to ensure that rpcServer fully implements
// the ClaimServiceServer gRPC rpc.
var _ ClaimServiceServer = (*rpcServer)(nil)

type serverOptions struct {
	events  subscriber
	version string
	done    <-chan struct{}
}

type ServerOptionFunc func(*serverOptions)

// WithEvents enables WatchClaims backed by the given subscription source.
func WithEvents(events subscriber) ServerOptionFunc {
	return func(o *serverOptions) {
		o.events = events
	}
}

func WithVersion(version string) ServerOptionFunc {
	return func(o *serverOptions) {
		o.version = version
	}
}

// WithShutdown ends open WatchClaims streams once done is closed.
func WithShutdown(done <-chan struct{}) ServerOptionFunc {
	return func(o *serverOptions) {
		o.done = done
	}
}

// NewServer creates and returns a new instance of the rpcServer.
func NewServer(reg *registry.Registry, authenticator auth.Authenticator, opts ...ServerOptionFunc) *rpcServer {
	options := serverOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	return &rpcServer{
		reg:     reg,
		auth:    authenticator,
		events:  options.events,
		version: options.version,
		done:    options.done,
	}
}

func (r *rpcServer) CreateClaim(ctx context.Context, in *wrapperspb.BytesValue) (*emptypb.Empty, error) {
	caller, err := r.auth.Resolve(ctx)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	key, err := claim.KeyFromBytes(in.GetValue())
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	if err := r.reg.Create(ctx, caller, key); err != nil {
		return nil, toStatus(ctx, err)
	}
	return &emptypb.Empty{}, nil
}

func (r *rpcServer) RevokeClaim(ctx context.Context, in *wrapperspb.BytesValue) (*emptypb.Empty, error) {
	caller, err := r.auth.Resolve(ctx)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	key, err := claim.KeyFromBytes(in.GetValue())
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	if err := r.reg.Revoke(ctx, caller, key); err != nil {
		return nil, toStatus(ctx, err)
	}
	return &emptypb.Empty{}, nil
}

func (r *rpcServer) GetClaim(ctx context.Context, in *wrapperspb.BytesValue) (*structpb.Struct, error) {
	key, err := claim.KeyFromBytes(in.GetValue())
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	c, found, err := r.reg.Lookup(ctx, key)
	switch {
	case err != nil:
		return nil, toStatus(ctx, err)
	case !found:
		return nil, status.Error(codes.NotFound, claim.ErrNoSuchClaim.Error())
	}
	out, err := claimView(key, c)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func (r *rpcServer) Info(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	count, err := r.reg.Count(ctx)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	digest, err := r.reg.Digest(ctx)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	out, err := infoView(Info{Claims: count, Digest: digest, Version: r.version})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func (r *rpcServer) WatchClaims(_ *emptypb.Empty, stream ClaimService_WatchClaimsServer) error {
	if r.events == nil {
		return status.Error(codes.Unimplemented, "event streaming is disabled")
	}
	ctx := stream.Context()
	logger := logging.FromContext(ctx)
	sub := r.events.Subscribe(ctx)
	logger.Debug("new claims watcher")
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-r.done:
			return nil
		case ev, ok := <-sub:
			if !ok {
				return nil
			}
			view, err := eventView(ev)
			if err != nil {
				return status.Error(codes.Internal, err.Error())
			}
			if err := stream.Send(view); err != nil {
				logger.Debug("claims watcher gone", zap.Error(err))
				return err
			}
		}
	}
}

func toStatus(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated), errors.Is(err, claim.ErrInvalidIdentity):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, claim.ErrInvalidKey):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, claim.ErrAlreadyClaimed):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, claim.ErrNoSuchClaim):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, claim.ErrNotClaimOwner):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, claim.ErrStorageUnavailable):
		logging.FromContext(ctx).Warn("claim storage unavailable", zap.Error(err))
		return status.Error(codes.Unavailable, "claim storage unavailable, consider retrying")
	case errors.Is(err, claim.ErrCorruptClaim):
		logging.FromContext(ctx).Error("corrupt claim record", zap.Error(err))
		return status.Error(codes.Internal, "corrupt claim record")
	default:
		logging.FromContext(ctx).Warn("unknown error in claim registry", zap.Error(err))
		return status.Error(codes.Internal, "unknown error in claim registry")
	}
}
