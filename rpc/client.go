package rpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/poexist/poe/auth"
	"github.com/poexist/poe/claim"
)

const DefaultIdentityHeader = "x-poe-identity"

// Credentials are attached to every call of a Client.
// Identity is sent in IdentityHeader, Token as a bearer token.
type Credentials struct {
	Identity       string
	IdentityHeader string
	Token          string
}

func (c Credentials) attach(ctx context.Context) context.Context {
	var kv []string
	if c.Identity != "" {
		header := c.IdentityHeader
		if header == "" {
			header = DefaultIdentityHeader
		}
		kv = append(kv, header, c.Identity)
	}
	if c.Token != "" {
		kv = append(kv, "authorization", "Bearer "+c.Token)
	}
	if len(kv) == 0 {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, kv...)
}

// Client talks to a claim service and translates its errors
// back to the claim package sentinel errors.
type Client struct {
	cc     *grpc.ClientConn
	client ClaimServiceClient
	creds  Credentials
}

type DialOptions struct {
	// When non-zero, Dial blocks until connected or Timeout elapses.
	Timeout     time.Duration
	Credentials Credentials
}

func Dial(ctx context.Context, target string, opts DialOptions) (*Client, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}
	dialOpts := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	if opts.Timeout > 0 {
		dialOpts = append(dialOpts, grpc.WithBlock())
	}
	cc, err := grpc.DialContext(ctx, target, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", target, err)
	}
	c := NewClient(cc, opts.Credentials)
	c.cc = cc
	return c, nil
}

// NewClient wraps an existing connection. Closing the client does not close it.
func NewClient(cc grpc.ClientConnInterface, creds Credentials) *Client {
	return &Client{client: NewClaimServiceClient(cc), creds: creds}
}

func (c *Client) Close() error {
	if c.cc == nil {
		return nil
	}
	return c.cc.Close()
}

func (c *Client) Create(ctx context.Context, key claim.Key) error {
	_, err := c.client.CreateClaim(c.creds.attach(ctx), wrapperspb.Bytes(key.Bytes()))
	return mapRPC(err)
}

func (c *Client) Revoke(ctx context.Context, key claim.Key) error {
	_, err := c.client.RevokeClaim(c.creds.attach(ctx), wrapperspb.Bytes(key.Bytes()))
	return mapRPC(err)
}

// Get returns the claim on key or claim.ErrNoSuchClaim.
func (c *Client) Get(ctx context.Context, key claim.Key) (claim.Claim, error) {
	view, err := c.client.GetClaim(c.creds.attach(ctx), wrapperspb.Bytes(key.Bytes()))
	if err != nil {
		return claim.Claim{}, mapRPC(err)
	}
	got, cl, err := claimFromView(view)
	if err != nil {
		return claim.Claim{}, fmt.Errorf("decoding claim: %w", err)
	}
	if got != key {
		return claim.Claim{}, fmt.Errorf("server returned claim %s for %s", got, key)
	}
	return cl, nil
}

func (c *Client) Info(ctx context.Context) (Info, error) {
	view, err := c.client.Info(c.creds.attach(ctx), &emptypb.Empty{})
	if err != nil {
		return Info{}, mapRPC(err)
	}
	return infoFromView(view)
}

// Watch calls fn for every event published by the server until ctx is done,
// the stream fails or fn returns an error.
func (c *Client) Watch(ctx context.Context, fn func(claim.Event) error) error {
	stream, err := c.client.WatchClaims(c.creds.attach(ctx), &emptypb.Empty{})
	if err != nil {
		return mapRPC(err)
	}
	for {
		view, err := stream.Recv()
		switch {
		case errors.Is(err, io.EOF):
			return nil
		case status.Code(err) == codes.Canceled && ctx.Err() != nil:
			return nil
		case err != nil:
			return mapRPC(err)
		}
		ev, err := eventFromView(view)
		if err != nil {
			return fmt.Errorf("decoding event: %w", err)
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
}

func mapRPC(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	var sentinel error
	switch st.Code() {
	case codes.AlreadyExists:
		sentinel = claim.ErrAlreadyClaimed
	case codes.NotFound:
		sentinel = claim.ErrNoSuchClaim
	case codes.PermissionDenied:
		sentinel = claim.ErrNotClaimOwner
	case codes.Unauthenticated:
		sentinel = auth.ErrUnauthenticated
	case codes.InvalidArgument:
		sentinel = claim.ErrInvalidKey
	case codes.Unavailable:
		sentinel = claim.ErrStorageUnavailable
	default:
		return err
	}
	return fmt.Errorf("%w (%s)", sentinel, st.Message())
}
