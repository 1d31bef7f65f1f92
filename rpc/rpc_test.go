package rpc_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/poexist/poe/auth"
	"github.com/poexist/poe/claim"
	"github.com/poexist/poe/clock"
	"github.com/poexist/poe/events"
	"github.com/poexist/poe/logging"
	"github.com/poexist/poe/registry"
	"github.com/poexist/poe/rpc"
	"github.com/poexist/poe/store"
)

type testService struct {
	conn   *grpc.ClientConn
	height *clock.Height
	bus    *events.Broadcaster
}

func (s *testService) client(identity string) *rpc.Client {
	return rpc.NewClient(s.conn, rpc.Credentials{Identity: identity})
}

func spawnService(t *testing.T, authenticator auth.Authenticator) *testService {
	t.Helper()
	logger := zaptest.NewLogger(t)
	height := clock.NewHeight(1)
	bus := events.NewBroadcaster(16)
	reg := registry.New(store.NewMemory(4), height, bus)

	listener := bufconn.Listen(1024 * 1024)
	server := grpc.NewServer(grpc.UnaryInterceptor(
		func(ctx context.Context, req interface{}, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
			return handler(logging.NewContext(ctx, logger), req)
		},
	))
	rpc.RegisterClaimServiceServer(server, rpc.NewServer(reg, authenticator,
		rpc.WithEvents(bus),
		rpc.WithVersion("test"),
	))
	go func() { _ = server.Serve(listener) }()
	t.Cleanup(server.Stop)

	conn, err := grpc.DialContext(context.Background(), "bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) {
			return listener.Dial()
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, conn.Close()) })
	return &testService{conn: conn, height: height, bus: bus}
}

func TestCreateLookupRevoke(t *testing.T) {
	t.Parallel()
	svc := spawnService(t, auth.Header(rpc.DefaultIdentityHeader))
	ctx := context.Background()
	alice := svc.client("alice")
	bob := svc.client("bob")
	key := claim.HashContent([]byte("document"))

	_, err := alice.Get(ctx, key)
	require.ErrorIs(t, err, claim.ErrNoSuchClaim)

	svc.height.Advance()
	require.NoError(t, alice.Create(ctx, key))

	got, err := bob.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, claim.Claim{Owner: "alice", RegisteredAt: 2}, got)

	require.ErrorIs(t, bob.Create(ctx, key), claim.ErrAlreadyClaimed)
	require.ErrorIs(t, bob.Revoke(ctx, key), claim.ErrNotClaimOwner)

	require.NoError(t, alice.Revoke(ctx, key))
	_, err = alice.Get(ctx, key)
	require.ErrorIs(t, err, claim.ErrNoSuchClaim)
	require.ErrorIs(t, alice.Revoke(ctx, key), claim.ErrNoSuchClaim)

	require.NoError(t, bob.Create(ctx, key))
	got, err = alice.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, claim.Identity("bob"), got.Owner)
}

func TestUnauthenticatedCallsAreRejected(t *testing.T) {
	t.Parallel()
	svc := spawnService(t, auth.Header(rpc.DefaultIdentityHeader))
	ctx := context.Background()
	anonymous := svc.client("")
	key := claim.HashContent([]byte("document"))

	require.ErrorIs(t, anonymous.Create(ctx, key), auth.ErrUnauthenticated)
	require.ErrorIs(t, anonymous.Revoke(ctx, key), auth.ErrUnauthenticated)

	// lookups are public
	_, err := anonymous.Get(ctx, key)
	require.ErrorIs(t, err, claim.ErrNoSuchClaim)
}

func TestBearerTokens(t *testing.T) {
	t.Parallel()
	tokens := auth.NewTokens(map[string]claim.Identity{"s3cr3t": "carol"})
	svc := spawnService(t, tokens)
	ctx := context.Background()
	key := claim.HashContent([]byte("document"))

	wrong := rpc.NewClient(svc.conn, rpc.Credentials{Token: "guess"})
	require.ErrorIs(t, wrong.Create(ctx, key), auth.ErrUnauthenticated)

	carol := rpc.NewClient(svc.conn, rpc.Credentials{Token: "s3cr3t"})
	require.NoError(t, carol.Create(ctx, key))
	got, err := carol.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, claim.Identity("carol"), got.Owner)
}

func TestMalformedKey(t *testing.T) {
	t.Parallel()
	svc := spawnService(t, auth.Header(rpc.DefaultIdentityHeader))
	raw := rpc.NewClaimServiceClient(svc.conn)

	_, err := raw.GetClaim(context.Background(), wrapperspb.Bytes([]byte{1, 2, 3}))
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestInfo(t *testing.T) {
	t.Parallel()
	svc := spawnService(t, auth.Header(rpc.DefaultIdentityHeader))
	ctx := context.Background()
	alice := svc.client("alice")

	empty, err := alice.Info(ctx)
	require.NoError(t, err)
	require.Zero(t, empty.Claims)
	require.Equal(t, "test", empty.Version)

	require.NoError(t, alice.Create(ctx, claim.HashContent([]byte("a"))))
	require.NoError(t, alice.Create(ctx, claim.HashContent([]byte("b"))))

	info, err := alice.Info(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, info.Claims)
	require.NotEqual(t, empty.Digest, info.Digest)
}

func TestWatchClaims(t *testing.T) {
	t.Parallel()
	svc := spawnService(t, auth.Header(rpc.DefaultIdentityHeader))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	alice := svc.client("alice")
	key := claim.HashContent([]byte("document"))

	received := make(chan claim.Event, 2)
	watchErr := make(chan error, 1)
	go func() {
		watchErr <- alice.Watch(ctx, func(ev claim.Event) error {
			received <- ev
			return nil
		})
	}()
	require.Eventually(t, func() bool { return svc.bus.Subscribers() == 1 }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, alice.Create(ctx, key))
	require.NoError(t, alice.Revoke(ctx, key))

	require.Equal(t, claim.Created("alice", key), <-received)
	require.Equal(t, claim.Revoked("alice", key), <-received)

	cancel()
	require.NoError(t, <-watchErr)
}

func TestDialTimeoutWithoutListener(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := lis.Addr().String()
	require.NoError(t, lis.Close())

	start := time.Now()
	_, err = rpc.Dial(context.Background(), addr, rpc.DialOptions{Timeout: 200 * time.Millisecond})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), 5*time.Second)
}
