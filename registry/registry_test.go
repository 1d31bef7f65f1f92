package registry_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/errgroup"

	"github.com/poexist/poe/claim"
	"github.com/poexist/poe/clock"
	"github.com/poexist/poe/events"
	"github.com/poexist/poe/logging"
	"github.com/poexist/poe/registry"
	"github.com/poexist/poe/registry/mocks"
	"github.com/poexist/poe/store"
)

const (
	alice = claim.Identity("alice")
	bob   = claim.Identity("bob")
)

func testContext(t *testing.T) context.Context {
	return logging.NewContext(context.Background(), zaptest.NewLogger(t))
}

func stores(t *testing.T) map[string]registry.Store {
	db, err := store.OpenLevelDB(t.TempDir(), store.WithSync(false))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, db.Close()) })
	return map[string]registry.Store{
		"memory":  store.NewMemory(16),
		"leveldb": db,
	}
}

type recordingSink struct {
	events []claim.Event
}

func (s *recordingSink) Emit(_ context.Context, ev claim.Event) error {
	s.events = append(s.events, ev)
	return nil
}

func TestScenario(t *testing.T) {
	t.Parallel()
	for name, st := range stores(t) {
		st := st
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := testContext(t)
			height := clock.NewHeight(100)
			sink := &recordingSink{}
			reg := registry.New(st, height, sink)
			h1 := claim.HashContent([]byte("H1"))

			// 1. alice claims H1
			require.NoError(t, reg.Create(ctx, alice, h1))
			c, found, err := reg.Lookup(ctx, h1)
			require.NoError(t, err)
			require.True(t, found)
			require.Equal(t, claim.Claim{Owner: alice, RegisteredAt: 100}, c)

			// 2. bob cannot claim it again
			height.Advance()
			require.ErrorIs(t, reg.Create(ctx, bob, h1), claim.ErrAlreadyClaimed)
			c, _, err = reg.Lookup(ctx, h1)
			require.NoError(t, err)
			require.Equal(t, claim.Claim{Owner: alice, RegisteredAt: 100}, c)

			// 3. bob cannot revoke alice's claim
			require.ErrorIs(t, reg.Revoke(ctx, bob, h1), claim.ErrNotClaimOwner)

			// 4. alice revokes
			require.NoError(t, reg.Revoke(ctx, alice, h1))
			_, found, err = reg.Lookup(ctx, h1)
			require.NoError(t, err)
			require.False(t, found)

			// 5. revoking again fails
			require.ErrorIs(t, reg.Revoke(ctx, alice, h1), claim.ErrNoSuchClaim)

			// 6. bob claims the freed key at a fresh height
			height.Advance()
			require.NoError(t, reg.Create(ctx, bob, h1))
			c, found, err = reg.Lookup(ctx, h1)
			require.NoError(t, err)
			require.True(t, found)
			require.Equal(t, claim.Claim{Owner: bob, RegisteredAt: 102}, c)

			require.Equal(t, []claim.Event{
				claim.Created(alice, h1),
				claim.Revoked(alice, h1),
				claim.Created(bob, h1),
			}, sink.events)
		})
	}
}

func TestOwnerCanReclaim(t *testing.T) {
	t.Parallel()
	ctx := testContext(t)
	reg := registry.New(store.NewMemory(1), clock.NewCounter(0), nil)
	key := claim.HashContent([]byte("doc"))

	require.NoError(t, reg.Create(ctx, alice, key))
	first, _, err := reg.Lookup(ctx, key)
	require.NoError(t, err)
	require.NoError(t, reg.Revoke(ctx, alice, key))
	require.NoError(t, reg.Create(ctx, alice, key))
	second, _, err := reg.Lookup(ctx, key)
	require.NoError(t, err)

	require.Equal(t, alice, second.Owner)
	require.Greater(t, second.RegisteredAt, first.RegisteredAt)
}

func TestRejectsInvalidIdentity(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	// nothing may touch the store or the clock
	reg := registry.New(mocks.NewMockStore(ctrl), mocks.NewMockClock(ctrl), mocks.NewMockEventSink(ctrl))
	require.ErrorIs(t, reg.Create(context.Background(), "", claim.Key{}), claim.ErrInvalidIdentity)
	require.ErrorIs(t, reg.Revoke(context.Background(), "", claim.Key{}), claim.ErrInvalidIdentity)
}

func TestConcurrentCreateHasSingleWinner(t *testing.T) {
	t.Parallel()
	for name, st := range stores(t) {
		st := st
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := testContext(t)
			broadcaster := events.NewBroadcaster(128)
			subCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			sub := broadcaster.Subscribe(subCtx)

			reg := registry.New(st, clock.NewCounter(0), broadcaster, registry.WithConfig(registry.Config{LockStripes: 4}))
			key := claim.HashContent([]byte("contested"))

			const n = 64
			var wins, rejected atomic.Int32
			var eg errgroup.Group
			for i := 0; i < n; i++ {
				caller := claim.Identity(fmt.Sprintf("caller-%d", i))
				eg.Go(func() error {
					err := reg.Create(ctx, caller, key)
					switch {
					case err == nil:
						wins.Add(1)
					case errors.Is(err, claim.ErrAlreadyClaimed):
						rejected.Add(1)
					default:
						return err
					}
					return nil
				})
			}
			require.NoError(t, eg.Wait())
			require.EqualValues(t, 1, wins.Load())
			require.EqualValues(t, n-1, rejected.Load())

			c, found, err := reg.Lookup(ctx, key)
			require.NoError(t, err)
			require.True(t, found)
			ev := <-sub
			require.Equal(t, claim.Created(c.Owner, key), ev)
			require.Empty(t, sub)
		})
	}
}

func TestConcurrentRevokeHasSingleWinner(t *testing.T) {
	t.Parallel()
	ctx := testContext(t)
	reg := registry.New(store.NewMemory(8), clock.NewCounter(0), nil)
	key := claim.HashContent([]byte("revoked"))
	require.NoError(t, reg.Create(ctx, alice, key))

	var wins atomic.Int32
	var eg errgroup.Group
	for i := 0; i < 32; i++ {
		caller := alice
		if i%2 == 1 {
			caller = bob
		}
		eg.Go(func() error {
			err := reg.Revoke(ctx, caller, key)
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, claim.ErrNoSuchClaim), errors.Is(err, claim.ErrNotClaimOwner):
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, eg.Wait())
	require.EqualValues(t, 1, wins.Load())
}

func TestDistinctKeysConcurrently(t *testing.T) {
	t.Parallel()
	ctx := testContext(t)
	reg := registry.New(store.NewMemory(8), clock.NewCounter(0), nil)

	var eg errgroup.Group
	for i := 0; i < 16; i++ {
		i := i
		eg.Go(func() error {
			for j := 0; j < 50; j++ {
				key := claim.HashContent([]byte(fmt.Sprintf("%d-%d", i, j)))
				if err := reg.Create(ctx, alice, key); err != nil {
					return err
				}
				if j%2 == 0 {
					if err := reg.Revoke(ctx, alice, key); err != nil {
						return err
					}
				}
			}
			return nil
		})
	}
	require.NoError(t, eg.Wait())
	count, err := reg.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 16*25, count)
}

func TestSinkFailureDoesNotUndoMutation(t *testing.T) {
	t.Parallel()
	ctx := testContext(t)
	ctrl := gomock.NewController(t)
	sink := mocks.NewMockEventSink(ctrl)
	key := claim.HashContent([]byte("doc"))

	reg := registry.New(store.NewMemory(1), clock.NewHeight(1), sink)
	sink.EXPECT().Emit(gomock.Any(), claim.Created(alice, key)).Return(errors.New("sink down"))
	require.NoError(t, reg.Create(ctx, alice, key))

	_, found, err := reg.Lookup(ctx, key)
	require.NoError(t, err)
	require.True(t, found)
}

func TestEmitAfterCommit(t *testing.T) {
	t.Parallel()
	ctx := testContext(t)
	ctrl := gomock.NewController(t)
	st := store.NewMemory(1)
	sink := mocks.NewMockEventSink(ctrl)
	key := claim.HashContent([]byte("doc"))
	reg := registry.New(st, clock.NewHeight(3), sink)

	gomock.InOrder(
		sink.EXPECT().Emit(gomock.Any(), claim.Created(alice, key)).DoAndReturn(
			func(ctx context.Context, ev claim.Event) error {
				c, found, err := st.Get(ctx, key)
				require.NoError(t, err)
				require.True(t, found)
				require.Equal(t, claim.Claim{Owner: alice, RegisteredAt: 3}, c)
				return nil
			}),
		sink.EXPECT().Emit(gomock.Any(), claim.Revoked(alice, key)).DoAndReturn(
			func(ctx context.Context, ev claim.Event) error {
				_, found, err := st.Get(ctx, key)
				require.NoError(t, err)
				require.False(t, found)
				return nil
			}),
	)
	require.NoError(t, reg.Create(ctx, alice, key))
	require.NoError(t, reg.Revoke(ctx, alice, key))
}

func TestFailedOperationsEmitNothing(t *testing.T) {
	t.Parallel()
	ctx := testContext(t)
	ctrl := gomock.NewController(t)
	sink := mocks.NewMockEventSink(ctrl)
	key := claim.HashContent([]byte("doc"))
	reg := registry.New(store.NewMemory(1), clock.NewHeight(0), sink)

	sink.EXPECT().Emit(gomock.Any(), claim.Created(alice, key)).Return(nil).Times(1)
	require.NoError(t, reg.Create(ctx, alice, key))
	require.ErrorIs(t, reg.Create(ctx, bob, key), claim.ErrAlreadyClaimed)
	require.ErrorIs(t, reg.Revoke(ctx, bob, key), claim.ErrNotClaimOwner)
	require.ErrorIs(t, reg.Revoke(ctx, bob, claim.Key{9}), claim.ErrNoSuchClaim)
}

func TestStorageFailures(t *testing.T) {
	t.Parallel()
	errDisk := errors.New("disk on fire")
	key := claim.HashContent([]byte("doc"))

	t.Run("create check fails", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		st := mocks.NewMockStore(ctrl)
		st.EXPECT().Get(gomock.Any(), key).Return(claim.Claim{}, false, errDisk)
		reg := registry.New(st, mocks.NewMockClock(ctrl), mocks.NewMockEventSink(ctrl))

		err := reg.Create(testContext(t), alice, key)
		require.ErrorIs(t, err, claim.ErrStorageUnavailable)
		require.ErrorIs(t, err, errDisk)
	})
	t.Run("create put fails", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		st := mocks.NewMockStore(ctrl)
		clk := mocks.NewMockClock(ctrl)
		st.EXPECT().Get(gomock.Any(), key).Return(claim.Claim{}, false, nil)
		clk.EXPECT().Now().Return(uint64(5))
		st.EXPECT().Put(gomock.Any(), key, claim.Claim{Owner: alice, RegisteredAt: 5}).Return(errDisk)
		reg := registry.New(st, clk, mocks.NewMockEventSink(ctrl))

		require.ErrorIs(t, reg.Create(testContext(t), alice, key), claim.ErrStorageUnavailable)
	})
	t.Run("revoke delete fails", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		st := mocks.NewMockStore(ctrl)
		st.EXPECT().Get(gomock.Any(), key).Return(claim.Claim{Owner: alice, RegisteredAt: 1}, true, nil)
		st.EXPECT().Delete(gomock.Any(), key).Return(errDisk)
		reg := registry.New(st, mocks.NewMockClock(ctrl), mocks.NewMockEventSink(ctrl))

		require.ErrorIs(t, reg.Revoke(testContext(t), alice, key), claim.ErrStorageUnavailable)
	})
	t.Run("lookup fails", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		st := mocks.NewMockStore(ctrl)
		st.EXPECT().Get(gomock.Any(), key).Return(claim.Claim{}, false, errDisk)
		reg := registry.New(st, mocks.NewMockClock(ctrl), nil)

		_, _, err := reg.Lookup(testContext(t), key)
		require.ErrorIs(t, err, claim.ErrStorageUnavailable)
	})
	t.Run("corrupt record is not reported as unavailable", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		st := mocks.NewMockStore(ctrl)
		corrupt := fmt.Errorf("claim %s: %w", key, claim.ErrCorruptClaim)
		st.EXPECT().Get(gomock.Any(), key).Return(claim.Claim{}, false, corrupt)
		reg := registry.New(st, mocks.NewMockClock(ctrl), nil)

		_, _, err := reg.Lookup(testContext(t), key)
		require.ErrorIs(t, err, claim.ErrCorruptClaim)
		require.NotErrorIs(t, err, claim.ErrStorageUnavailable)
	})
	t.Run("already wrapped error is not wrapped twice", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		st := mocks.NewMockStore(ctrl)
		wrapped := fmt.Errorf("%w: closed", claim.ErrStorageUnavailable)
		st.EXPECT().Get(gomock.Any(), key).Return(claim.Claim{}, false, wrapped)
		reg := registry.New(st, mocks.NewMockClock(ctrl), nil)

		_, _, err := reg.Lookup(testContext(t), key)
		require.ErrorIs(t, err, wrapped)
		require.Equal(t, "looking up claim: "+wrapped.Error(), err.Error())
	})
}
