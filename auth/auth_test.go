package auth_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/metadata"

	"github.com/poexist/poe/auth"
	"github.com/poexist/poe/claim"
)

func incoming(kv ...string) context.Context {
	return metadata.NewIncomingContext(context.Background(), metadata.Pairs(kv...))
}

func TestHeader(t *testing.T) {
	t.Parallel()
	a := auth.Header("X-Poe-Identity")

	id, err := a.Resolve(incoming("x-poe-identity", "alice"))
	require.NoError(t, err)
	require.Equal(t, claim.Identity("alice"), id)

	_, err = a.Resolve(incoming("x-other", "alice"))
	require.ErrorIs(t, err, auth.ErrUnauthenticated)

	_, err = a.Resolve(context.Background())
	require.ErrorIs(t, err, auth.ErrUnauthenticated)

	_, err = a.Resolve(incoming("x-poe-identity", "  "))
	require.ErrorIs(t, err, auth.ErrUnauthenticated)
}

func TestTokens(t *testing.T) {
	t.Parallel()
	a := auth.NewTokens(map[string]claim.Identity{"s3cret": "alice"})

	id, err := a.Resolve(incoming("authorization", "Bearer s3cret"))
	require.NoError(t, err)
	require.Equal(t, claim.Identity("alice"), id)

	id, err = a.Resolve(incoming("authorization", "bearer s3cret"))
	require.NoError(t, err)
	require.Equal(t, claim.Identity("alice"), id)

	_, err = a.Resolve(incoming("authorization", "Bearer wrong"))
	require.ErrorIs(t, err, auth.ErrUnauthenticated)

	_, err = a.Resolve(incoming("authorization", "Basic s3cret"))
	require.ErrorIs(t, err, auth.ErrUnauthenticated)
}

func TestLoadTokensFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	t.Run("valid", func(t *testing.T) {
		path := filepath.Join(dir, "tokens")
		content := "# identity token\nalice aaa\n\nbob bbb\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		tokens, err := auth.LoadTokensFile(path)
		require.NoError(t, err)
		require.Equal(t, 2, tokens.Len())
		id, err := tokens.Resolve(incoming("authorization", "Bearer bbb"))
		require.NoError(t, err)
		require.Equal(t, claim.Identity("bob"), id)
	})
	t.Run("malformed line", func(t *testing.T) {
		path := filepath.Join(dir, "malformed")
		require.NoError(t, os.WriteFile(path, []byte("alice\n"), 0o600))
		_, err := auth.LoadTokensFile(path)
		require.ErrorContains(t, err, ":1:")
	})
	t.Run("duplicated token", func(t *testing.T) {
		path := filepath.Join(dir, "dup")
		require.NoError(t, os.WriteFile(path, []byte("alice x\nbob x\n"), 0o600))
		_, err := auth.LoadTokensFile(path)
		require.ErrorContains(t, err, "duplicated")
	})
	t.Run("missing file", func(t *testing.T) {
		_, err := auth.LoadTokensFile(filepath.Join(dir, "nope"))
		require.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestChain(t *testing.T) {
	t.Parallel()
	tokens := auth.NewTokens(map[string]claim.Identity{"t": "alice"})
	a := auth.Chain(tokens, auth.Header("x-poe-identity"))

	id, err := a.Resolve(incoming("authorization", "Bearer t", "x-poe-identity", "bob"))
	require.NoError(t, err)
	require.Equal(t, claim.Identity("alice"), id)

	id, err = a.Resolve(incoming("x-poe-identity", "bob"))
	require.NoError(t, err)
	require.Equal(t, claim.Identity("bob"), id)

	_, err = a.Resolve(context.Background())
	require.ErrorIs(t, err, auth.ErrUnauthenticated)

	broken := errors.New("backend down")
	failing := auth.AuthenticatorFunc(func(context.Context) (claim.Identity, error) { return "", broken })
	_, err = auth.Chain(failing, tokens).Resolve(incoming("authorization", "Bearer t"))
	require.ErrorIs(t, err, broken)
}
