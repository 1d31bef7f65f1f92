// Package auth resolves callers of the claim service to identities.
//
// Authenticators only read request metadata: identities are established by an
// authenticating proxy (Header) or by shared bearer tokens (Tokens).
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/grpc/metadata"

	"github.com/poexist/poe/claim"
)

var ErrUnauthenticated = errors.New("unauthenticated")

type Authenticator interface {
	Resolve(ctx context.Context) (claim.Identity, error)
}

type AuthenticatorFunc func(ctx context.Context) (claim.Identity, error)

func (f AuthenticatorFunc) Resolve(ctx context.Context) (claim.Identity, error) {
	return f(ctx)
}

func firstValue(ctx context.Context, name string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get(name)
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

type header struct {
	name string
}

// Header trusts the identity found in the named metadata header.
// It must only be used behind a proxy that authenticates callers and
// overwrites the header.
func Header(name string) Authenticator {
	return &header{name: strings.ToLower(name)}
}

func (h *header) Resolve(ctx context.Context) (claim.Identity, error) {
	id := claim.Identity(firstValue(ctx, h.name))
	if !id.Valid() {
		return "", fmt.Errorf("%w: missing %s header", ErrUnauthenticated, h.name)
	}
	return id, nil
}

type chain []Authenticator

// Chain tries authenticators in order. The first one that does not fail with
// ErrUnauthenticated decides.
func Chain(authenticators ...Authenticator) Authenticator {
	return chain(authenticators)
}

func (c chain) Resolve(ctx context.Context) (claim.Identity, error) {
	for _, a := range c {
		id, err := a.Resolve(ctx)
		if errors.Is(err, ErrUnauthenticated) {
			continue
		}
		return id, err
	}
	return "", fmt.Errorf("%w: no credentials accepted", ErrUnauthenticated)
}
