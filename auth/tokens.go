package auth

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/poexist/poe/claim"
)

const bearerPrefix = "bearer "

// Tokens maps bearer tokens passed in the authorization header to identities.
type Tokens struct {
	identities map[string]claim.Identity
}

func NewTokens(identities map[string]claim.Identity) *Tokens {
	return &Tokens{identities: identities}
}

// LoadTokensFile reads a file of "<identity> <token>" lines.
// Empty lines and lines starting with # are ignored.
func LoadTokensFile(path string) (*Tokens, error) {
	f, err := os.Open(path) //#nosec G304
	if err != nil {
		return nil, fmt.Errorf("opening tokens file: %w", err)
	}
	defer f.Close()

	identities := make(map[string]claim.Identity)
	scanner := bufio.NewScanner(f)
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) != 2 {
			return nil, fmt.Errorf("%s:%d: expected \"<identity> <token>\"", path, line)
		}
		if _, ok := identities[fields[1]]; ok {
			return nil, fmt.Errorf("%s:%d: duplicated token", path, line)
		}
		identities[fields[1]] = claim.Identity(fields[0])
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading tokens file: %w", err)
	}
	return NewTokens(identities), nil
}

func (t *Tokens) Len() int {
	return len(t.identities)
}

func (t *Tokens) Resolve(ctx context.Context) (claim.Identity, error) {
	value := firstValue(ctx, "authorization")
	if len(value) <= len(bearerPrefix) || !strings.EqualFold(value[:len(bearerPrefix)], bearerPrefix) {
		return "", fmt.Errorf("%w: missing bearer token", ErrUnauthenticated)
	}
	id, ok := t.identities[strings.TrimSpace(value[len(bearerPrefix):])]
	if !ok {
		return "", fmt.Errorf("%w: unknown token", ErrUnauthenticated)
	}
	return id, nil
}
