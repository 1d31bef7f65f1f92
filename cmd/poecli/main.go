// Command poecli talks to a poe daemon.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/poexist/poe/claim"
	"github.com/poexist/poe/logging"
	"github.com/poexist/poe/rpc"
)

const dialTimeout = 10 * time.Second

func main() {
	app := &cli.App{
		Name:  "poecli",
		Usage: "Register and inspect proof-of-existence claims.",
		Flags: ConnectionFlags,
		Commands: []*cli.Command{
			HashCmd,
			CreateCmd,
			RevokeCmd,
			GetCmd,
			InfoCmd,
			WatchCmd,
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := app.RunContext(ctx, os.Args); err != nil {
		logging.New(zap.InfoLevel, logging.Options{}).Fatal("poecli failed", zap.Error(err))
	}
}

func getClient(cCtx *cli.Context) (*rpc.Client, error) {
	client, err := rpc.Dial(cCtx.Context, cCtx.String(AddressFlag.Name), rpc.DialOptions{
		Timeout: dialTimeout,
		Credentials: rpc.Credentials{
			Identity:       cCtx.String(IdentityFlag.Name),
			IdentityHeader: cCtx.String(IdentityHeaderFlag.Name),
			Token:          cCtx.String(TokenFlag.Name),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to daemon: %w", err)
	}
	return client, nil
}

func callContext(cCtx *cli.Context) (context.Context, context.CancelFunc) {
	if timeout := cCtx.Duration(TimeoutFlag.Name); timeout > 0 {
		return context.WithTimeout(cCtx.Context, timeout)
	}
	return context.WithCancel(cCtx.Context)
}

// keyArg reads the claim key from --file or the first argument.
func keyArg(cCtx *cli.Context) (claim.Key, error) {
	if path := cCtx.String(FileFlag.Name); path != "" {
		return hashFile(path)
	}
	if cCtx.NArg() != 1 {
		return claim.Key{}, errors.New("expected a key (hex or CID) or --file")
	}
	return claim.ParseKey(cCtx.Args().First())
}

func hashFile(path string) (claim.Key, error) {
	f, err := os.Open(path)
	if err != nil {
		return claim.Key{}, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return claim.Key{}, fmt.Errorf("reading file: %w", err)
	}
	return claim.HashContent(data), nil
}

func printClaim(key claim.Key, c claim.Claim) {
	fmt.Printf("key:           %s\n", key)
	fmt.Printf("cid:           %s\n", key.CID())
	fmt.Printf("owner:         %s\n", c.Owner)
	fmt.Printf("registered at: %d\n", c.RegisteredAt)
}
