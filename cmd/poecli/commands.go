package main

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/poexist/poe/claim"
)

var HashCmd = &cli.Command{
	Name:      "hash",
	Usage:     "print the claim key of a file",
	ArgsUsage: "<file>",
	Action: func(cCtx *cli.Context) error {
		if cCtx.NArg() != 1 {
			return errors.New("expected exactly one file")
		}
		key, err := hashFile(cCtx.Args().First())
		if err != nil {
			return err
		}
		fmt.Printf("%s\n%s\n", key, key.CID())
		return nil
	},
}

var CreateCmd = &cli.Command{
	Name:      "create",
	Usage:     "claim a key",
	ArgsUsage: "<key>",
	Flags:     []cli.Flag{FileFlag},
	Action: func(cCtx *cli.Context) error {
		key, err := keyArg(cCtx)
		if err != nil {
			return err
		}
		client, err := getClient(cCtx)
		if err != nil {
			return err
		}
		defer client.Close()
		ctx, cancel := callContext(cCtx)
		defer cancel()

		if err := client.Create(ctx, key); err != nil {
			return fmt.Errorf("creating claim: %w", err)
		}
		c, err := client.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("reading claim back: %w", err)
		}
		printClaim(key, c)
		return nil
	},
}

var RevokeCmd = &cli.Command{
	Name:      "revoke",
	Usage:     "revoke an owned claim",
	ArgsUsage: "<key>",
	Flags:     []cli.Flag{FileFlag},
	Action: func(cCtx *cli.Context) error {
		key, err := keyArg(cCtx)
		if err != nil {
			return err
		}
		client, err := getClient(cCtx)
		if err != nil {
			return err
		}
		defer client.Close()
		ctx, cancel := callContext(cCtx)
		defer cancel()

		if err := client.Revoke(ctx, key); err != nil {
			return fmt.Errorf("revoking claim: %w", err)
		}
		fmt.Printf("revoked %s\n", key)
		return nil
	},
}

var GetCmd = &cli.Command{
	Name:      "get",
	Usage:     "look up the claim on a key",
	ArgsUsage: "<key>",
	Flags:     []cli.Flag{FileFlag},
	Action: func(cCtx *cli.Context) error {
		key, err := keyArg(cCtx)
		if err != nil {
			return err
		}
		client, err := getClient(cCtx)
		if err != nil {
			return err
		}
		defer client.Close()
		ctx, cancel := callContext(cCtx)
		defer cancel()

		c, err := client.Get(ctx, key)
		switch {
		case errors.Is(err, claim.ErrNoSuchClaim):
			fmt.Printf("%s is not claimed\n", key)
			return cli.Exit("", 2)
		case err != nil:
			return fmt.Errorf("getting claim: %w", err)
		}
		printClaim(key, c)
		return nil
	},
}

var InfoCmd = &cli.Command{
	Name:  "info",
	Usage: "show registry statistics",
	Action: func(cCtx *cli.Context) error {
		client, err := getClient(cCtx)
		if err != nil {
			return err
		}
		defer client.Close()
		ctx, cancel := callContext(cCtx)
		defer cancel()

		info, err := client.Info(ctx)
		if err != nil {
			return fmt.Errorf("getting info: %w", err)
		}
		fmt.Printf("version: %s\n", info.Version)
		fmt.Printf("claims:  %d\n", info.Claims)
		fmt.Printf("digest:  %x\n", info.Digest)
		return nil
	},
}

var WatchCmd = &cli.Command{
	Name:  "watch",
	Usage: "print claim events as they happen",
	Action: func(cCtx *cli.Context) error {
		client, err := getClient(cCtx)
		if err != nil {
			return err
		}
		defer client.Close()

		return client.Watch(cCtx.Context, func(ev claim.Event) error {
			fmt.Printf("%s\t%s\t%s\n", ev.Kind, ev.Who, ev.Claim)
			return nil
		})
	},
}
