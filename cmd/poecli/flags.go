package main

import "github.com/urfave/cli/v2"

var AddressFlag = &cli.StringFlag{
	Name:    "address",
	Aliases: []string{"a"},
	Usage:   "address of a running poe daemon",
	Value:   "localhost:50002",
	EnvVars: []string{"POE_ADDRESS"},
}

var IdentityFlag = &cli.StringFlag{
	Name:    "identity",
	Aliases: []string{"i"},
	Usage:   "identity passed in the identity header (trusted proxies only)",
	EnvVars: []string{"POE_IDENTITY"},
}

var IdentityHeaderFlag = &cli.StringFlag{
	Name:    "identity-header",
	Usage:   "metadata header carrying the identity",
	Value:   "x-poe-identity",
	EnvVars: []string{"POE_IDENTITY_HEADER"},
}

var TokenFlag = &cli.StringFlag{
	Name:    "token",
	Aliases: []string{"t"},
	Usage:   "bearer token identifying the caller",
	EnvVars: []string{"POE_TOKEN"},
}

var TimeoutFlag = &cli.DurationFlag{
	Name:  "timeout",
	Usage: "timeout of a single call",
	Value: 0,
}

var FileFlag = &cli.StringFlag{
	Name:    "file",
	Aliases: []string{"f"},
	Usage:   "claim the sha256 of this file instead of passing a key",
}

var ConnectionFlags = []cli.Flag{
	AddressFlag,
	IdentityFlag,
	IdentityHeaderFlag,
	TokenFlag,
	TimeoutFlag,
}
