// Package rpc provides definition and implementation of the gRPC claim service
// through which clients create, revoke, query and watch proof-of-existence claims.
package rpc
