/*
Package registry provides the proof-of-existence claim registry.

The registry maps claim keys to the identity that registered them and the logical time
of registration. A key can be claimed by exactly one identity at a time; only that
identity can revoke the claim, after which the key is free to be claimed again.

Check-then-act sequences are serialized per key by a fixed array of lock stripes, so
operations on keys that land on different stripes never wait for each other. Events are
emitted to the configured sink only after the mutation is committed to the store and
visible to Lookup.
*/
package registry
