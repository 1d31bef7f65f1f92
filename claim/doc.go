/*
Package claim defines the proof-of-existence domain: claim keys (content hashes),
caller identities, claim records, registry events and the registry error taxonomy.

A claim binds a key to the identity that registered it first and to the logical time
(for example a block height) at which it was registered. Claims are write-once: they are
created by their owner and can only be removed by that same owner.
*/
package claim
