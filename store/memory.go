package store

import (
	"context"
	"encoding/binary"
	"sort"
	"sync"

	"github.com/poexist/poe/claim"
)

type memoryShard struct {
	mu     sync.RWMutex
	claims map[claim.Key]claim.Claim
}

// Memory is a volatile store keeping claims in a sharded map.
type Memory struct {
	shards []memoryShard
}

func NewMemory(shards int) *Memory {
	if shards < 1 {
		shards = 1
	}
	m := &Memory{shards: make([]memoryShard, shards)}
	for i := range m.shards {
		m.shards[i].claims = make(map[claim.Key]claim.Claim)
	}
	return m
}

func (m *Memory) shard(key claim.Key) *memoryShard {
	return &m.shards[binary.BigEndian.Uint32(key[4:8])%uint32(len(m.shards))]
}

func (m *Memory) Get(_ context.Context, key claim.Key) (claim.Claim, bool, error) {
	s := m.shard(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.claims[key]
	return c, ok, nil
}

func (m *Memory) Put(_ context.Context, key claim.Key, c claim.Claim) error {
	s := m.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.claims[key] = c
	return nil
}

func (m *Memory) Delete(_ context.Context, key claim.Key) error {
	s := m.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.claims, key)
	return nil
}

type entry struct {
	key   claim.Key
	claim claim.Claim
}

func (m *Memory) ForEach(ctx context.Context, fn func(claim.Key, claim.Claim) error) error {
	var entries []entry
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.RLock()
		for k, c := range s.claims {
			entries = append(entries, entry{k, c})
		}
		s.mu.RUnlock()
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].key.Compare(entries[j].key) < 0
	})

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(e.key, e.claim); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) Close() error {
	return nil
}
