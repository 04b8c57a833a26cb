package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Memory is an in-process LRU whose entries expire after a fixed TTL.
type Memory struct {
	lru *expirable.LRU[string, []byte]
}

// NewMemory returns an LRU holding at most size entries.
func NewMemory(size int, ttl time.Duration) *Memory {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{lru: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, ok := m.lru.Get(key)
	recordLookup(ctx, BackendMemory, ok)
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *Memory) Set(_ context.Context, key string, val []byte) error {
	m.lru.Add(key, append([]byte(nil), val...))
	return nil
}

// Len reports the number of live entries.
func (m *Memory) Len() int { return m.lru.Len() }

func (m *Memory) Close() error {
	m.lru.Purge()
	return nil
}
