// Package cache stores serialized tool responses so repeated identical calls
// skip the upstream sources. Backends: none, in-process expirable LRU, Redis.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendRedis  = "redis"

	DefaultTTL  = 15 * time.Minute
	DefaultSize = 512
)

// ErrUnknownBackend is returned by New for unsupported backend names.
var ErrUnknownBackend = errors.New("unknown cache backend")

// Cache is a byte-valued store with per-entry TTL. Implementations are safe
// for concurrent use.
type Cache interface {
	// Get reports a miss with ok=false and a nil error.
	Get(ctx context.Context, key string) (val []byte, ok bool, err error)
	Set(ctx context.Context, key string, val []byte) error
	Close() error
}

// Options selects and tunes a backend.
type Options struct {
	Backend string
	TTL     time.Duration
	Size    int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	DialTimeout   time.Duration
}

// New builds the configured backend. Redis connections are verified with PING.
func New(ctx context.Context, opts Options) (Cache, error) {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case "", BackendNone:
		return Nop{}, nil
	case BackendMemory:
		return NewMemory(opts.Size, opts.TTL), nil
	case BackendRedis:
		return NewRedis(ctx, opts)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
}

// Key derives a stable cache key from an operation name and its arguments.
// json.Marshal sorts map keys, so equal argument maps give equal keys.
func Key(operation string, args map[string]any) string {
	data, err := json.Marshal(args)
	if err != nil || len(args) == 0 {
		data = []byte("{}")
	}
	sum := sha256.Sum256(append([]byte(operation+"\x00"), data...))
	return operation + ":" + hex.EncodeToString(sum[:16])
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (Nop) Set(context.Context, string, []byte) error         { return nil }
func (Nop) Close() error                                      { return nil }
