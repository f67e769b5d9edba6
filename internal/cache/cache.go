// Package cache holds the response cache shared by the catalog and the
// download token ledger. Entries live in Redis when configured, otherwise
// in a bounded in-process LRU.
package cache

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

const keyPrefix = "cinegate:"

type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	// SetNX stores val only if key is absent and reports whether it did.
	SetNX(ctx context.Context, key string, val []byte, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, keys ...string) error
	// Purge drops every entry under prefix.
	Purge(ctx context.Context, prefix string) error
}

// Key derives a bounded cache key from an operation name and its arguments.
func Key(op string, args ...any) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = fmt.Sprint(a)
	}
	sum := xxhash.Sum64String(strings.Join(parts, "\x1f"))
	return keyPrefix + op + ":" + strconv.FormatUint(sum, 16)
}

// Prefix is the key prefix shared by every entry of op.
func Prefix(op string) string {
	return keyPrefix + op + ":"
}
