package ports

import (
	"context"
	"time"
)

// Cache is a key-value capability for usecases. Entries written with a
// positive ttl disappear once it elapses. Adapters join the unit of work found
// in ctx.
type Cache interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// PurgeExpired removes entries whose ttl has elapsed.
	PurgeExpired(ctx context.Context) (int64, error)
}
