package config

import (
	"context"
	"fmt"
	"io"

	"code.byted.org/khicago/verstats"
	"code.byted.org/khicago/verstats/filebackend"
	"code.byted.org/khicago/verstats/redisbackend"
	"code.byted.org/khicago/verstats/sqlitebackend"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// OpenBackend builds the backend c describes. The returned Closer releases
// its resources; callers must close it when done.
func OpenBackend(ctx context.Context, c Config) (verstats.Backend, io.Closer, error) {
	var (
		backend verstats.Backend
		closer  io.Closer = nopCloser{}
	)

	switch c.Backend {
	case BackendMemory:
		backend = verstats.NewMemory(nil)
	case BackendFile:
		f, err := filebackend.Open(c.Path)
		if err != nil {
			return nil, nil, err
		}
		backend = f
	case BackendSQLite:
		s, err := sqlitebackend.Open(c.Path)
		if err != nil {
			return nil, nil, err
		}
		backend, closer = s, s
	case BackendRedis:
		r, err := redisbackend.Open(ctx, redisbackend.Config{
			URL:       c.RedisURL,
			Namespace: c.RedisNamespace,
		})
		if err != nil {
			return nil, nil, err
		}
		backend, closer = r, r
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", c.Backend)
	}

	if c.CacheSize > 0 {
		backend = verstats.NewCachedBackend(backend, c.CacheSize, c.CacheTTL)
	}
	return backend, closer, nil
}
