package verstats

import (
	"context"
	"errors"
	"fmt"
)

const (
	// KeyPrefix starts every per-statistic key: "Statistics::<version>::<key>".
	KeyPrefix = "Statistics::"

	// LastVersionKey holds the last seen version. It is outside KeyPrefix, so
	// ResetAll never removes it.
	LastVersionKey = "_Statistics::version"
)

var (
	ErrNotFound       = errors.New("verstats: not found")
	ErrInvalidVersion = errors.New("verstats: invalid version")
	ErrUpgradeFailed  = errors.New("verstats: upgrade hook failed")
)

// Backend is the persistent key-value medium statistics are stored in.
// Implementations must be thread-safe.
type Backend interface {
	// Write stores value under key. A nil value deletes the key.
	Write(ctx context.Context, key string, value []byte) error
	// Read returns ErrNotFound when key is absent.
	Read(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	// DeletePrefix removes every key starting with prefix and nothing else.
	DeletePrefix(ctx context.Context, prefix string) error

	// LastVersion returns ErrNotFound on first run.
	LastVersion(ctx context.Context) (string, error)
	SetLastVersion(ctx context.Context, version string) error
}

// UpdateFunc computes the next value of a key from its current one.
// Returning keep=false deletes the key.
type UpdateFunc func(old []byte, ok bool) (next []byte, keep bool, err error)

// Updater is implemented by backends that can apply an UpdateFunc atomically.
// The store uses it for Record instead of its own read-modify-write.
type Updater interface {
	Update(ctx context.Context, key string, fn UpdateFunc) error
}

// ConfigError reports a version string the store cannot be opened with.
type ConfigError struct {
	Version string
	Err     error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("verstats: cannot open store for version %q: %v", e.Version, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// UpgradeError wraps a failed upgrade hook. The last seen version is left
// untouched, so the hook runs again on the next Open.
type UpgradeError struct {
	Previous Version
	FirstRun bool
	Current  Version
	Err      error
}

func (e *UpgradeError) Error() string {
	from := e.Previous.String()
	if e.FirstRun {
		from = "first run"
	}
	return fmt.Sprintf("verstats: upgrade %s -> %s: %v", from, e.Current, e.Err)
}

func (e *UpgradeError) Unwrap() []error { return []error{ErrUpgradeFailed, e.Err} }
