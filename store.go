package verstats

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Upgrade describes a detected version change passed to the upgrade hook.
type Upgrade struct {
	Current Version
	// Previous is meaningful only when FirstRun is false.
	Previous Version
	FirstRun bool
}

// UpgradeFunc runs once per new version. A non-nil error leaves the last
// seen version unchanged so the hook is retried by the next Open.
type UpgradeFunc func(ctx context.Context, u Upgrade) error

// Option customizes Store behavior.
type Option func(*Store)

// WithUpgrade sets the hook called when Open detects a first run or a newer version.
func WithUpgrade(fn UpgradeFunc) Option {
	return func(s *Store) {
		s.onUpgrade = fn
	}
}

// WithLogger specifies a logger for operation logging.
// If not provided, a no-op logger is used (no logging).
func WithLogger(logger Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithLogTag sets a tag prefix for all log messages.
func WithLogTag(tag string) Option {
	return func(s *Store) {
		s.logTag = tag
	}
}

// WithMetrics reports store activity to m.
func WithMetrics(m *Metrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// Store records statistics for one application version.
// Keys are stored as "Statistics::<version>::<key>".
//
// A Store is created by Open and passed explicitly to Record, Value and
// Reset. Its versions never change; open a new Store to switch versions.
// All methods are safe for concurrent use.
type Store struct {
	backend Backend

	current     Version
	previous    Version
	hasPrevious bool
	upgraded    bool
	prefix      string

	onUpgrade UpgradeFunc
	logger    Logger
	logTag    string
	metrics   *Metrics

	// mu serializes read-modify-write for backends without Updater.
	mu sync.Mutex
}

// Open parses version, compares it with the backend's last seen version and
// runs the upgrade hook if this is a first run or a newer version.
//
// An unparsable version returns a *ConfigError. A failing hook returns an
// *UpgradeError and the last seen version is not advanced. In every other
// case the last seen version is set to version, including downgrades.
// If backend is nil, an in-memory backend is used.
func Open(ctx context.Context, backend Backend, version string, opts ...Option) (*Store, error) {
	current, err := ParseVersion(version)
	if err != nil {
		return nil, &ConfigError{Version: version, Err: err}
	}
	if backend == nil {
		backend = NewMemory(nil)
	}

	s := &Store{
		backend: backend,
		current: current,
		prefix:  KeyPrefix + current.String() + "::",
		logger:  defaultLogger,
	}
	for _, opt := range opts {
		opt(s)
	}

	start := time.Now()
	defer s.metrics.observe("open", start)

	s.previous, s.hasPrevious = s.loadPrevious(ctx)
	if err := s.checkUpgrade(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// MustOpen is like Open but panics on error.
func MustOpen(ctx context.Context, backend Backend, version string, opts ...Option) *Store {
	s, err := Open(ctx, backend, version, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

// OpenHost opens a Store for the version reported by host.
func OpenHost(ctx context.Context, backend Backend, host Host, opts ...Option) (*Store, error) {
	if host == nil {
		return nil, &ConfigError{Err: errors.New("nil host")}
	}
	return Open(ctx, backend, host.CurrentVersion(), opts...)
}

func (s *Store) loadPrevious(ctx context.Context) (Version, bool) {
	raw, err := s.backend.LastVersion(ctx)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.fail(ctx, "last_version", LastVersionKey, err)
		}
		return Version{}, false
	}
	v, err := ParseVersion(raw)
	if err != nil {
		s.logf("warn", ctx, "ignoring stored version: %v", err)
		return Version{}, false
	}
	return v, true
}

func (s *Store) checkUpgrade(ctx context.Context) error {
	if s.hasPrevious && !s.current.Greater(s.previous) {
		if s.current.Less(s.previous) {
			s.logf("warn", ctx, "version %s is older than last seen %s", s.current, s.previous)
		} else {
			s.logf("debug", ctx, "version %s unchanged", s.current)
		}
	} else {
		u := Upgrade{Current: s.current, Previous: s.previous, FirstRun: !s.hasPrevious}
		if s.onUpgrade != nil {
			if err := s.onUpgrade(ctx, u); err != nil {
				s.metrics.upgrade("failed")
				s.logf("error", ctx, "upgrade hook for %s failed: %v", s.current, err)
				return &UpgradeError{Previous: u.Previous, FirstRun: u.FirstRun, Current: u.Current, Err: err}
			}
		}
		s.upgraded = true
		if u.FirstRun {
			s.metrics.upgrade("first_run")
			s.logf("info", ctx, "first run at version %s", s.current)
		} else {
			s.metrics.upgrade("upgrade")
			s.logf("info", ctx, "upgraded from %s to %s", s.previous, s.current)
		}
	}

	if err := s.backend.SetLastVersion(ctx, s.current.String()); err != nil {
		s.fail(ctx, "set_last_version", LastVersionKey, err)
	}
	return nil
}

// Current returns the version statistics are recorded under.
func (s *Store) Current() Version { return s.current }

// Previous returns the last seen version read at Open. ok is false on first run.
func (s *Store) Previous() (v Version, ok bool) { return s.previous, s.hasPrevious }

// Upgraded reports whether Open treated this run as a first run or an upgrade.
func (s *Store) Upgraded() bool { return s.upgraded }

// Backend returns the backend the store writes through.
func (s *Store) Backend() Backend { return s.backend }

// Key returns the namespaced backend key for a statistic under the current version.
func (s *Store) Key(name string) string {
	return s.prefix + name
}

// ResetAll removes every statistic of every version. Keys outside KeyPrefix,
// including the last seen version, are left alone.
func (s *Store) ResetAll(ctx context.Context) {
	if s == nil {
		return
	}
	start := time.Now()
	defer s.metrics.observe("reset_all", start)

	if err := s.backend.DeletePrefix(ctx, KeyPrefix); err != nil {
		s.fail(ctx, "reset_all", KeyPrefix, err)
		return
	}
	s.metrics.reset("all")
}

// Record folds a new observation into d's stored value using d.Policy.
// Backend failures are logged and the recording is dropped.
func Record[V any](ctx context.Context, s *Store, d Descriptor[V]) {
	if s == nil || d.Policy == nil {
		return
	}
	start := time.Now()
	defer s.metrics.observe("record", start)

	codec := d.codec()
	fn := func(old []byte, ok bool) ([]byte, bool, error) {
		var prev V
		if ok {
			decoded, err := codec.Decode(old)
			if err != nil {
				s.logf("warn", ctx, "Record %s: replacing undecodable value: %v", d.Key, err)
				ok = false
			} else {
				prev = decoded
			}
		}
		next, keep := d.Policy.Fold(prev, ok)
		if !keep {
			return nil, false, nil
		}
		data, err := codec.Encode(next)
		if err != nil {
			return nil, false, fmt.Errorf("encode %s: %w", d.Key, err)
		}
		return data, true, nil
	}

	key := s.Key(d.Key)
	if err := s.update(ctx, key, fn); err != nil {
		s.fail(ctx, "record", key, err)
		return
	}
	s.metrics.record(d.Key)
}

// Value returns d's stored value under the current version. ok is false when
// the value is absent, unreadable, or not decodable as V.
func Value[V any](ctx context.Context, s *Store, d Descriptor[V]) (v V, ok bool) {
	if s == nil {
		return v, false
	}
	key := s.Key(d.Key)
	data, err := s.backend.Read(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.fail(ctx, "read", key, err)
		}
		return v, false
	}
	decoded, err := d.codec().Decode(data)
	if err != nil {
		s.logf("debug", ctx, "Value %s: type mismatch: %v", d.Key, err)
		return v, false
	}
	return decoded, true
}

// Reset removes d's value under the current version only.
func Reset[V any](ctx context.Context, s *Store, d Descriptor[V]) {
	if s == nil {
		return
	}
	key := s.Key(d.Key)
	if err := s.backend.Delete(ctx, key); err != nil {
		s.fail(ctx, "reset", key, err)
		return
	}
	s.metrics.reset("statistic")
}

func (s *Store) update(ctx context.Context, key string, fn UpdateFunc) error {
	if u, ok := s.backend.(Updater); ok {
		return u.Update(ctx, key, fn)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	old, err := s.backend.Read(ctx, key)
	found := err == nil
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("read: %w", err)
	}
	next, keep, err := fn(old, found)
	if err != nil {
		return err
	}
	if !keep {
		return s.backend.Delete(ctx, key)
	}
	return s.backend.Write(ctx, key, next)
}

func (s *Store) fail(ctx context.Context, op, key string, err error) {
	s.metrics.backendError(op)
	s.logf("error", ctx, "%s %s failed: %v", op, key, err)
}

func (s *Store) logf(level string, ctx context.Context, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if s.logTag != "" {
		msg = s.logTag + " " + msg
	}
	switch level {
	case "info":
		s.logger.Info(ctx, "%s", msg)
	case "warn":
		s.logger.Warn(ctx, "%s", msg)
	case "error":
		s.logger.Error(ctx, "%s", msg)
	case "debug":
		s.logger.Debug(ctx, "%s", msg)
	}
}
