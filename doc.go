// Package verstats records per-version application statistics in a pluggable key-value backend.
//
// # Overview
//
// verstats keeps usage statistics such as launch counts separately for every
// application version, and runs a one-time upgrade hook when a new version is
// seen. It separates the statistics engine (Store) from persistence (Backend).
//
// # Architecture
//
// The package consists of four abstractions:
//
// 1. Version: a parsed "major.minor.patch" string with total ordering
// 2. Backend: storage interface for persistence
// 3. Policy[V]: how a new observation folds into the previous value
// 4. Descriptor[V]: a statistic key bound to its Policy
//
// Keys are stored as "Statistics::<version>::<key>". The last seen version
// lives under "_Statistics::version", outside that namespace.
//
// # Quick Start
//
//	var LaunchCount = verstats.NewDescriptor("launchCount", verstats.Increment[int]())
//
//	store, err := verstats.Open(ctx, verstats.NewMemory(nil), "1.2.0",
//	    verstats.WithUpgrade(func(ctx context.Context, u verstats.Upgrade) error {
//	        if u.FirstRun {
//	            return showWelcome()
//	        }
//	        return migrateFrom(u.Previous)
//	    }))
//	if err != nil {
//	    return err
//	}
//
//	verstats.Record(ctx, store, LaunchCount)
//	n, ok := verstats.Value(ctx, store, LaunchCount)
//
// # Input-bearing statistics
//
// Policies that need the observed value are bound at record time:
//
//	var LastScreen = verstats.NewDescriptor("lastScreen", verstats.Replace(""))
//
//	verstats.Record(ctx, store, LastScreen.With(verstats.Replace("settings")))
//
// # Upgrade Detection
//
// Open invokes the upgrade hook exactly once when no version was recorded yet
// or the running version is greater than the recorded one. If the hook fails,
// Open returns an *UpgradeError and the recorded version is not advanced, so
// the next Open retries the hook.
//
// # Backends
//
// Memory is included in this package. Subpackages provide redisbackend,
// sqlitebackend and filebackend. CachedBackend adds an LRU read cache in front
// of any Backend.
//
// # Error Handling
//
// Only Open fails: *ConfigError for a malformed version and *UpgradeError for
// a failed hook. Record, Value, Reset and ResetAll never return errors;
// backend failures are logged through the configured Logger and counted in
// Metrics, and failed reads resolve to "no value".
package verstats
