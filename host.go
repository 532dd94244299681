package verstats

import (
	"os"
	"strings"
)

// Host reports the running application's version string.
type Host interface {
	CurrentVersion() string
}

// StaticHost is a Host with a fixed version.
type StaticHost string

func (h StaticHost) CurrentVersion() string { return string(h) }

// VersionFile is a Host reading the version from a file such as a bundled
// VERSION manifest. A missing or unreadable file reports "".
type VersionFile string

func (f VersionFile) CurrentVersion() string {
	data, err := os.ReadFile(string(f))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// EnvHost is a Host reading the version from an environment variable.
type EnvHost string

func (e EnvHost) CurrentVersion() string {
	return strings.TrimSpace(os.Getenv(string(e)))
}
