package verstats

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
)

// mockLogger captures log messages for testing
type mockLogger struct {
	mu       sync.Mutex
	messages []string
}

func (m *mockLogger) Info(ctx context.Context, format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, fmt.Sprintf("INFO: "+format, args...))
}

func (m *mockLogger) Warn(ctx context.Context, format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, fmt.Sprintf("WARN: "+format, args...))
}

func (m *mockLogger) Error(ctx context.Context, format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, fmt.Sprintf("ERROR: "+format, args...))
}

func (m *mockLogger) Debug(ctx context.Context, format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, fmt.Sprintf("DEBUG: "+format, args...))
}

func (m *mockLogger) getMessages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.messages...)
}

func (m *mockLogger) contains(substring string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.messages {
		if strings.Contains(msg, substring) {
			return true
		}
	}
	return false
}

func TestWithLogger(t *testing.T) {
	logger := &mockLogger{}

	// Create store with error-prone mock backend
	backend := newMockBackend()
	backend.writeFunc = func(ctx context.Context, key string, value []byte) error {
		return fmt.Errorf("mock write error")
	}

	s := mustOpen(t, backend, "1.0.0", WithLogger(logger))

	// Trigger an error
	ctx := context.Background()
	Record(ctx, s, launchCount)

	// Verify error was logged
	if !logger.contains("ERROR: record Statistics::1.0.0::launchCount failed: mock write error") {
		t.Errorf("Expected error log for Record, got %v", logger.getMessages())
	}
}

func TestWithLogTag(t *testing.T) {
	logger := &mockLogger{}

	backend := newMockBackend()
	backend.readFunc = func(ctx context.Context, key string) ([]byte, error) {
		return nil, fmt.Errorf("mock read error")
	}

	s := mustOpen(t, backend, "1.0.0",
		WithLogger(logger),
		WithLogTag("[TestTag]"))

	ctx := context.Background()
	Value(ctx, s, launchCount)

	// Verify log tag is present
	if !logger.contains("[TestTag]") {
		t.Error("Expected log tag in error message")
	}
	if !logger.contains("read Statistics::1.0.0::launchCount failed") {
		t.Error("Expected error log for Value operation")
	}
}

func TestLogger_UpgradeMessages(t *testing.T) {
	logger := &mockLogger{}
	b := NewMemory(nil)

	mustOpen(t, b, "1.0.0", WithLogger(logger))
	mustOpen(t, b, "1.1.0", WithLogger(logger))
	mustOpen(t, b, "1.0.0", WithLogger(logger))

	for _, want := range []string{
		"INFO: first run at version 1.0.0",
		"INFO: upgraded from 1.0.0 to 1.1.0",
		"WARN: version 1.0.0 is older than last seen 1.1.0",
	} {
		if !logger.contains(want) {
			t.Errorf("missing log %q in %v", want, logger.getMessages())
		}
	}
}

func TestLoggerCoverage_AllOperations(t *testing.T) {
	logger := &mockLogger{}
	s := mustOpen(t, NewMemory(nil), "1.0.0", WithLogger(logger))
	ctx := context.Background()

	// Absent values and successful operations log no errors or warnings
	Value(ctx, s, launchCount)
	Record(ctx, s, launchCount)
	Value(ctx, s, launchCount)
	Reset(ctx, s, launchCount)
	Reset(ctx, s, launchCount)
	s.ResetAll(ctx)

	for _, msg := range logger.getMessages() {
		if strings.HasPrefix(msg, "ERROR") || strings.HasPrefix(msg, "WARN") {
			t.Errorf("Unexpected log message: %s", msg)
		}
	}
}

func TestNoOpLogger(t *testing.T) {
	// Create store without logger (should use no-op)
	backend := newMockBackend()
	backend.writeFunc = func(context.Context, string, []byte) error {
		return errors.New("mock write error")
	}
	s := mustOpen(t, backend, "1.0.0")
	ctx := context.Background()

	// Should not panic with no-op logger
	Record(ctx, s, launchCount)
	Value(ctx, s, launchCount)
}

func TestLoggerNilSafety(t *testing.T) {
	// Passing nil logger should use default no-op
	s := mustOpen(t, NewMemory(nil), "1.0.0", WithLogger(nil))

	ctx := context.Background()

	// Should not panic
	Record(ctx, s, launchCount)
}

func TestLogrusLogger(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetLevel(logrus.DebugLevel)
	l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true, DisableColors: true})

	logger := NewLogrusLogger(l)
	ctx := context.Background()
	logger.Info(ctx, "opened %s", "1.0.0")
	logger.Warn(ctx, "warned")
	logger.Error(ctx, "failed")
	logger.Debug(ctx, "debugged")

	out := buf.String()
	for _, want := range []string{
		`level=info msg="opened 1.0.0" component=verstats`,
		"level=warning msg=warned component=verstats",
		"level=error msg=failed component=verstats",
		"level=debug msg=debugged component=verstats",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("logrus output missing %q:\n%s", want, out)
		}
	}
}

func TestLogrusLogger_NilUsesStandard(t *testing.T) {
	if NewLogrusLogger(nil) == nil {
		t.Error("NewLogrusLogger(nil) returned nil")
	}
}
