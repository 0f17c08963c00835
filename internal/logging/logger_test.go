// Package logging includes tests for the zap logger helpers.
package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestNewDevelopmentLogger confirms the development logger builds and logs.
func TestNewDevelopmentLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(Options{Development: true})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush
	logger.Info("development logger ready")
}

// TestNewProductionLogger ensures the production logger honours the level.
func TestNewProductionLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(Options{Level: "warn"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if logger.Core().Enabled(-1) {
		t.Fatal("expected debug to be disabled")
	}
	if !logger.Core().Enabled(1) {
		t.Fatal("expected warn to be enabled")
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	t.Parallel()

	if _, err := New(Options{Level: "chatty"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

// TestNewWritesFile checks the rotating file receives JSON lines.
func TestNewWritesFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "scdx.log")
	logger, err := New(Options{Level: "info", File: path})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	logger.Info("file logger ready")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"file logger ready"`) {
		t.Fatalf("unexpected log contents %q", data)
	}
}
