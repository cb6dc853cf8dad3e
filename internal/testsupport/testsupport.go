// Package testsupport provides shared helpers for package tests.
package testsupport

import (
	"testing"

	"redact/internal/config"
	"redact/internal/store"
)

// NewConfig returns a validated configuration rooted in a per-test temp
// directory.
func NewConfig(t *testing.T) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StateDir = base + "/state"
	cfg.Paths.ReviewDir = base + "/review"
	cfg.Paths.LogDir = base + "/logs"
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// MustOpenStore opens the sqlite store for cfg and registers cleanup.
func MustOpenStore(t *testing.T, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := st.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return st
}
