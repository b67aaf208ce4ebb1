// Package testutil provides test helpers shared across packages: contexts
// with deadlines, polling, and an in-process SSH server that stands in for
// a switch.
package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

// Context returns a context with a reasonable timeout for tests.
// The cancel function is registered via t.Cleanup.
func Context(t testing.TB) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// Eventually polls cond every 10ms until it returns true or timeout passes.
func Eventually(t testing.TB, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		if cond() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("condition not met after %v: %s", timeout, msg)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// TempKnownHosts returns a known_hosts path inside a fresh temp dir
func TempKnownHosts(t testing.TB) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "known_hosts")
}
