// Package testutil provides helpers shared by tests: polling for
// asynchronous state, a real page engine, and traceable test IDs.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"
)

// Poll repeatedly checks a condition until it becomes true or timeout expires.
// Returns an error if timeout expires before condition becomes true.
func Poll(ctx context.Context, condition func() bool, timeout time.Duration, interval time.Duration) error {
	start := time.Now()
	for {
		if condition() {
			return nil
		}

		if time.Since(start) >= timeout {
			return fmt.Errorf("timeout waiting for condition (threshold: %v)", timeout)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// Eventually fails the test unless condition becomes true within
// DefaultTimeout.
func Eventually(t testing.TB, condition func() bool, msg string) {
	t.Helper()
	if err := Poll(context.Background(), condition, DefaultTimeout, PollingInterval); err != nil {
		t.Fatalf("%s: %v", msg, err)
	}
}
