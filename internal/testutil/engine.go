package testutil

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/wrtplugins/wrt/internal/jsengine"
)

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewEngine starts a page engine that is closed when the test ends.
func NewEngine(t testing.TB) *jsengine.Runtime {
	t.Helper()
	rt, err := jsengine.NewRuntime(context.Background(), DiscardLogger())
	if err != nil {
		t.Fatalf("failed to start engine: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })
	return rt
}
