package jsengine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dop251/goja"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	rt, err := NewRuntime(context.Background(), discardLogger())
	if err != nil {
		t.Fatalf("NewRuntime failed: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })
	return rt
}

func TestNewRuntime(t *testing.T) {
	rt := newTestRuntime(t)
	if !rt.IsRunning() {
		t.Error("runtime should be running after creation")
	}
	if rt.Registry() == nil {
		t.Error("registry should not be nil")
	}
	if rt.OnLoop() {
		t.Error("test goroutine is not the loop goroutine")
	}
}

func TestRuntime_Close(t *testing.T) {
	rt, err := NewRuntime(context.Background(), discardLogger())
	if err != nil {
		t.Fatalf("NewRuntime failed: %v", err)
	}
	if err := rt.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if rt.IsRunning() {
		t.Error("runtime should not be running after close")
	}
	if err := rt.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
	select {
	case <-rt.Done():
	default:
		t.Error("Done channel should be closed after Close")
	}
}

func TestRuntime_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rt, err := NewRuntime(ctx, discardLogger())
	if err != nil {
		t.Fatalf("NewRuntime failed: %v", err)
	}
	cancel()
	select {
	case <-rt.Done():
	case <-time.After(time.Second):
		t.Fatal("runtime should stop when context is canceled")
	}
}

func TestRuntime_RunOnLoop(t *testing.T) {
	rt := newTestRuntime(t)

	var onLoop atomic.Bool
	done := make(chan struct{})
	if !rt.RunOnLoop(func(vm *goja.Runtime) {
		onLoop.Store(rt.OnLoop())
		close(done)
	}) {
		t.Fatal("RunOnLoop should return true for running runtime")
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunOnLoop callback should execute")
	}
	if !onLoop.Load() {
		t.Error("OnLoop should be true inside a loop task")
	}
}

func TestRuntime_RunOnLoop_Closed(t *testing.T) {
	rt := newTestRuntime(t)
	_ = rt.Close()
	if rt.RunOnLoop(func(*goja.Runtime) { t.Error("must not run") }) {
		t.Error("RunOnLoop should return false for closed runtime")
	}
	if err := rt.RunOnLoopSync(func(*goja.Runtime) error { return nil }); !errors.Is(err, ErrNotRunning) {
		t.Errorf("expected ErrNotRunning, got %v", err)
	}
}

func TestRuntime_RunOnLoopSync(t *testing.T) {
	rt := newTestRuntime(t)

	var value int
	if err := rt.RunOnLoopSync(func(*goja.Runtime) error {
		value = 42
		return nil
	}); err != nil {
		t.Fatalf("RunOnLoopSync failed: %v", err)
	}
	if value != 42 {
		t.Errorf("value should be 42, got %d", value)
	}

	want := errors.New("test error")
	if err := rt.RunOnLoopSync(func(*goja.Runtime) error { return want }); err != want {
		t.Errorf("expected %v, got %v", want, err)
	}
}

func TestRuntime_RunOnLoopSync_Timeout(t *testing.T) {
	rt := newTestRuntime(t)
	rt.SetTimeout(10 * time.Millisecond)
	err := rt.RunOnLoopSync(func(*goja.Runtime) error {
		time.Sleep(100 * time.Millisecond)
		return nil
	})
	if err == nil {
		t.Error("expected timeout error")
	}
}

func TestRuntime_TryRunOnLoopSync(t *testing.T) {
	rt := newTestRuntime(t)

	var inner bool
	err := rt.RunOnLoopSync(func(vm *goja.Runtime) error {
		return rt.TryRunOnLoopSync(vm, func(innerVM *goja.Runtime) error {
			inner = true
			if innerVM != vm {
				return errors.New("inner VM should be the outer VM")
			}
			return nil
		})
	})
	if err != nil {
		t.Fatalf("nested TryRunOnLoopSync failed: %v", err)
	}
	if !inner {
		t.Error("inner function should have executed")
	}

	var scheduled bool
	if err := rt.TryRunOnLoopSync(nil, func(*goja.Runtime) error {
		scheduled = true
		return nil
	}); err != nil {
		t.Fatalf("TryRunOnLoopSync failed: %v", err)
	}
	if !scheduled {
		t.Error("function should have executed")
	}
}

func TestRuntime_LoadScriptAndGlobals(t *testing.T) {
	rt := newTestRuntime(t)

	if err := rt.LoadScript("test.js", "var x = 40 + 2;"); err != nil {
		t.Fatalf("LoadScript failed: %v", err)
	}
	val, err := rt.GetGlobal("x")
	if err != nil {
		t.Fatalf("GetGlobal failed: %v", err)
	}
	if val != int64(42) {
		t.Errorf("expected 42, got %v", val)
	}

	if err := rt.LoadScript("bad.js", "var y = {"); err == nil {
		t.Error("expected error for invalid script")
	}

	if err := rt.SetGlobal("greeting", "hi"); err != nil {
		t.Fatalf("SetGlobal failed: %v", err)
	}
	out, err := rt.Eval(`greeting + "!"`)
	if err != nil {
		t.Fatalf("Eval failed: %v", err)
	}
	if out != "hi!" {
		t.Errorf("expected hi!, got %v", out)
	}

	missing, err := rt.GetGlobal("nope")
	if err != nil || missing != nil {
		t.Errorf("expected nil for missing global, got %v, %v", missing, err)
	}
}

func TestRuntime_CloseFromLoop(t *testing.T) {
	rt := newTestRuntime(t)
	done := make(chan struct{})
	rt.RunOnLoop(func(*goja.Runtime) {
		_ = rt.Close()
		close(done)
	})
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close from the loop goroutine must not deadlock")
	}
	<-rt.Done()
}

func TestRuntime_StructFieldNames(t *testing.T) {
	rt := newTestRuntime(t)
	type info struct {
		Level      float64 `json:"level"`
		IsCharging bool    `json:"isCharging"`
	}
	if err := rt.SetGlobal("battery", info{Level: 0.5, IsCharging: true}); err != nil {
		t.Fatal(err)
	}
	out, err := rt.Eval(`battery.level + "|" + battery.isCharging + "|" + typeof battery.Level`)
	if err != nil {
		t.Fatal(err)
	}
	if out != "0.5|true|undefined" {
		t.Errorf("unexpected field mapping: %v", out)
	}
}
