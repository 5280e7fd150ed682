package testutil

import (
	"strings"
	"testing"
)

func TestNewTestAppID(t *testing.T) {
	a := NewTestAppID("Short/Sub Test")
	b := NewTestAppID("Short/Sub Test")
	if a == b {
		t.Fatalf("expected unique IDs, got %q twice", a)
	}
	if !strings.HasPrefix(a, "test.Short_Sub_Test.app") {
		t.Fatalf("unexpected ID %q", a)
	}
	if strings.ContainsAny(a, "/ ") {
		t.Fatalf("ID contains unsafe characters: %q", a)
	}
}
