package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
)

var appCounter int64

// NewTestAppID generates a process-local unique application ID for tests.
// Pass in t.Name() from the caller to make IDs traceable per-test.
func NewTestAppID(tname string) string {
	id := atomic.AddInt64(&appCounter, 1)
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		}
		return '_'
	}, tname)
	return fmt.Sprintf("test.%s.app%d", safe, id)
}
