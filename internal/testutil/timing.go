package testutil

import "time"

// PollingInterval is the default interval between condition checks
// in Poll() and Eventually().
//
// Rationale:
//   - 10ms keeps event delivery tests responsive
//   - Shorter intervals waste CPU cycles with excessive polling
//
// Usage:
//
//	Poll(ctx, condition, timeout, PollingInterval)
const PollingInterval = 10 * time.Millisecond

// DefaultTimeout bounds waits for a callback delivered through a page's
// event loop.
//
// Rationale:
//   - Delivery is a goroutine handoff plus one loop turn, normally well under 10ms
//   - 2 seconds tolerates loaded CI machines without hiding a lost event
const DefaultTimeout = 2 * time.Second

// QuietPeriod is how long tests wait to assert that something does not
// happen, e.g. a dropped callback.
const QuietPeriod = 100 * time.Millisecond
