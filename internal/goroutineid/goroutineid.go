// Package goroutineid identifies the calling goroutine, which lets callers
// that may already be running on an engine loop avoid posting to themselves.
package goroutineid

import (
	"bytes"
	"runtime"
	"sync"
)

var headerPool = sync.Pool{
	New: func() any {
		b := make([]byte, 64)
		return &b
	},
}

var goroutinePrefix = []byte("goroutine ")

// Get returns the ID of the calling goroutine, or 0 if it cannot be parsed.
//
// Only the first line of the stack is needed, so a small buffer is enough:
// runtime.Stack truncates rather than failing.
func Get() int64 {
	bp := headerPool.Get().(*[]byte)
	defer headerPool.Put(bp)
	n := runtime.Stack(*bp, false)
	return parse((*bp)[:n])
}

// parse reads the integer following "goroutine " at the start of a stack
// header such as "goroutine 42 [running]:". It does not allocate.
func parse(header []byte) int64 {
	rest, ok := bytes.CutPrefix(header, goroutinePrefix)
	if !ok {
		return 0
	}
	var id int64
	for _, c := range rest {
		if c < '0' || c > '9' {
			break
		}
		id = id*10 + int64(c-'0')
	}
	return id
}
