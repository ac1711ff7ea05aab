// Package win32 drives the native Windows thread message queue as a
// runloop.MessageSource.
//
// The pump must be created and run on the same OS thread: call
// runtime.LockOSThread before New, then run the loop on that goroutine.
package win32

import (
	"time"

	"github.com/wippyai/runloop"
)

// infinite is the Win32 INFINITE timeout.
const infinite uint32 = 0xFFFFFFFF

// timeoutMillis converts a wait timeout to whole milliseconds for
// MsgWaitForMultipleObjects. Partial milliseconds round up so a pending
// sub-millisecond deadline sleeps briefly instead of spinning.
func timeoutMillis(d time.Duration) uint32 {
	if d == runloop.Infinite {
		return infinite
	}
	if d <= 0 {
		return 0
	}
	ms := (d + time.Millisecond - 1) / time.Millisecond
	if ms >= time.Duration(infinite) {
		return infinite - 1
	}
	return uint32(ms)
}
