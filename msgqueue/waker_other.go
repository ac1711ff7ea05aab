//go:build !linux

package msgqueue

import "github.com/wippyai/runloop/errors"

// NewEventfdWaker is only available on Linux.
func NewEventfdWaker() (Waker, error) {
	return nil, errors.Unsupported(errors.PhaseWait, "eventfd waker requires linux")
}
