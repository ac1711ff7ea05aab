//go:build linux

package msgqueue

import (
	"encoding/binary"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/wippyai/runloop"
	"github.com/wippyai/runloop/errors"
)

// EventfdWaker is a Waker backed by a Linux eventfd. Wait uses ppoll, so
// timeouts keep nanosecond resolution.
type EventfdWaker struct {
	mu     sync.RWMutex
	fd     int
	closed bool
}

// NewEventfdWaker creates a non-blocking eventfd waker.
func NewEventfdWaker() (Waker, error) {
	fd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return nil, errors.Pump(errors.PhaseWait, "eventfd", err)
	}
	return &EventfdWaker{fd: fd}, nil
}

// Fd returns the eventfd, for hosts that multiplex it with other descriptors.
func (w *EventfdWaker) Fd() int {
	return w.fd
}

func (w *EventfdWaker) Signal() error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return errors.Closed(errors.PhaseWait, "waker")
	}

	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	_, err := unix.Write(w.fd, buf[:])
	if err == unix.EAGAIN {
		// Counter saturated; a wake is already pending.
		return nil
	}
	return err
}

func (w *EventfdWaker) Wait(timeout time.Duration) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return errors.Closed(errors.PhaseWait, "waker")
	}

	fds := []unix.PollFd{{Fd: int32(w.fd), Events: unix.POLLIN}}
	var ts *unix.Timespec
	if timeout != runloop.Infinite {
		if timeout < 0 {
			timeout = 0
		}
		t := unix.NsecToTimespec(int64(timeout))
		ts = &t
	}

	n, err := unix.Ppoll(fds, ts, nil)
	if err == unix.EINTR {
		return nil
	}
	if err != nil {
		return errors.Pump(errors.PhaseWait, "ppoll", err)
	}
	if n > 0 && fds[0].Revents&unix.POLLIN != 0 {
		var buf [8]byte
		if _, err := unix.Read(w.fd, buf[:]); err != nil && err != unix.EAGAIN {
			return errors.Pump(errors.PhaseWait, "read eventfd", err)
		}
	}
	return nil
}

// Close wakes a blocked Wait and releases the eventfd.
func (w *EventfdWaker) Close() error {
	_ = w.Signal()
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return unix.Close(w.fd)
}
