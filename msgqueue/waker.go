package msgqueue

import (
	"sync"
	"time"

	"github.com/wippyai/runloop"
	"github.com/wippyai/runloop/errors"
)

// Waker lets producers wake a consumer blocked in Wait.
//
// Signals do not accumulate: any number of Signal calls before a Wait
// release exactly one Wait. Wait may also return early without a signal.
type Waker interface {
	Signal() error
	Wait(timeout time.Duration) error
	Close() error
}

// ChanWaker is a portable Waker built on a buffered channel.
type ChanWaker struct {
	ch        chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func NewChanWaker() *ChanWaker {
	return &ChanWaker{
		ch:   make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

func (w *ChanWaker) Signal() error {
	select {
	case w.ch <- struct{}{}:
	default:
	}
	return nil
}

func (w *ChanWaker) Wait(timeout time.Duration) error {
	select {
	case <-w.done:
		return errors.Closed(errors.PhaseWait, "waker")
	default:
	}

	if timeout <= 0 {
		select {
		case <-w.ch:
		default:
		}
		return nil
	}

	if timeout == runloop.Infinite {
		select {
		case <-w.ch:
			return nil
		case <-w.done:
			return errors.Closed(errors.PhaseWait, "waker")
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-w.ch:
	case <-timer.C:
	case <-w.done:
		return errors.Closed(errors.PhaseWait, "waker")
	}
	return nil
}

func (w *ChanWaker) Close() error {
	w.closeOnce.Do(func() { close(w.done) })
	return nil
}
