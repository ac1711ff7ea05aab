// Package msgqueue provides a portable native-style message queue that
// satisfies runloop.MessageSource.
//
// Producers on any goroutine Post messages addressed to a target; the loop
// goroutine waits, drains and dispatches them. Dispatch runs the optional
// Translator and then the Router, which calls the Handler registered for the
// message's target. Unrouted messages go to the fallback handler or are
// dropped; they are not errors. Handler errors are returned from Dispatch
// and are fatal to the loop.
//
// Blocking is delegated to a Waker: ChanWaker works everywhere, and
// EventfdWaker (Linux) exposes a pollable descriptor.
package msgqueue
