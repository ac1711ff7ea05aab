// Package loop implements the run loop that services a native message
// source together with a set of embedded engines on one goroutine.
//
// Each iteration:
//
//  1. waits until a message may be available or the earliest engine
//     deadline passes (truncated to microseconds, never negative);
//  2. drains every pending message, dispatching each and ticking all
//     engines after every dispatch;
//  3. ticks all engines once if no message was pending.
//
// The loop stops when the source reports its quit message; messages queued
// behind quit are left unprocessed. Failures of the source are fatal and
// returned from Run.
//
// Engines report their next due work as a runloop.Wake. An engine reporting
// runloop.Idle contributes no deadline; with every engine idle (or none
// registered) the loop blocks on messages alone.
package loop
