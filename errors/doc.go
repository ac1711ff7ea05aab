// Package errors provides structured error types for the runloop module.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the failing operation, a key path, and the cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseWait, errors.KindPump).
//		Op("MsgWaitForMultipleObjects").
//		Cause(syscallErr).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Pump(errors.PhasePoll, "PeekMessageW", cause)
//	err := errors.Config([]string{"engines", "0", "kind"}, "unknown engine kind", nil)
//
// Pump errors are fatal: the loop returns them from Run without retrying.
// All errors implement the standard error interface and support errors.Is/As.
package errors
