package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseWait,
				Kind:   KindPump,
				Path:   []string{"source", "waker"},
				Op:     "ppoll",
				Detail: "interrupted",
			},
			contains: []string{"[wait]", "pump", "source.waker", "ppoll - interrupted"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhasePoll,
				Kind:  KindPump,
			},
			contains: []string{"[poll]", "pump"},
		},
		{
			name: "detail without op",
			err: &Error{
				Phase:  PhaseConfig,
				Kind:   KindInvalidInput,
				Detail: "bad level",
			},
			contains: []string{"[config] invalid_input: bad level"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseDispatch,
				Kind:   KindPump,
				Detail: "handler failed",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[dispatch]", "handler failed", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				assert.Contains(t, msg, s)
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := Pump(PhaseWait, "MsgWaitForMultipleObjects", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestError_Is(t *testing.T) {
	err := &Error{Phase: PhaseWait, Kind: KindPump, Op: "ppoll"}

	assert.True(t, errors.Is(err, &Error{Phase: PhaseWait, Kind: KindPump}))
	assert.False(t, errors.Is(err, &Error{Phase: PhasePoll, Kind: KindPump}))
	assert.False(t, errors.Is(err, &Error{Phase: PhaseWait, Kind: KindState}))
	assert.False(t, errors.Is(err, errors.New("other")))
}

func TestBuilder(t *testing.T) {
	cause := errors.New("boom")
	err := New(PhaseRuntime, KindTrap).
		Path("engine", "clock").
		Op("on_timer").
		Value(uint32(7)).
		Detail("timer %d", 7).
		Cause(cause).
		Build()

	assert.Equal(t, PhaseRuntime, err.Phase)
	assert.Equal(t, KindTrap, err.Kind)
	assert.Equal(t, []string{"engine", "clock"}, err.Path)
	assert.Equal(t, "on_timer", err.Op)
	assert.Equal(t, uint32(7), err.Value)
	assert.Equal(t, "timer 7", err.Detail)
	assert.ErrorIs(t, err, cause)

	escaped := New(PhaseLoad, KindInvalidData).Detail("%d%%", 100).Build()
	assert.Equal(t, "100%", escaped.Detail)
}

func TestConvenienceConstructors(t *testing.T) {
	cause := errors.New("cause")

	tests := []struct {
		err   *Error
		phase Phase
		kind  Kind
	}{
		{Pump(PhasePoll, "PeekMessageW", cause), PhasePoll, KindPump},
		{State(PhaseEngine, cause, "already running"), PhaseEngine, KindState},
		{InvalidInput(PhaseLoad, "empty"), PhaseLoad, KindInvalidInput},
		{InvalidData(PhaseConfig, []string{"log"}, "bad"), PhaseConfig, KindInvalidData},
		{NotFound(PhaseRuntime, "export", "on_timer"), PhaseRuntime, KindNotFound},
		{Unsupported(PhaseWait, "eventfd"), PhaseWait, KindUnsupported},
		{Closed(PhaseWait, "queue"), PhaseWait, KindClosed},
		{Trap("on_timer", cause), PhaseRuntime, KindTrap},
		{Instantiation(cause), PhaseLoad, KindInstantiation},
		{Load("compile", cause), PhaseLoad, KindInvalidData},
		{Config([]string{"engines"}, "empty", nil), PhaseConfig, KindInvalidInput},
		{Wrap(PhaseDispatch, KindPump, cause, "route"), PhaseDispatch, KindPump},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			require.NotNil(t, tt.err)
			assert.Equal(t, tt.phase, tt.err.Phase)
			assert.Equal(t, tt.kind, tt.err.Kind)
		})
	}

	assert.Contains(t, NotFound(PhaseRuntime, "export", "on_timer").Error(), `export "on_timer" not found`)
	assert.Contains(t, Closed(PhaseWait, "queue").Error(), "queue is closed")
}

func TestAsPump(t *testing.T) {
	assert.NoError(t, AsPump(PhaseWait, "wait", nil))

	plain := errors.New("ppoll failed")
	wrapped := AsPump(PhaseWait, "wait", plain)
	assert.ErrorIs(t, wrapped, &Error{Phase: PhaseWait, Kind: KindPump})
	assert.ErrorIs(t, wrapped, plain)

	closed := Closed(PhaseWait, "waker")
	assert.Same(t, closed, AsPump(PhasePoll, "wait", closed))

	nested := fmt.Errorf("signal: %w", closed)
	assert.Equal(t, nested, AsPump(PhaseWait, "signal", nested))
}

func TestStateWrapsSentinel(t *testing.T) {
	sentinel := errors.New("loop: already running")
	err := State(PhaseEngine, sentinel, "Run called re-entrantly")
	assert.ErrorIs(t, err, sentinel)
	assert.ErrorIs(t, err, &Error{Phase: PhaseEngine, Kind: KindState})
}
