package msgqueue

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/runloop"
	"github.com/wippyai/runloop/clock"
	"github.com/wippyai/runloop/errors"
)

var _ runloop.MessageSource = (*Queue)(nil)

// Message is a unit of work carried by a Queue.
type Message struct {
	Posted  time.Time
	Payload any
	Target  string
	Code    int // exit code for quit messages
	Quit    bool
}

// Translator may rewrite a message before it is routed.
type Translator func(msg *Message)

// Config holds optional queue settings. Nil fields use defaults.
type Config struct {
	Waker      Waker
	Router     *Router
	Translator Translator
	Clock      clock.Clock
	Logger     *zap.Logger
}

// Queue is a FIFO message source. Post and PostQuit are safe from any
// goroutine; the MessageSource methods belong to the loop goroutine.
type Queue struct {
	waker     Waker
	router    *Router
	translate Translator
	clock     clock.Clock
	log       *zap.Logger

	mu       sync.Mutex
	items    []*Message
	head     int
	closed   bool
	quitCode int
}

// New creates a queue. A nil config gets a channel waker and an empty router.
func New(cfg *Config) *Queue {
	q := &Queue{
		clock: clock.System(),
		log:   Logger(),
	}
	if cfg != nil {
		q.waker = cfg.Waker
		q.router = cfg.Router
		q.translate = cfg.Translator
		if cfg.Clock != nil {
			q.clock = cfg.Clock
		}
		if cfg.Logger != nil {
			q.log = cfg.Logger
		}
	}
	if q.waker == nil {
		q.waker = NewChanWaker()
	}
	if q.router == nil {
		q.router = NewRouter()
	}
	return q
}

// Router returns the router used by Dispatch.
func (q *Queue) Router() *Router {
	return q.router
}

// Post enqueues payload for target.
func (q *Queue) Post(target string, payload any) error {
	return q.PostMessage(&Message{Target: target, Payload: payload})
}

// PostQuit enqueues the quit message. The loop stops when it reaches it;
// code is reported by QuitCode afterwards.
func (q *Queue) PostQuit(code int) error {
	return q.PostMessage(&Message{Quit: true, Code: code})
}

// PostMessage enqueues msg as is.
func (q *Queue) PostMessage(msg *Message) error {
	if msg == nil {
		return errors.InvalidInput(errors.PhaseDispatch, "nil message")
	}
	if msg.Posted.IsZero() {
		msg.Posted = q.clock.Now()
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return errors.Closed(errors.PhaseDispatch, "queue")
	}
	q.items = append(q.items, msg)
	q.mu.Unlock()

	return errors.AsPump(errors.PhaseWait, "signal", q.waker.Signal())
}

// Len returns the number of pending messages.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

// QuitCode returns the code of the last quit message taken from the queue.
func (q *Queue) QuitCode() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.quitCode
}

// Wait blocks until a message is posted or timeout elapses.
func (q *Queue) Wait(timeout time.Duration) error {
	if q.Len() > 0 {
		return nil
	}
	return errors.AsPump(errors.PhaseWait, "wait", q.waker.Wait(timeout))
}

// Peek removes and returns the oldest pending message.
func (q *Queue) Peek() (runloop.Message, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.head == len(q.items) {
		return nil, false, nil
	}
	msg := q.items[q.head]
	q.items[q.head] = nil
	q.head++
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	}
	if msg.Quit {
		q.quitCode = msg.Code
	}
	return msg, true, nil
}

// IsQuit reports whether msg was posted by PostQuit.
func (q *Queue) IsQuit(msg runloop.Message) bool {
	m, ok := msg.(*Message)
	return ok && m.Quit
}

// Dispatch translates msg and hands it to the router. Messages of foreign
// types are dropped.
func (q *Queue) Dispatch(msg runloop.Message) error {
	m, ok := msg.(*Message)
	if !ok || m == nil {
		q.log.Debug("dropping foreign message", zap.String("type", typeName(msg)))
		return nil
	}
	if q.translate != nil {
		q.translate(m)
	}
	return q.router.Route(m)
}

// Close releases the waker. Posting to a closed queue fails; pending
// messages can still be drained.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.mu.Unlock()
	return q.waker.Close()
}
