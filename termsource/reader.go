// Package termsource feeds terminal keystrokes into a message queue.
//
// The reader puts the terminal in raw mode, decodes input into bubbletea
// key messages and posts them to the "keys" target. Keys bound to Quit post
// the queue's quit message instead.
package termsource

import (
	stderrors "errors"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/cancelreader"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/runloop/errors"
	"github.com/wippyai/runloop/msgqueue"
)

// Target is the message target for key messages.
const Target = "keys"

// Poster is the part of msgqueue.Queue the reader needs.
type Poster interface {
	Post(target string, payload any) error
	PostQuit(code int) error
}

var _ Poster = (*msgqueue.Queue)(nil)

// Reader reads keystrokes on its own goroutine.
type Reader struct {
	in     *os.File
	out    Poster
	keys   KeyMap
	log    *zap.Logger
	reader cancelreader.CancelReader
	state  *term.State
	done   chan struct{}
	once   sync.Once
}

// New creates a reader of in posting to out. A nil logger disables logging.
func New(in *os.File, out Poster, keys KeyMap, log *zap.Logger) *Reader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reader{
		in:   in,
		out:  out,
		keys: keys,
		log:  log,
		done: make(chan struct{}),
	}
}

// Start switches a terminal input to raw mode and begins reading.
func (r *Reader) Start() error {
	fd := int(r.in.Fd())
	if term.IsTerminal(fd) {
		state, err := term.MakeRaw(fd)
		if err != nil {
			return errors.Wrap(errors.PhaseWait, errors.KindPump, err, "enter raw mode")
		}
		r.state = state
	}

	cr, err := cancelreader.NewReader(r.in)
	if err != nil {
		r.restore()
		return errors.Wrap(errors.PhaseWait, errors.KindPump, err, "open input")
	}
	r.reader = cr

	go r.run(cr)
	return nil
}

// Stop cancels the pending read and restores the terminal.
func (r *Reader) Stop() error {
	var err error
	r.once.Do(func() {
		if r.reader != nil {
			if r.reader.Cancel() {
				<-r.done
			}
			err = r.reader.Close()
		}
		if rerr := r.restore(); rerr != nil && err == nil {
			err = rerr
		}
	})
	return err
}

// Raw reports whether Start switched the input to raw mode and Stop has
// not restored it yet. Raw mode output needs CRLF line endings.
func (r *Reader) Raw() bool {
	return r.state != nil
}

func (r *Reader) restore() error {
	if r.state == nil {
		return nil
	}
	state := r.state
	r.state = nil
	return term.Restore(int(r.in.Fd()), state)
}

func (r *Reader) run(in io.Reader) {
	defer close(r.done)
	buf := make([]byte, 256)
	for {
		n, err := in.Read(buf)
		for _, k := range Decode(buf[:n]) {
			if !r.Handle(k) {
				return
			}
		}
		if err != nil {
			if !stderrors.Is(err, cancelreader.ErrCanceled) && !stderrors.Is(err, io.EOF) {
				r.log.Warn("terminal read failed", zap.Error(err))
			}
			return
		}
	}
}

// Handle posts k and reports whether reading should continue.
func (r *Reader) Handle(k tea.KeyMsg) bool {
	if key.Matches(k, r.keys.Quit) {
		if err := r.out.PostQuit(0); err != nil {
			r.log.Warn("post quit failed", zap.Error(err))
		}
		return false
	}
	if err := r.out.Post(Target, k); err != nil {
		r.log.Warn("post key failed", zap.Error(err), zap.Stringer("key", k))
		return false
	}
	return true
}
