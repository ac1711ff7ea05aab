//go:build windows

package win32

import (
	"time"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/wippyai/runloop"
	"github.com/wippyai/runloop/errors"
)

const (
	wmQuit     = 0x0012
	pmRemove   = 0x0001
	qsAllInput = 0x04FF
	waitFailed = 0xFFFFFFFF
)

var (
	user32 = windows.NewLazySystemDLL("user32.dll")

	procMsgWaitForMultipleObjects = user32.NewProc("MsgWaitForMultipleObjects")
	procPeekMessageW              = user32.NewProc("PeekMessageW")
	procTranslateMessage          = user32.NewProc("TranslateMessage")
	procDispatchMessageW          = user32.NewProc("DispatchMessageW")
	procPostQuitMessage           = user32.NewProc("PostQuitMessage")
	procPostThreadMessageW        = user32.NewProc("PostThreadMessageW")
)

// Point mirrors the Win32 POINT structure.
type Point struct {
	X, Y int32
}

// Msg mirrors the Win32 MSG structure.
type Msg struct {
	Hwnd     windows.HWND
	Message  uint32
	WParam   uintptr
	LParam   uintptr
	Time     uint32
	Pt       Point
	LPrivate uint32
}

var _ runloop.MessageSource = (*Pump)(nil)

// Pump is the message queue of the thread that created it.
type Pump struct {
	threadID uint32
}

// New binds a pump to the calling OS thread.
func New() *Pump {
	return &Pump{threadID: windows.GetCurrentThreadId()}
}

// ThreadID returns the id of the thread owning the queue.
func (p *Pump) ThreadID() uint32 {
	return p.threadID
}

func (p *Pump) Wait(timeout time.Duration) error {
	r, _, err := procMsgWaitForMultipleObjects.Call(
		0, 0, 0,
		uintptr(timeoutMillis(timeout)),
		qsAllInput,
	)
	if uint32(r) == waitFailed {
		return errors.Pump(errors.PhaseWait, "MsgWaitForMultipleObjects", err)
	}
	return nil
}

func (p *Pump) Peek() (runloop.Message, bool, error) {
	msg := new(Msg)
	r, _, _ := procPeekMessageW.Call(uintptr(unsafe.Pointer(msg)), 0, 0, 0, pmRemove)
	if r == 0 {
		return nil, false, nil
	}
	return msg, true, nil
}

func (p *Pump) IsQuit(msg runloop.Message) bool {
	m, ok := msg.(*Msg)
	return ok && m.Message == wmQuit
}

// Dispatch translates virtual-key messages and routes msg to its window
// procedure. Foreign message types are ignored.
func (p *Pump) Dispatch(msg runloop.Message) error {
	m, ok := msg.(*Msg)
	if !ok {
		return nil
	}
	_, _, _ = procTranslateMessage.Call(uintptr(unsafe.Pointer(m)))
	_, _, _ = procDispatchMessageW.Call(uintptr(unsafe.Pointer(m)))
	return nil
}

// PostQuit posts WM_QUIT from the pump's own thread.
func (p *Pump) PostQuit(code int) {
	_, _, _ = procPostQuitMessage.Call(uintptr(code))
}

// Post posts a thread message from any thread.
func (p *Pump) Post(message uint32, wParam, lParam uintptr) error {
	r, _, err := procPostThreadMessageW.Call(uintptr(p.threadID), uintptr(message), wParam, lParam)
	if r == 0 {
		return errors.Pump(errors.PhaseDispatch, "PostThreadMessageW", err)
	}
	return nil
}

// PostQuitFrom posts WM_QUIT to the pump's thread from any thread.
func (p *Pump) PostQuitFrom(code int) error {
	return p.Post(wmQuit, uintptr(code), 0)
}
