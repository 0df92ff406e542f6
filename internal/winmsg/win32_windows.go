// Win32 implementation of the message bridge.
//
// The console control callback is installed with SetConsoleCtrlHandler via a
// single process-wide trampoline. The message target is a hidden top-level
// window; it must be a real top-level window, not a message-only one, so
// that taskkill and friends find it when they post WM_CLOSE to the process.
// Forwarded console events travel as a private registered window message.

//go:build windows

package winmsg

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

// ///////////////////////////////////////////////
// Win32 Bindings
// ///////////////////////////////////////////////

var (
	user32   = windows.NewLazySystemDLL("user32.dll")
	kernel32 = windows.NewLazySystemDLL("kernel32.dll")

	procRegisterClassExW       = user32.NewProc("RegisterClassExW")
	procCreateWindowExW        = user32.NewProc("CreateWindowExW")
	procDestroyWindow          = user32.NewProc("DestroyWindow")
	procDefWindowProcW         = user32.NewProc("DefWindowProcW")
	procGetMessageW            = user32.NewProc("GetMessageW")
	procDispatchMessageW       = user32.NewProc("DispatchMessageW")
	procPostMessageW           = user32.NewProc("PostMessageW")
	procPostThreadMessageW     = user32.NewProc("PostThreadMessageW")
	procRegisterWindowMessageW = user32.NewProc("RegisterWindowMessageW")
	procSetConsoleCtrlHandler  = kernel32.NewProc("SetConsoleCtrlHandler")
)

const (
	wmClose = 0x0010
	wmQuit  = 0x0012

	className  = "wintrap-message-window"
	windowName = "wintrap"
)

// wndClassExW mirrors WNDCLASSEXW.
type wndClassExW struct {
	Size       uint32
	Style      uint32
	WndProc    uintptr
	ClsExtra   int32
	WndExtra   int32
	Instance   windows.Handle
	Icon       uintptr
	Cursor     uintptr
	Background uintptr
	MenuName   *uint16
	ClassName  *uint16
	IconSm     uintptr
}

// msgW mirrors MSG.
type msgW struct {
	HWND    windows.HWND
	Message uint32
	WParam  uintptr
	LParam  uintptr
	Time    uint32
	Pt      struct{ X, Y int32 }
}

// consoleCtrlMessage returns the private window message used to forward
// console control events from the constrained callback to the pump thread.
var consoleCtrlMessage = sync.OnceValues(func() (uint32, error) {
	name, err := windows.UTF16PtrFromString("WINTRAP_WM_CONSOLE_CTRL")
	if err != nil {
		return 0, err
	}
	r1, _, callErr := procRegisterWindowMessageW.Call(uintptr(unsafe.Pointer(name)))
	if r1 == 0 {
		return 0, fmt.Errorf("RegisterWindowMessageW: %w", callErr)
	}
	return uint32(r1), nil
})

// ///////////////////////////////////////////////
// Callbacks
// ///////////////////////////////////////////////

// ctrlState holds the currently installed control callback. A single
// trampoline created by windows.NewCallback is reused for the life of the
// process because callback slots are never released.
var ctrlState struct {
	sync.Mutex
	fn ControlCallback
}

var ctrlTrampoline = sync.OnceValue(func() uintptr {
	return windows.NewCallback(func(event uintptr) uintptr {
		ctrlState.Lock()
		fn := ctrlState.fn
		ctrlState.Unlock()
		if fn != nil && fn(uint32(event)) {
			return 1
		}
		return 0
	})
})

// wndProc never calls user code across the system callback boundary. The two
// messages the pump cares about are swallowed here so the default handler
// cannot act on them; WM_CLOSE in particular must not reach DefWindowProcW,
// which would destroy the window.
var wndProc = sync.OnceValue(func() uintptr {
	return windows.NewCallback(func(hwnd, msg, wparam, lparam uintptr) uintptr {
		ctrlMsg, _ := consoleCtrlMessage()
		if msg == wmClose || (ctrlMsg != 0 && uint32(msg) == ctrlMsg) {
			return 0
		}
		r1, _, _ := procDefWindowProcW.Call(hwnd, msg, wparam, lparam)
		return r1
	})
})

// registerWindowClass registers the hidden window class once.
var registerWindowClass = sync.OnceValue(func() error {
	namePtr, err := windows.UTF16PtrFromString(className)
	if err != nil {
		return err
	}
	inst, err := windows.GetModuleHandle(nil)
	if err != nil {
		return fmt.Errorf("GetModuleHandle: %w", err)
	}
	wc := wndClassExW{
		WndProc:   wndProc(),
		Instance:  inst,
		ClassName: namePtr,
	}
	wc.Size = uint32(unsafe.Sizeof(wc))
	if r1, _, callErr := procRegisterClassExW.Call(uintptr(unsafe.Pointer(&wc))); r1 == 0 {
		return fmt.Errorf("RegisterClassExW: %w", callErr)
	}
	return nil
})

// ///////////////////////////////////////////////
// Bridge Implementation
// ///////////////////////////////////////////////

// win32Bridge implements Bridge on top of the real Win32 APIs.
type win32Bridge struct{}

// New returns the native Win32 bridge.
func New() (Bridge, error) { return win32Bridge{}, nil }

// win32Target is a hidden top-level window plus its owning thread.
type win32Target struct {
	hwnd     windows.HWND
	threadID uint32
}

func (t *win32Target) ThreadID() uint32 { return t.threadID }

func (win32Bridge) RegisterControlCallback(fn ControlCallback) error {
	// Resolve the forwarding message up front so a failure surfaces as a
	// registration error instead of a lost event later.
	if _, err := consoleCtrlMessage(); err != nil {
		return err
	}
	ctrlState.Lock()
	defer ctrlState.Unlock()
	if ctrlState.fn != nil {
		return errors.New("winmsg: control callback already registered")
	}
	if r1, _, callErr := procSetConsoleCtrlHandler.Call(ctrlTrampoline(), 1); r1 == 0 {
		return fmt.Errorf("SetConsoleCtrlHandler: %w", callErr)
	}
	ctrlState.fn = fn
	return nil
}

func (win32Bridge) UnregisterControlCallback() error {
	ctrlState.Lock()
	defer ctrlState.Unlock()
	ctrlState.fn = nil
	if r1, _, callErr := procSetConsoleCtrlHandler.Call(ctrlTrampoline(), 0); r1 == 0 {
		return fmt.Errorf("SetConsoleCtrlHandler: %w", callErr)
	}
	return nil
}

func (win32Bridge) CreateMessageTarget() (Target, error) {
	if err := registerWindowClass(); err != nil {
		return nil, err
	}
	namePtr, err := windows.UTF16PtrFromString(className)
	if err != nil {
		return nil, err
	}
	titlePtr, err := windows.UTF16PtrFromString(windowName)
	if err != nil {
		return nil, err
	}
	inst, err := windows.GetModuleHandle(nil)
	if err != nil {
		return nil, fmt.Errorf("GetModuleHandle: %w", err)
	}
	hwnd, _, callErr := procCreateWindowExW.Call(
		0,
		uintptr(unsafe.Pointer(namePtr)),
		uintptr(unsafe.Pointer(titlePtr)),
		0,
		0, 0, 0, 0,
		0, 0,
		uintptr(inst),
		0,
	)
	if hwnd == 0 {
		return nil, fmt.Errorf("CreateWindowExW: %w", callErr)
	}
	return &win32Target{
		hwnd:     windows.HWND(hwnd),
		threadID: windows.GetCurrentThreadId(),
	}, nil
}

func (win32Bridge) DestroyMessageTarget(t Target) {
	wt := t.(*win32Target)
	procDestroyWindow.Call(uintptr(wt.hwnd))
}

func (win32Bridge) PostMessage(t Target, kind Kind, data uint32) error {
	wt := t.(*win32Target)
	var code uint32
	switch kind {
	case KindClose:
		code = wmClose
	case KindConsoleCtrl:
		var err error
		if code, err = consoleCtrlMessage(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("winmsg: unknown message kind %d", kind)
	}
	if r1, _, callErr := procPostMessageW.Call(uintptr(wt.hwnd), uintptr(code), uintptr(data), 0); r1 == 0 {
		return fmt.Errorf("PostMessageW: %w", callErr)
	}
	return nil
}

func (win32Bridge) RunPump(t Target, onMessage func(Message)) error {
	ctrlMsg, err := consoleCtrlMessage()
	if err != nil {
		return err
	}
	var msg msgW
	for {
		r1, _, callErr := procGetMessageW.Call(uintptr(unsafe.Pointer(&msg)), 0, 0, 0)
		switch int32(r1) {
		case 0: // WM_QUIT
			return nil
		case -1:
			return fmt.Errorf("GetMessageW: %w", callErr)
		}
		switch {
		case msg.Message == wmClose:
			onMessage(Message{Kind: KindClose})
		case msg.Message == ctrlMsg:
			onMessage(Message{Kind: KindConsoleCtrl, Data: uint32(msg.WParam)})
		default:
			procDispatchMessageW.Call(uintptr(unsafe.Pointer(&msg)))
		}
	}
}

func (win32Bridge) PostQuit(t Target) error {
	wt := t.(*win32Target)
	if r1, _, callErr := procPostThreadMessageW.Call(uintptr(wt.threadID), wmQuit, 0, 0); r1 == 0 {
		return fmt.Errorf("PostThreadMessageW: %w", callErr)
	}
	return nil
}

// ///////////////////////////////////////////////
// Window Enumeration
// ///////////////////////////////////////////////

// enumState carries arguments and results across the EnumWindows callback,
// which cannot capture locals. Guarded by its own mutex since ownership
// queries can only run one at a time anyway.
var enumState struct {
	sync.Mutex
	own   windows.HWND
	pid   uint32
	found bool
}

var enumProc = sync.OnceValue(func() uintptr {
	return windows.NewCallback(func(hwnd, _ uintptr) uintptr {
		if windows.HWND(hwnd) == enumState.own {
			return 1 // continue
		}
		var pid uint32
		windows.GetWindowThreadProcessId(windows.HWND(hwnd), &pid)
		if pid == enumState.pid {
			enumState.found = true
			return 0 // stop
		}
		return 1
	})
})

func (win32Bridge) OwnsOtherWindows(t Target) bool {
	wt := t.(*win32Target)
	enumState.Lock()
	defer enumState.Unlock()
	enumState.own = wt.hwnd
	enumState.pid = windows.GetCurrentProcessId()
	enumState.found = false
	// EnumWindows reports an error when the callback stops it early; the
	// found flag is the actual answer either way.
	_ = windows.EnumWindows(enumProc(), nil)
	return enumState.found
}
