package winmsg

import (
	"errors"
	"sync"

	"github.com/eapache/queue"
)

// ///////////////////////////////////////////////
// Memory Bridge
// ///////////////////////////////////////////////

// Memory is an in-process [Bridge] with no OS dependencies. It reproduces
// the queueing behavior of the Win32 bridge: posted messages are delivered
// FIFO per target, and a quit request is ordered behind messages posted
// before it. Tests drive it through [Memory.FireControlEvent] and
// [Memory.RequestClose], which stand in for the OS raising a console control
// event or closing the hidden window.
type Memory struct {
	mu           sync.Mutex
	ctrl         ControlCallback
	nextThread   uint32
	targets      map[*memTarget]struct{}
	otherWindows bool
	registerErr  error
	createErr    error
	pumpErr      error
}

// NewMemory returns an empty in-process bridge.
func NewMemory() *Memory {
	return &Memory{targets: make(map[*memTarget]struct{})}
}

// quitItem is the queued sentinel that ends a pump.
type quitItem struct{}

// memTarget is one simulated message window.
type memTarget struct {
	threadID  uint32
	mu        sync.Mutex
	cond      *sync.Cond
	queue     *queue.Queue
	destroyed bool
}

// ThreadID returns the simulated owning thread id.
func (t *memTarget) ThreadID() uint32 { return t.threadID }

// post queues item and wakes the pump. Reports false if t was destroyed.
func (t *memTarget) post(item any) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.destroyed {
		return false
	}
	t.queue.Add(item)
	t.cond.Signal()
	return true
}

// ///////////////////////////////////////////////
// Bridge Implementation
// ///////////////////////////////////////////////

func (m *Memory) RegisterControlCallback(fn ControlCallback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.registerErr != nil {
		err := m.registerErr
		m.registerErr = nil
		return err
	}
	if m.ctrl != nil {
		return errors.New("winmsg: control callback already registered")
	}
	m.ctrl = fn
	return nil
}

func (m *Memory) UnregisterControlCallback() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ctrl = nil
	return nil
}

func (m *Memory) CreateMessageTarget() (Target, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		err := m.createErr
		m.createErr = nil
		return nil, err
	}
	m.nextThread++
	t := &memTarget{threadID: m.nextThread, queue: queue.New()}
	t.cond = sync.NewCond(&t.mu)
	m.targets[t] = struct{}{}
	return t, nil
}

func (m *Memory) DestroyMessageTarget(t Target) {
	mt := t.(*memTarget)
	m.mu.Lock()
	delete(m.targets, mt)
	m.mu.Unlock()

	mt.mu.Lock()
	mt.destroyed = true
	mt.mu.Unlock()
}

func (m *Memory) PostMessage(t Target, kind Kind, data uint32) error {
	if !t.(*memTarget).post(Message{Kind: kind, Data: data}) {
		return errors.New("winmsg: post to destroyed target")
	}
	return nil
}

func (m *Memory) RunPump(t Target, onMessage func(Message)) error {
	m.mu.Lock()
	if m.pumpErr != nil {
		err := m.pumpErr
		m.pumpErr = nil
		m.mu.Unlock()
		return err
	}
	m.mu.Unlock()

	mt := t.(*memTarget)
	for {
		mt.mu.Lock()
		for mt.queue.Length() == 0 {
			mt.cond.Wait()
		}
		item := mt.queue.Remove()
		mt.mu.Unlock()

		if _, quit := item.(quitItem); quit {
			return nil
		}
		onMessage(item.(Message))
	}
}

func (m *Memory) PostQuit(t Target) error {
	if !t.(*memTarget).post(quitItem{}) {
		return errors.New("winmsg: quit posted to destroyed target")
	}
	return nil
}

func (m *Memory) OwnsOtherWindows(_ Target) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.otherWindows
}

// ///////////////////////////////////////////////
// Test Controls
// ///////////////////////////////////////////////

// FireControlEvent invokes the registered control callback the way the OS
// would, on the caller's goroutine, and returns the callback's handled
// result. It reports false when no callback is installed.
func (m *Memory) FireControlEvent(event uint32) bool {
	m.mu.Lock()
	fn := m.ctrl
	m.mu.Unlock()
	if fn == nil {
		return false
	}
	return fn(event)
}

// RequestClose posts a close message to every live target, mirroring
// taskkill sending WM_CLOSE to each top-level window of the process.
func (m *Memory) RequestClose() {
	m.mu.Lock()
	targets := make([]*memTarget, 0, len(m.targets))
	for t := range m.targets {
		targets = append(targets, t)
	}
	m.mu.Unlock()
	for _, t := range targets {
		t.post(Message{Kind: KindClose})
	}
}

// SetOwnsOtherWindows controls what [Memory.OwnsOtherWindows] reports.
func (m *Memory) SetOwnsOtherWindows(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.otherWindows = v
}

// FailRegister makes the next RegisterControlCallback call return err.
func (m *Memory) FailRegister(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registerErr = err
}

// FailPump makes the next RunPump call return err before draining anything.
func (m *Memory) FailPump(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pumpErr = err
}

// FailCreateTarget makes the next CreateMessageTarget call return err.
func (m *Memory) FailCreateTarget(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createErr = err
}

// Registered reports whether a control callback is currently installed.
func (m *Memory) Registered() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ctrl != nil
}

// LiveTargets returns the number of targets created and not yet destroyed.
func (m *Memory) LiveTargets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.targets)
}
