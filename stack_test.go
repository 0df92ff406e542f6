// Tests for the trap stack's internal discipline: LIFO pop enforcement and
// the goroutine identity helper the owner check is built on.
package wintrap

import "testing"

// mustPanic runs fn and fails the test unless it panics.
func mustPanic(t *testing.T, name string, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("%s: expected a panic", name)
		}
	}()
	fn()
}

func TestPopWithNoActiveTrapPanics(t *testing.T) {
	tr, _, _ := newTestTrapper(t)
	mustPanic(t, "pop on empty stack", func() {
		tr.stack.pop([]Signal{CtrlC})
	})
}

func TestMismatchedPopPanics(t *testing.T) {
	tr, _, _ := newTestTrapper(t)
	if err := tr.stack.push([]Signal{CtrlC}, func(Signal) {}); err != nil {
		t.Fatalf("push: %v", err)
	}
	mustPanic(t, "pop of an unregistered signal", func() {
		tr.stack.pop([]Signal{CtrlBreak})
	})
	// Recover the stack so teardown still runs.
	tr.stack.pop([]Signal{CtrlC})
	if tr.Active() {
		t.Error("trap still active after balanced pop")
	}
}

func TestInnermostEmpty(t *testing.T) {
	tr, _, _ := newTestTrapper(t)
	if _, ok := tr.stack.innermost(CtrlC); ok {
		t.Error("innermost returned a handler for an empty stack")
	}
}

// ///////////////////////////////////////////////
// Goroutine Identity
// ///////////////////////////////////////////////

func TestGoroutineIDStable(t *testing.T) {
	if goroutineID() != goroutineID() {
		t.Fatal("goroutine id changed between calls on the same goroutine")
	}
}

func TestGoroutineIDDistinct(t *testing.T) {
	other := make(chan uint64, 1)
	go func() { other <- goroutineID() }()
	if id := <-other; id == goroutineID() {
		t.Fatal("two goroutines reported the same id")
	}
}
