package wintrap

import "sync"

// ///////////////////////////////////////////////
// Stream Adapter
// ///////////////////////////////////////////////

// TrapStream is [Trapper.Trap] with the handler replaced by a channel:
// body receives caught signals by polling or blocking on it instead of
// installing a callback.
//
// The channel has capacity one. The delivering handler never blocks the
// listener goroutine: if a previous signal is still unread when the next one
// arrives, the new one is dropped. The channel is closed once the trap scope
// has fully exited, so a reader that outlives body observes end-of-stream
// rather than a hang. A nested scope closes without joining the listener, so
// a delivery can still be in flight when the channel closes; the handler and
// the close site share a mutex and a closed flag to keep that delivery from
// becoming a send on a closed channel.
func (t *Trapper) TrapStream(signals []Signal, body func(<-chan Signal) error) error {
	ch := make(chan Signal, 1)
	var mu sync.Mutex
	closed := false

	err := t.Trap(signals, func(s Signal) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- s:
		default:
		}
	}, func() error {
		return body(ch)
	})

	mu.Lock()
	closed = true
	close(ch)
	mu.Unlock()
	return err
}
