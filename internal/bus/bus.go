package bus

import (
	"context"
)

// Waker notifies the host event loop that outbound messages are pending.
// Wake must not block.
type Waker interface {
	Wake()
}

// WakerFunc adapts a function to the Waker interface.
type WakerFunc func()

// Wake implements Waker.
func (f WakerFunc) Wake() { f() }

// ChanWaker is a coalescing Waker for hosts with a select-based loop.
type ChanWaker struct {
	ch chan struct{}
}

// NewChanWaker creates a ChanWaker.
func NewChanWaker() *ChanWaker {
	return &ChanWaker{ch: make(chan struct{}, 1)}
}

// Wake implements Waker. Pending wakes coalesce into one.
func (w *ChanWaker) Wake() {
	select {
	case w.ch <- struct{}{}:
	default:
	}
}

// C returns the channel that receives wake signals.
func (w *ChanWaker) C() <-chan struct{} {
	return w.ch
}

// Bus is the pair of queues between UI and core plus the wake primitive.
type Bus struct {
	toCore *Queue[Inbound]
	toUI   *Queue[Outbound]
	waker  Waker
}

// New creates a bus. A nil waker disables wake-ups (the host polls).
func New(waker Waker) *Bus {
	if waker == nil {
		waker = WakerFunc(func() {})
	}
	return &Bus{
		toCore: NewQueue[Inbound](),
		toUI:   NewQueue[Outbound](),
		waker:  waker,
	}
}

// SendToCore queues a message for the core.
func (b *Bus) SendToCore(msg Inbound) error {
	return b.toCore.Push(msg)
}

// RecvCore waits for the next message for the core.
func (b *Bus) RecvCore(ctx context.Context) (Inbound, error) {
	return b.toCore.Pop(ctx)
}

// SendToUI queues a message for the UI and wakes the host.
func (b *Bus) SendToUI(msg Outbound) error {
	if err := b.toUI.Push(msg); err != nil {
		return err
	}
	b.waker.Wake()
	return nil
}

// DrainUI returns every pending UI message in one batch.
func (b *Bus) DrainUI() []Outbound {
	return b.toUI.Drain()
}

// PendingUI returns the number of undrained UI messages.
func (b *Bus) PendingUI() int {
	return b.toUI.Len()
}

// ExecuteOnUI runs fn on the UI thread and waits for its result.
// It implements completion.UIExecutor.
func (b *Bus) ExecuteOnUI(ctx context.Context, fn func() (any, error)) (any, error) {
	msg := &ExecuteOnUIThread{
		fn:    fn,
		reply: make(chan uiReply, 1),
	}
	if err := b.SendToUI(msg); err != nil {
		return nil, err
	}

	select {
	case r := <-msg.reply:
		return r.value, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-b.toUI.Done():
		// The host may have answered right before closing.
		select {
		case r := <-msg.reply:
			return r.value, r.err
		default:
			return nil, ErrDisconnected
		}
	}
}

// Close disconnects both directions.
func (b *Bus) Close() {
	b.toCore.Close()
	b.toUI.Close()
}

// Closed is closed once the bus is disconnected.
func (b *Bus) Closed() <-chan struct{} {
	return b.toUI.Done()
}
