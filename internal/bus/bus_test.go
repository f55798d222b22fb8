package bus

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/stormcomplete/internal/guard"
	"github.com/dshills/stormcomplete/internal/revision"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue[int]()
	for i := 0; i < 5; i++ {
		require.NoError(t, q.Push(i))
	}
	assert.Equal(t, 5, q.Len())

	for i := 0; i < 5; i++ {
		v, err := q.Pop(context.Background())
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}
	assert.Zero(t, q.Len())
}

func TestQueuePopWaits(t *testing.T) {
	q := NewQueue[string]()

	got := make(chan string, 1)
	go func() {
		v, err := q.Pop(context.Background())
		if err == nil {
			got <- v
		}
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, q.Push("hello"))

	select {
	case v := <-got:
		assert.Equal(t, "hello", v)
	case <-time.After(time.Second):
		t.Fatal("Pop did not wake up")
	}
}

func TestQueuePopContextCancel(t *testing.T) {
	q := NewQueue[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := q.Pop(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestQueueCloseSemantics(t *testing.T) {
	q := NewQueue[int]()
	require.NoError(t, q.Push(1))
	q.Close()
	q.Close()

	assert.True(t, errors.Is(q.Push(2), ErrDisconnected))

	v, err := q.Pop(context.Background())
	require.NoError(t, err, "queued items survive close")
	assert.Equal(t, 1, v)

	_, err = q.Pop(context.Background())
	assert.True(t, errors.Is(err, ErrDisconnected))
}

func TestQueueConcurrentProducers(t *testing.T) {
	q := NewQueue[int]()
	const producers, perProducer = 8, 500

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				_ = q.Push(i)
			}
		}()
	}

	received := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		for received < producers*perProducer {
			if _, err := q.Pop(context.Background()); err != nil {
				return
			}
			received++
		}
	}()

	wg.Wait()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer stalled")
	}
	assert.Equal(t, producers*perProducer, received)
}

func TestSendToUIWakesAndDrainsInOneBatch(t *testing.T) {
	var wakes atomic.Int32
	b := New(WakerFunc(func() { wakes.Add(1) }))

	require.NoError(t, b.SendToUI(CoreFailed{Err: errors.New("a")}))
	require.NoError(t, b.SendToUI(Completions{Revision: revision.Revision(7)}))
	assert.Equal(t, int32(2), wakes.Load())
	assert.Equal(t, 2, b.PendingUI())

	batch := b.DrainUI()
	assert.Len(t, batch, 2)
	assert.Empty(t, b.DrainUI())
}

func TestChanWakerCoalesces(t *testing.T) {
	w := NewChanWaker()
	b := New(w)

	for i := 0; i < 10; i++ {
		require.NoError(t, b.SendToUI(Completions{Revision: revision.Revision(i)}))
	}

	select {
	case <-w.C():
	default:
		t.Fatal("expected a wake")
	}
	select {
	case <-w.C():
		t.Fatal("wakes should coalesce")
	default:
	}
	assert.Len(t, b.DrainUI(), 10)
}

func TestCoreRoundTrip(t *testing.T) {
	b := New(nil)
	require.NoError(t, b.SendToCore(CancelRequest{Revision: 3}))

	msg, err := b.RecvCore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, CancelRequest{Revision: 3}, msg)
}

// runUI drains the bus like a host would, running UI closures.
func runUI(ctx context.Context, b *Bus, w *ChanWaker) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.C():
			for _, msg := range b.DrainUI() {
				if ex, ok := msg.(*ExecuteOnUIThread); ok {
					ex.Run()
				}
			}
		}
	}
}

func TestExecuteOnUI(t *testing.T) {
	w := NewChanWaker()
	b := New(w)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go runUI(ctx, b, w)

	v, err := b.ExecuteOnUI(ctx, func() (any, error) { return 41 + 1, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	_, err = b.ExecuteOnUI(ctx, func() (any, error) { return nil, errors.New("nope") })
	assert.EqualError(t, err, "nope")
}

func TestExecuteOnUIPanicBecomesError(t *testing.T) {
	w := NewChanWaker()
	b := New(w)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go runUI(ctx, b, w)

	_, err := b.ExecuteOnUI(ctx, func() (any, error) { panic("ui boom") })
	pe, ok := guard.AsPanic(err)
	require.True(t, ok)
	assert.Equal(t, "ui boom", pe.Message())
}

func TestExecuteOnUIContextCancel(t *testing.T) {
	b := New(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := b.ExecuteOnUI(ctx, func() (any, error) { return 1, nil })
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestExecuteOnUIDisconnected(t *testing.T) {
	b := New(nil)
	done := make(chan error, 1)
	go func() {
		_, err := b.ExecuteOnUI(context.Background(), func() (any, error) { return 1, nil })
		done <- err
	}()

	require.Eventually(t, func() bool { return b.PendingUI() == 1 }, time.Second, time.Millisecond)
	b.Close()

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, ErrDisconnected))
	case <-time.After(time.Second):
		t.Fatal("round trip did not observe disconnection")
	}

	_, err := b.ExecuteOnUI(context.Background(), func() (any, error) { return 1, nil })
	assert.True(t, errors.Is(err, ErrDisconnected))
}

func TestExecuteOnUIThreadRunsOnce(t *testing.T) {
	calls := 0
	msg := &ExecuteOnUIThread{
		fn:    func() (any, error) { calls++; return nil, nil },
		reply: make(chan uiReply, 1),
	}
	msg.Run()
	msg.Run()
	msg.Reject(ErrNotExecuted)
	assert.Equal(t, 1, calls)
	assert.Len(t, msg.reply, 1)
}

func TestExecuteOnUIThreadReject(t *testing.T) {
	msg := &ExecuteOnUIThread{
		fn:    func() (any, error) { t.Fatal("must not run"); return nil, nil },
		reply: make(chan uiReply, 1),
	}
	msg.Reject(ErrNotExecuted)
	r := <-msg.reply
	assert.True(t, errors.Is(r.err, ErrNotExecuted))
}
