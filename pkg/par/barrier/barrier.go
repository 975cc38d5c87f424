package barrier

import (
	"context"
	"sync"
)

// Barrier is a counting completion gate. The coordinator creates it with
// the number of jobs it is about to submit and awaits it; jobs release it
// once each and may grow it while they are still counted.
type Barrier struct {
	mu        sync.Mutex
	cond      *sync.Cond
	remaining int
}

func New(count int) *Barrier {
	if count < 0 {
		panic("barrier: negative initial count")
	}
	b := &Barrier{remaining: count}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// RegisterMore adds n to the count. It must only be called from a job that
// is itself still counted against b, so the count cannot reach zero while
// the registration is in flight.
func (b *Barrier) RegisterMore(n int) {
	if n < 0 {
		panic("barrier: negative registration")
	}
	b.mu.Lock()
	b.remaining += n
	b.mu.Unlock()
}

// Release marks one counted job as complete.
func (b *Barrier) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.remaining == 0 {
		panic("barrier: release without a matching registration")
	}
	b.remaining--
	if b.remaining == 0 {
		b.cond.Broadcast()
	}
}

// Await blocks until every counted job has released.
func (b *Barrier) Await() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for b.remaining > 0 {
		b.cond.Wait()
	}
}

// AwaitContext is Await that gives up when ctx is done. The barrier is
// left untouched; outstanding jobs still release into it.
func (b *Barrier) AwaitContext(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		b.mu.Lock()
		b.cond.Broadcast()
		b.mu.Unlock()
	})
	defer stop()

	b.mu.Lock()
	defer b.mu.Unlock()

	for b.remaining > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		b.cond.Wait()
	}
	return nil
}

func (b *Barrier) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.remaining
}

// Guard releases its barrier exactly once, however often Release is called.
//
//	g := b.Guard()
//	defer g.Release()
type Guard struct {
	barrier *Barrier
	once    sync.Once
}

func (b *Barrier) Guard() *Guard {
	return &Guard{barrier: b}
}

func (g *Guard) Release() {
	g.once.Do(g.barrier.Release)
}
