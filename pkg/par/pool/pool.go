package pool

import (
	"errors"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/ib-77/ogpar/pkg/par"
)

// ErrNoFailure is returned by PopError when the failure sink is empty.
var ErrNoFailure = errors.New("pool: no failure recorded")

type entry struct {
	id  uuid.UUID
	job par.Job
}

// WorkerPool runs submitted jobs on a fixed set of worker goroutines that
// consume one FIFO queue. It owns every job from Submit until the job has
// been disposed.
type WorkerPool struct {
	workers int
	logger  *log.Logger
	metrics *Metrics

	// mu guards queue, shutdown, closed and failures.
	mu       sync.Mutex
	cond     *sync.Cond
	queue    []entry
	shutdown bool
	closed   bool
	failures []par.Failure

	wg   sync.WaitGroup
	once sync.Once
}

// New starts a pool. Workers begin consuming immediately.
func New(opts ...Option) *WorkerPool {
	p := &WorkerPool{}
	for _, opt := range opts {
		opt(p)
	}
	if p.workers <= 0 {
		p.workers = DefaultWorkers()
	}
	if p.logger == nil {
		p.logger = defaultLogger()
	}
	p.cond = sync.NewCond(&p.mu)

	p.wg.Add(p.workers)
	for i := range p.workers {
		go p.work(i)
	}
	p.logger.Debug("pool started", "workers", p.workers)
	return p
}

func (p *WorkerPool) Workers() int {
	return p.workers
}

// Submit hands job to the pool and returns the id its failures will carry.
// Jobs submitted after Shutdown has been called are accepted but are not
// guaranteed to run.
func (p *WorkerPool) Submit(job par.Job) uuid.UUID {
	e := entry{id: uuid.New(), job: job}
	p.metrics.submitted()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.logger.Info("job submitted after shutdown, dropping", "job", e.id)
		p.drop(e)
		return e.id
	}
	p.queue = append(p.queue, e)
	p.mu.Unlock()

	p.cond.Signal()
	return e.id
}

// Pending returns the number of jobs queued but not yet picked up.
func (p *WorkerPool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Shutdown stops the workers and waits for them. A worker finishes the job
// it is running; jobs still queued are disposed without running. Calling
// Shutdown more than once is safe.
func (p *WorkerPool) Shutdown() {
	p.once.Do(func() {
		p.mu.Lock()
		p.shutdown = true
		p.mu.Unlock()
		p.cond.Broadcast()

		p.wg.Wait()

		p.mu.Lock()
		p.closed = true
		rest := p.queue
		p.queue = nil
		p.mu.Unlock()

		if len(rest) > 0 {
			p.logger.Info("dropping queued jobs at shutdown", "count", len(rest))
		}
		for _, e := range rest {
			p.drop(e)
		}
		p.logger.Debug("pool stopped")
	})
}

// PopError removes and returns the most recently recorded failure.
func (p *WorkerPool) PopError() (par.Failure, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.failures)
	if n == 0 {
		return par.Failure{}, ErrNoFailure
	}
	f := p.failures[n-1]
	p.failures[n-1] = par.Failure{}
	p.failures = p.failures[:n-1]
	return f, nil
}

// Drain removes every recorded failure and returns them oldest first.
func (p *WorkerPool) Drain() []par.Failure {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := p.failures
	p.failures = nil
	return out
}

// Failures returns the number of failures currently in the sink.
func (p *WorkerPool) Failures() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.failures)
}

func (p *WorkerPool) record(f par.Failure) {
	p.mu.Lock()
	p.failures = append(p.failures, f)
	p.mu.Unlock()

	p.metrics.failed(f.Kind().String())
	p.logger.Warn("job failed", "job", f.JobId(), "kind", f.Kind(), "err", f.Message())
}

func (p *WorkerPool) drop(e entry) {
	p.metrics.dropped()
	p.dispose(e)
	p.finish(e)
}
