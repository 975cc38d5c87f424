package pool

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ib-77/ogpar/pkg/par"
	"github.com/ib-77/ogpar/pkg/par/barrier"
)

func quietLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

func newTestPool(t *testing.T, workers int, opts ...Option) *WorkerPool {
	t.Helper()
	p := New(append([]Option{WithWorkers(workers), WithLogger(quietLogger())}, opts...)...)
	t.Cleanup(p.Shutdown)
	return p
}

type finished struct {
	par.Job
	guard *barrier.Guard
}

func (f finished) Finish() {
	f.guard.Release()
}

// counted wraps fn so that it releases b once the pool is done with it.
func counted(b *barrier.Barrier, fn func() error) par.Job {
	return finished{Job: par.Func(fn), guard: b.Guard()}
}

func TestNew_Workers(t *testing.T) {
	t.Parallel()

	t.Run("fixed count", func(t *testing.T) {
		p := newTestPool(t, 3)
		assert.Equal(t, 3, p.Workers())
	})

	t.Run("non-positive count falls back to cpu count", func(t *testing.T) {
		p := newTestPool(t, 0)
		assert.Equal(t, DefaultWorkers(), p.Workers())
		q := newTestPool(t, -2)
		assert.Equal(t, DefaultWorkers(), q.Workers())
	})
}

func TestSubmit_NoOpJobsRunExactlyOnce(t *testing.T) {
	t.Parallel()

	const jobs = 10
	p := newTestPool(t, 4)
	b := barrier.New(jobs)

	var runs [jobs]atomic.Int32
	for i := range jobs {
		p.Submit(counted(b, func() error {
			runs[i].Add(1)
			return nil
		}))
	}
	b.Await()

	assert.Equal(t, 0, p.Failures())
	for i := range jobs {
		assert.Equal(t, int32(1), runs[i].Load(), "job %d", i)
	}
}

func TestSubmit_ManyJobsNoneLostNoneRepeated(t *testing.T) {
	t.Parallel()

	const jobs = 2000
	p := newTestPool(t, 8)
	b := barrier.New(jobs)

	runs := make([]atomic.Int32, jobs)
	for i := range jobs {
		p.Submit(counted(b, func() error {
			runs[i].Add(1)
			if i%100 == 0 {
				return errors.New("every hundredth job fails")
			}
			return nil
		}))
	}
	b.Await()

	for i := range jobs {
		require.Equal(t, int32(1), runs[i].Load(), "job %d", i)
	}
	assert.Equal(t, jobs/100, p.Failures())
}

func TestPopError_SingleExecutionFailure(t *testing.T) {
	t.Parallel()

	p := newTestPool(t, 2)
	b := barrier.New(1)
	cause := errors.New("decode failed")

	id := p.Submit(counted(b, func() error { return cause }))
	b.Await()

	require.Equal(t, 1, p.Failures())
	f, err := p.PopError()
	require.NoError(t, err)
	assert.Equal(t, par.KindExecution, f.Kind())
	assert.Equal(t, id, f.JobId())
	assert.ErrorIs(t, f, cause)
	assert.Equal(t, 0, p.Failures())

	_, err = p.PopError()
	assert.ErrorIs(t, err, ErrNoFailure)
}

func TestPopError_EmptySink(t *testing.T) {
	t.Parallel()

	p := newTestPool(t, 1)
	f, err := p.PopError()
	assert.ErrorIs(t, err, ErrNoFailure)
	assert.True(t, f.IsEmpty())
}

func TestPopError_LastInFirstOut(t *testing.T) {
	t.Parallel()

	// one worker keeps failures in submission order
	p := newTestPool(t, 1)
	b := barrier.New(3)
	for _, msg := range []string{"first", "second", "third"} {
		p.Submit(counted(b, func() error { return errors.New(msg) }))
	}
	b.Await()

	for _, want := range []string{"third", "second", "first"} {
		f, err := p.PopError()
		require.NoError(t, err)
		assert.Equal(t, want, f.Message())
	}
}

func TestDrain_OldestFirst(t *testing.T) {
	t.Parallel()

	p := newTestPool(t, 1)
	b := barrier.New(2)
	p.Submit(counted(b, func() error { return errors.New("a") }))
	p.Submit(counted(b, func() error { return errors.New("b") }))
	b.Await()

	failures := p.Drain()
	require.Len(t, failures, 2)
	assert.Equal(t, "a", failures[0].Message())
	assert.Equal(t, "b", failures[1].Message())
	assert.Empty(t, p.Drain())
}

func TestWorker_ContainsPanics(t *testing.T) {
	t.Parallel()

	p := newTestPool(t, 1)
	b := barrier.New(3)
	cause := errors.New("typed panic")

	p.Submit(counted(b, func() error { panic(cause) }))
	p.Submit(counted(b, func() error { panic("not an error") }))

	var survived atomic.Bool
	p.Submit(counted(b, func() error {
		survived.Store(true)
		return nil
	}))
	b.Await()

	assert.True(t, survived.Load(), "worker stopped after a panicking job")
	failures := p.Drain()
	require.Len(t, failures, 2)

	assert.Equal(t, par.KindExecution, failures[0].Kind())
	assert.ErrorIs(t, failures[0], cause)
	assert.Equal(t, par.KindUnknown, failures[1].Kind())
	assert.Equal(t, par.MsgRunPanic, failures[1].Message())
}

func TestWorker_CleanupFailuresAreSeparate(t *testing.T) {
	t.Parallel()

	p := newTestPool(t, 1)
	done := make(chan struct{})

	job := par.WithDispose(par.Func(func() error {
		return errors.New("run failed")
	}), func() error {
		defer close(done)
		return errors.New("dispose failed")
	})
	p.Submit(job)
	<-done

	require.Eventually(t, func() bool { return p.Failures() == 2 }, time.Second, time.Millisecond)
	failures := p.Drain()
	assert.Equal(t, par.KindExecution, failures[0].Kind())
	assert.Equal(t, "run failed", failures[0].Message())
	assert.Equal(t, par.KindCleanup, failures[1].Kind())
	assert.Equal(t, "dispose failed", failures[1].Message())
	assert.Equal(t, failures[0].JobId(), failures[1].JobId())
}

func TestWorker_DisposePanics(t *testing.T) {
	t.Parallel()

	p := newTestPool(t, 1)
	b := barrier.New(2)

	p.Submit(par.WithDispose(par.Func(func() error { return nil }), func() error {
		defer b.Release()
		panic("dispose exploded")
	}))
	p.Submit(par.WithDispose(par.Func(func() error { return nil }), func() error {
		defer b.Release()
		panic(errors.New("dispose error panic"))
	}))
	b.Await()

	require.Eventually(t, func() bool { return p.Failures() == 2 }, time.Second, time.Millisecond)
	failures := p.Drain()
	assert.Equal(t, par.KindUnknown, failures[0].Kind())
	assert.Equal(t, par.MsgDisposePanic, failures[0].Message())
	assert.Equal(t, par.KindCleanup, failures[1].Kind())
}

func TestWorker_DisposeRunsAfterEveryJob(t *testing.T) {
	t.Parallel()

	const jobs = 50
	p := newTestPool(t, 4)
	var disposed sync.WaitGroup
	var count atomic.Int32

	for range jobs {
		disposed.Add(1)
		p.Submit(par.WithDispose(par.Func(func() error {
			return errors.New("fails")
		}), func() error {
			defer disposed.Done()
			count.Add(1)
			return nil
		}))
	}
	disposed.Wait()
	assert.Equal(t, int32(jobs), count.Load())
}

func TestShutdown_DropsBacklogWithoutRunning(t *testing.T) {
	t.Parallel()

	p := New(WithWorkers(1), WithLogger(quietLogger()))

	started := make(chan struct{})
	release := make(chan struct{})
	var firstDone atomic.Bool
	p.Submit(par.Func(func() error {
		close(started)
		<-release
		firstDone.Store(true)
		return nil
	}))
	<-started

	var ran, disposed atomic.Int32
	for range 3 {
		p.Submit(par.WithDispose(par.Func(func() error {
			ran.Add(1)
			return nil
		}), func() error {
			disposed.Add(1)
			return nil
		}))
	}
	require.Equal(t, 3, p.Pending())

	stopped := make(chan struct{})
	go func() {
		p.Shutdown()
		close(stopped)
	}()

	require.Eventually(t, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.shutdown
	}, time.Second, time.Millisecond)
	close(release)
	<-stopped

	assert.True(t, firstDone.Load(), "the dequeued job must run to completion")
	assert.Equal(t, int32(0), ran.Load(), "queued jobs must not run after shutdown")
	assert.Equal(t, int32(3), disposed.Load(), "queued jobs must still be disposed")
	assert.Equal(t, 0, p.Pending())
	assert.Equal(t, 0, p.Failures())
}

func TestShutdown_SubmitAfterwardsIsDisposedNotRun(t *testing.T) {
	t.Parallel()

	p := New(WithWorkers(2), WithLogger(quietLogger()))
	p.Shutdown()
	p.Shutdown()

	var ran, disposed atomic.Bool
	p.Submit(par.WithDispose(par.Func(func() error {
		ran.Store(true)
		return nil
	}), func() error {
		disposed.Store(true)
		return nil
	}))

	assert.False(t, ran.Load())
	assert.True(t, disposed.Load())
	assert.Equal(t, 0, p.Pending())
}

func TestShutdown_ConcurrentCallers(t *testing.T) {
	t.Parallel()

	p := New(WithWorkers(4), WithLogger(quietLogger()))
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Shutdown()
		}()
	}
	wg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	assert.True(t, p.closed)
}

func TestMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := NewMetrics(reg, "test", "pool")
	p := newTestPool(t, 2, WithMetrics(m))

	b := barrier.New(4)
	p.Submit(counted(b, func() error { return nil }))
	p.Submit(counted(b, func() error { return nil }))
	p.Submit(counted(b, func() error { return errors.New("x") }))
	p.Submit(counted(b, func() error { panic("y") }))
	b.Await()

	assert.Equal(t, 4.0, testutil.ToFloat64(m.JobsSubmitted))
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.JobsCompleted) == 2.0
	}, time.Second, time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobsFailed.WithLabelValues("execution")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobsFailed.WithLabelValues("unknown")))

	count, err := testutil.GatherAndCount(reg, "test_pool_job_latency_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMetrics_SubmitAfterShutdownCountsAsSubmittedAndDropped(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := NewMetrics(reg, "late", "pool")
	p := New(WithWorkers(1), WithLogger(quietLogger()), WithMetrics(m))
	p.Shutdown()

	p.Submit(par.Func(func() error { return nil }))
	p.Submit(par.Func(func() error { return nil }))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.JobsSubmitted))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.JobsDropped))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.JobsCompleted))
}

func TestMetrics_NilIsValid(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.submitted()
		m.dropped()
		m.failed("execution")
		m.started()
		m.finished(time.Now(), true)
	})
}

func TestFinish_RunsAfterFailureIsRecorded(t *testing.T) {
	t.Parallel()

	p := newTestPool(t, 4)
	for range 20 {
		b := barrier.New(1)
		p.Submit(counted(b, func() error { return errors.New("fails") }))
		b.Await()
		// no Eventually: the failure must already be visible
		require.Equal(t, 1, p.Failures())
		_, err := p.PopError()
		require.NoError(t, err)
	}
}

func TestFinish_CalledForDroppedJobs(t *testing.T) {
	t.Parallel()

	p := New(WithWorkers(1), WithLogger(quietLogger()))
	p.Shutdown()

	b := barrier.New(1)
	var ran atomic.Bool
	p.Submit(counted(b, func() error {
		ran.Store(true)
		return nil
	}))
	b.Await()
	assert.False(t, ran.Load())
}

type panickyFinish struct {
	par.Job
	value any
}

func (f panickyFinish) Finish() {
	panic(f.value)
}

func TestFinish_PanicsAreContained(t *testing.T) {
	t.Parallel()

	p := newTestPool(t, 1)
	p.Submit(panickyFinish{Job: par.Func(func() error { return nil }), value: "finish exploded"})
	p.Submit(panickyFinish{Job: par.Func(func() error { return nil }), value: errors.New("finish error")})

	b := barrier.New(1)
	p.Submit(counted(b, func() error { return nil }))
	b.Await()

	failures := p.Drain()
	require.Len(t, failures, 2)
	assert.Equal(t, par.KindUnknown, failures[0].Kind())
	assert.Equal(t, par.MsgFinishPanic, failures[0].Message())
	assert.Equal(t, par.KindCleanup, failures[1].Kind())
}
