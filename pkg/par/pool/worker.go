package pool

import (
	"time"

	"github.com/ib-77/ogpar/pkg/par"
)

func (p *WorkerPool) work(n int) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker", n)

	for {
		p.mu.Lock()
		// loop, not a single check: wakeups can be spurious
		for !p.shutdown && len(p.queue) == 0 {
			p.cond.Wait()
		}

		// shutdown wins over remaining work
		if p.shutdown {
			p.mu.Unlock()
			p.logger.Debug("worker stopped", "worker", n)
			return
		}

		next := p.queue[0]
		p.queue[0] = entry{}
		p.queue = p.queue[1:]
		p.mu.Unlock()

		p.execute(next)
		p.dispose(next)
		p.finish(next)
	}
}

func (p *WorkerPool) execute(e entry) {
	start := time.Now()
	ok := false
	p.metrics.started()

	defer func() {
		if r := recover(); r != nil {
			if err, isErr := par.Recovered(r); isErr {
				p.record(par.Execution(e.id, err))
			} else {
				p.record(par.Unknown(e.id, par.MsgRunPanic))
			}
		}
		p.metrics.finished(start, ok)
	}()

	if err := e.job.Run(); err != nil {
		p.record(par.Execution(e.id, err))
		return
	}
	ok = true
}

func (p *WorkerPool) dispose(e entry) {
	d, isDisposer := e.job.(par.Disposer)
	if !isDisposer {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			if err, isErr := par.Recovered(r); isErr {
				p.record(par.Cleanup(e.id, err))
			} else {
				p.record(par.Unknown(e.id, par.MsgDisposePanic))
			}
		}
	}()

	if err := d.Dispose(); err != nil {
		p.record(par.Cleanup(e.id, err))
	}
}

func (p *WorkerPool) finish(e entry) {
	f, isFinisher := e.job.(par.Finisher)
	if !isFinisher {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			if err, isErr := par.Recovered(r); isErr {
				p.record(par.Cleanup(e.id, err))
			} else {
				p.record(par.Unknown(e.id, par.MsgFinishPanic))
			}
		}
	}()

	f.Finish()
}
