package par

// Job is a single unit of work. Ownership passes to the pool on submit.
type Job interface {
	// Run executes the job body
	Run() error
}

// Disposer is implemented by jobs that own resources. The pool calls
// Dispose exactly once after Run returns, or instead of Run when the job
// is dropped at shutdown.
type Disposer interface {
	Dispose() error
}

// Func adapts a closure to Job.
type Func func() error

func (f Func) Run() error {
	return f()
}

type disposable struct {
	Job
	dispose func() error
}

func (d disposable) Dispose() error {
	if inner, ok := d.Job.(Disposer); ok {
		if err := inner.Dispose(); err != nil {
			return err
		}
	}
	return d.dispose()
}

// WithDispose attaches a cleanup step to job. An existing Dispose on job
// runs first. The result does not forward Finish.
func WithDispose(job Job, dispose func() error) Job {
	return disposable{Job: job, dispose: dispose}
}

// Finisher is implemented by jobs that signal completion to someone else.
// The pool calls Finish last, after Run and Dispose and after any failure
// they produced has been recorded, on every path including a job dropped at
// shutdown. Whoever is woken by Finish therefore sees a complete failure
// sink.
type Finisher interface {
	Finish()
}
