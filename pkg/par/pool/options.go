package pool

import (
	"os"
	"runtime"

	"github.com/charmbracelet/log"
)

type Option func(*WorkerPool)

// WithWorkers fixes the number of worker goroutines. A value <= 0 is
// normalized to runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(p *WorkerPool) {
		p.workers = n
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(p *WorkerPool) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(p *WorkerPool) {
		p.metrics = m
	}
}

func DefaultWorkers() int {
	return runtime.NumCPU()
}

func defaultLogger() *log.Logger {
	return log.NewWithOptions(os.Stderr, log.Options{
		Level:  log.WarnLevel,
		Prefix: "pool",
	})
}
