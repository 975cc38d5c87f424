package decode

import (
	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ib-77/ogpar/pkg/par/config"
	"github.com/ib-77/ogpar/pkg/par/pool"
	"github.com/ib-77/ogpar/pkg/par/stream"
)

type Option func(*Decoder)

// WithPool runs jobs on a shared pool. The decoder does not shut it down.
// Each phase drains the whole failure sink, so the pool must not be used by
// anything else while a decode runs: failures left by other submitters are
// reported as failures of the current phase.
func WithPool(p *pool.WorkerPool) Option {
	return func(d *Decoder) {
		d.pool = p
	}
}

func WithConfig(cfg config.Config) Option {
	return func(d *Decoder) {
		d.cfg = cfg
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(d *Decoder) {
		d.logger = logger
	}
}

func WithInitializer(init Initializer) Option {
	return func(d *Decoder) {
		d.init = init
	}
}

// WithOwnedStream hands the decoder a stream to close once every job that
// may read from it has finished.
func WithOwnedStream(in *stream.Mapped) Option {
	return func(d *Decoder) {
		d.owned = in
	}
}

// WithRegisterer registers pool metrics with reg when the config enables
// them. Only used when the decoder creates its own pool.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(d *Decoder) {
		d.registerer = reg
	}
}
