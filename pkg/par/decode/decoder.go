package decode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ib-77/ogpar/pkg/par"
	"github.com/ib-77/ogpar/pkg/par/barrier"
	"github.com/ib-77/ogpar/pkg/par/config"
	"github.com/ib-77/ogpar/pkg/par/pool"
	"github.com/ib-77/ogpar/pkg/par/stream"
)

// Decoder coordinates the parallel allocation phases of a decode. Jobs hold
// unowned references to its descriptors and streams, so Close waits for
// every job before anything is released.
type Decoder struct {
	pools []TypePool
	hulls []Hull

	cfg        config.Config
	logger     *log.Logger
	init       Initializer
	owned      *stream.Mapped
	registerer prometheus.Registerer

	pool     *pool.WorkerPool
	ownsPool bool

	// set by New when the config is unusable; every phase reports it
	err error

	mu       sync.Mutex
	barriers []*barrier.Barrier
	closed   bool

	instanceJobs atomic.Int64
	hullJobs     atomic.Int64
	blocks       atomic.Int64
}

// Stats counts the jobs a decoder has submitted.
type Stats struct {
	InstanceJobs int
	HullJobs     int
	BlockJobs    int
}

// New builds a decoder. A config rejected by config.Validate is reported by
// the first phase that runs, and no pool is started for it.
func New(pools []TypePool, hulls []Hull, opts ...Option) *Decoder {
	d := &Decoder{
		pools: pools,
		hulls: hulls,
		cfg:   config.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = d.cfg.Logger(os.Stderr, "decode")
	}
	if err := d.cfg.Validate(); err != nil {
		d.err = fmt.Errorf("decode: %w", err)
		d.logger.Error("invalid config", "err", err)
		return d
	}
	if d.pool == nil {
		poolOpts := []pool.Option{
			pool.WithWorkers(d.cfg.Workers),
			pool.WithLogger(d.logger.WithPrefix("pool")),
		}
		if d.cfg.Metrics.Enabled && d.registerer != nil {
			poolOpts = append(poolOpts, pool.WithMetrics(
				pool.NewMetrics(d.registerer, d.cfg.Metrics.Namespace, d.cfg.Metrics.Subsystem)))
		}
		d.pool = pool.New(poolOpts...)
		d.ownsPool = true
	}
	return d
}

func (d *Decoder) TypePools() []TypePool {
	return d.pools
}

func (d *Decoder) Hulls() []Hull {
	return d.hulls
}

func (d *Decoder) Stats() Stats {
	return Stats{
		InstanceJobs: int(d.instanceJobs.Load()),
		HullJobs:     int(d.hullJobs.Load()),
		BlockJobs:    int(d.blocks.Load()),
	}
}

// Decode runs instance allocation, then hull allocation, then the
// initializer. ctx is only consulted between phases.
func (d *Decoder) Decode(ctx context.Context) error {
	if err := d.AllocateInstances(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("decode: %s: %w", PhaseHulls, err)
	}
	if err := d.AllocateHulls(); err != nil {
		return err
	}
	if d.init == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("decode: %s: %w", PhaseInitialize, err)
	}
	if err := d.init(ctx, d); err != nil {
		return fmt.Errorf("decode: %s: %w", PhaseInitialize, err)
	}
	return nil
}

// AllocateInstances runs one job per type pool and waits for all of them.
// Later steps assign object identities, which requires every instance
// array to exist.
func (d *Decoder) AllocateInstances() error {
	b, err := d.begin(PhaseInstances, len(d.pools))
	if err != nil {
		return err
	}

	jobs := make([]par.Job, 0, len(d.pools))
	for _, p := range d.pools {
		jobs = append(jobs, &allocateInstances{
			counted: counted{guard: b.Guard()},
			pool:    p,
		})
	}
	for _, j := range jobs {
		d.submit(j)
	}
	d.instanceJobs.Add(int64(len(jobs)))

	b.Await()
	return d.check(PhaseInstances)
}

// AllocateHulls runs one job per hull type. A hull job may split its work
// into blocks; the wait covers those as well.
func (d *Decoder) AllocateHulls() error {
	b, err := d.begin(PhaseHulls, len(d.hulls))
	if err != nil {
		return err
	}

	jobs := make([]par.Job, 0, len(d.hulls))
	for _, h := range d.hulls {
		jobs = append(jobs, &allocateHull{
			counted: counted{guard: b.Guard()},
			hull:    h,
			barrier: b,
			d:       d,
		})
	}
	for _, j := range jobs {
		d.submit(j)
	}
	d.hullJobs.Add(int64(len(jobs)))

	b.Await()
	return d.check(PhaseHulls)
}

// Close waits for every job the decoder submitted, stops an owned pool and
// closes an owned stream. It is safe to call more than once.
func (d *Decoder) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	barriers := d.barriers
	d.barriers = nil
	d.mu.Unlock()

	for _, b := range barriers {
		b.Await()
	}
	if d.ownsPool {
		d.pool.Shutdown()
	}
	if d.owned != nil {
		if err := d.owned.Close(); err != nil {
			return fmt.Errorf("decode: close stream: %w", err)
		}
	}
	return nil
}

func (d *Decoder) begin(phase Phase, count int) (*barrier.Barrier, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, fmt.Errorf("%w: %s", ErrClosed, phase)
	}
	if d.err != nil {
		return nil, d.err
	}
	b := barrier.New(count)
	d.barriers = append(d.barriers, b)
	d.logger.Debug("phase started", "phase", phase, "jobs", count)
	return b, nil
}

func (d *Decoder) submit(j par.Job) {
	d.pool.Submit(j)
}

// check turns anything left in the pool's sink into a phase error.
func (d *Decoder) check(phase Phase) error {
	failures := d.pool.Drain()
	if len(failures) == 0 {
		d.logger.Debug("phase completed", "phase", phase)
		return nil
	}
	d.logger.Error("phase failed", "phase", phase, "failures", len(failures))
	return &DecodeError{Phase: phase, Failures: failures}
}

// IsDropped reports whether err contains a failure caused by a job the
// pool discarded at shutdown.
func IsDropped(err error) bool {
	return errors.Is(err, ErrDropped)
}
