package decode

import (
	"fmt"

	"github.com/ib-77/ogpar/pkg/par/barrier"
)

// counted is the part every phase job shares: a guard taken when the job is
// counted against the phase barrier. The pool calls Finish on every path,
// after the job's failures are recorded, so the coordinator never wakes to
// an incomplete sink.
type counted struct {
	guard *barrier.Guard
	ran   bool
}

func (c *counted) enter() {
	c.ran = true
}

// Dispose reports a job the pool discarded at shutdown.
func (c *counted) Dispose() error {
	if c.ran {
		return nil
	}
	return ErrDropped
}

func (c *counted) Finish() {
	c.guard.Release()
}

type allocateInstances struct {
	counted
	pool TypePool
}

func (j *allocateInstances) Run() error {
	j.enter()

	if err := j.pool.AllocateInstances(); err != nil {
		return fmt.Errorf("allocate instances of %s: %w", j.pool.Name(), err)
	}
	return nil
}

type allocateHull struct {
	counted
	hull    Hull
	barrier *barrier.Barrier
	d       *Decoder
}

func (j *allocateHull) Run() error {
	j.enter()

	h := j.hull
	blocks, err := j.split()
	if err != nil {
		return err
	}

	switch {
	case len(blocks) > 1:
		// still counted ourselves, so the barrier cannot drain before
		// the blocks are registered
		j.barrier.RegisterMore(len(blocks))
		for _, b := range blocks {
			j.d.submit(&allocateBlock{
				counted: counted{guard: j.barrier.Guard()},
				hull:    h.Type,
				block:   b,
			})
		}
		j.d.blocks.Add(int64(len(blocks)))
		j.d.logger.Debug("hull split", "hull", h.Type.Name(), "count", h.Count, "blocks", len(blocks))
		return nil
	case len(blocks) == 1:
		return allocate(h.Type, blocks[0])
	}

	return allocate(h.Type, Block{In: h.In, First: 0, Count: h.Count})
}

func (j *allocateHull) split() ([]Block, error) {
	threshold := j.d.cfg.HullSplitThreshold
	if threshold <= 0 || j.hull.Count < threshold {
		return nil, nil
	}
	s, ok := j.hull.Type.(Splitter)
	if !ok {
		return nil, nil
	}
	blocks, err := s.Split(j.hull.In, j.hull.Count, j.d.cfg.HullBlockSize)
	if err != nil {
		return nil, fmt.Errorf("split hull %s: %w", j.hull.Type.Name(), err)
	}
	if err := tiles(blocks, j.hull.Count); err != nil {
		return nil, fmt.Errorf("split hull %s: %w", j.hull.Type.Name(), err)
	}
	return blocks, nil
}

// tiles checks that blocks cover [0, count) in order with no gap or overlap.
// An empty result means the splitter declined and is left alone.
func tiles(blocks []Block, count int) error {
	if len(blocks) == 0 {
		return nil
	}
	next := 0
	for i, b := range blocks {
		if b.First != next || b.Count <= 0 {
			return fmt.Errorf("%w: block %d is [%d, %d), expected to start at %d",
				ErrSplit, i, b.First, b.First+b.Count, next)
		}
		next += b.Count
	}
	if next != count {
		return fmt.Errorf("%w: blocks end at %d of %d", ErrSplit, next, count)
	}
	return nil
}

type allocateBlock struct {
	counted
	hull  HullType
	block Block
}

func (j *allocateBlock) Run() error {
	j.enter()

	return allocate(j.hull, j.block)
}

func allocate(h HullType, b Block) error {
	if err := h.Allocate(b.In, b.First, b.Count); err != nil {
		return fmt.Errorf("allocate hull %s [%d, %d): %w", h.Name(), b.First, b.First+b.Count, err)
	}
	return nil
}
