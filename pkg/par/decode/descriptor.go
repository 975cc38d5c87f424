package decode

import (
	"context"

	"github.com/ib-77/ogpar/pkg/par/stream"
)

// TypePool describes one class of decoded objects and owns its instance
// storage. AllocateInstances is called from exactly one job.
type TypePool interface {
	Name() string
	AllocateInstances() error
}

// HullType describes a variable-length container type. Allocate decodes
// elements [first, first+count) from in; concurrent calls always cover
// disjoint ranges.
type HullType interface {
	Name() string
	Allocate(in *stream.Mapped, first, count int) error
}

// Splitter is implemented by hull types whose data can be decoded in
// independent blocks. blockSize is a hint for the number of elements per
// block.
type Splitter interface {
	Split(in *stream.Mapped, count, blockSize int) ([]Block, error)
}

// Block is one independently decodable slice of a hull.
type Block struct {
	In    *stream.Mapped
	First int
	Count int
}

// Hull is the phase two input for one hull type: its element count and a
// reader positioned at its data.
type Hull struct {
	Type  HullType
	Count int
	In    *stream.Mapped
}

// Source is the read-only view of decoded state handed to the Initializer.
type Source interface {
	TypePools() []TypePool
	Hulls() []Hull
}

// Initializer runs the sequential decode steps once both parallel phases
// have completed without failure.
type Initializer func(ctx context.Context, src Source) error
