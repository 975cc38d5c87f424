// Package decode coordinates the parallel phases of decoding an object-graph
// container.
//
// Phase one submits one job per type pool to allocate instance storage and
// waits on a barrier sized to the number of pools. Phase two submits one
// job per hull type; a hull job whose element count reaches the configured
// threshold, and whose type implements Splitter, registers its blocks on
// the same barrier and submits one job per block before it returns. The
// coordinator waits until every block has finished too.
//
// Each descriptor is touched by exactly one job at a time, and block jobs
// cover disjoint element ranges, so decoded structures need no locking.
// After each phase the pool's failure sink is drained; any failure makes
// the phase return a *DecodeError.
package decode
