// Package pool implements a fixed-size worker pool over a single FIFO job
// queue.
//
// Workers cycle through idle, running, and cleanup. Run, Dispose and Finish
// each execute under their own recover scope, so a failing job never stops its
// worker; the failure is appended to the pool's sink instead. The sink is
// never cleared automatically: callers inspect it with Failures, PopError,
// or Drain after each join point.
//
// Jobs that implement par.Finisher are finished only after their failures
// are in the sink, which makes Finish the place to signal a join point.
//
// Shutdown prefers stopping over consuming backlog. Jobs already picked up
// run to completion, jobs still queued are disposed without running.
package pool
