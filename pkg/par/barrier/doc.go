// Package barrier provides a counting completion gate whose required count
// can grow while it is in use.
//
// The coordinator creates a Barrier with the number of jobs it submits,
// then awaits it. Every participating job takes a Guard at the start of its
// body and defers its Release, so the count drops exactly once on every
// exit path. A running job that spawns sub-jobs calls RegisterMore before
// its own guard fires; because registration and the zero check share one
// lock, Await never observes a transient zero.
//
// Forgetting to submit a job after registering it leaves the count above
// zero forever. AwaitContext turns that into an error instead of a hang.
package barrier
