// Package par holds the job abstraction and the failure taxonomy shared by
// the worker pool, the completion barrier, and the parallel decoder.
//
// A Job is a unit of work handed to the pool. Jobs that own resources also
// implement Disposer. Anything a job reports, by returning an error or by
// panicking, is normalized into a Failure of kind execution, cleanup, or
// unknown and appended to the pool's failure sink.
package par
