package par

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Kind classifies where a job failed.
type Kind int

const (
	KindExecution Kind = iota
	KindCleanup
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindExecution:
		return "execution"
	case KindCleanup:
		return "cleanup"
	case KindUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

var (
	ErrExecution = errors.New("job execution failed")
	ErrCleanup   = errors.New("job cleanup failed")
	ErrUnknown   = errors.New("job failed with an unknown failure")
)

// Fixed diagnostics for panics that do not carry an error value.
const (
	MsgRunPanic     = "run panicked with a non-error value"
	MsgDisposePanic = "dispose panicked with a non-error value"
	MsgFinishPanic  = "finish panicked with a non-error value"
)

// Failure is a captured job failure. Failures are recorded by the pool,
// never thrown across the worker boundary.
type Failure struct {
	id        uuid.UUID
	jobID     uuid.UUID
	createdAt time.Time
	kind      Kind
	message   string
	cause     error
}

func Execution(jobID uuid.UUID, err error) Failure {
	return newFailure(jobID, KindExecution, err.Error(), err)
}

func Cleanup(jobID uuid.UUID, err error) Failure {
	return newFailure(jobID, KindCleanup, err.Error(), err)
}

func Unknown(jobID uuid.UUID, msg string) Failure {
	return newFailure(jobID, KindUnknown, msg, nil)
}

func newFailure(jobID uuid.UUID, kind Kind, msg string, cause error) Failure {
	return Failure{
		id:        uuid.New(),
		jobID:     jobID,
		createdAt: time.Now().UTC(),
		kind:      kind,
		message:   msg,
		cause:     cause,
	}
}

func (f Failure) Id() uuid.UUID {
	return f.id
}

func (f Failure) JobId() uuid.UUID {
	return f.jobID
}

func (f Failure) CreatedAt() time.Time {
	return f.createdAt
}

func (f Failure) Kind() Kind {
	return f.kind
}

func (f Failure) Message() string {
	return f.message
}

func (f Failure) IsEmpty() bool {
	return f.id == uuid.Nil
}

func (f Failure) Error() string {
	return f.kind.String() + " failure: " + f.message
}

func (f Failure) Unwrap() error {
	return f.cause
}

// Is matches the sentinel of the failure's kind, so callers can write
// errors.Is(err, par.ErrCleanup).
func (f Failure) Is(target error) bool {
	switch f.kind {
	case KindExecution:
		return target == ErrExecution
	case KindCleanup:
		return target == ErrCleanup
	case KindUnknown:
		return target == ErrUnknown
	}
	return false
}
