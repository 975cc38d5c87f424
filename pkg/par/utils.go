package par

import "fmt"

// Recovered converts a recovered panic value into an error. ok is false
// when the value is not an error.
func Recovered(r any) (err error, ok bool) {
	if e, isErr := r.(error); isErr {
		return fmt.Errorf("panic: %w", e), true
	}
	return nil, false
}
