//go:build !rthandle_debug

package rthandle

const debugChecks = false

// violation reports a precondition or contract violation to the caller.
// Callers must not rely on any value returned alongside the error.
func violation(err error) error {
	return err
}
