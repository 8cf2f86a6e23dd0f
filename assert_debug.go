//go:build rthandle_debug

package rthandle

// debugChecks is true in builds tagged rthandle_debug.
const debugChecks = true

// violation turns a precondition or contract violation into a fatal
// assertion.
func violation(err error) error {
	panic(err)
}
