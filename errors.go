package rthandle

import (
	"errors"
	"fmt"
)

// Failure classes. Every error returned by this package wraps one of these
// so callers can branch with errors.Is.
var (
	// ErrPreconditionViolation is returned by a view accessor whose backing
	// requirement is not met.
	ErrPreconditionViolation = errors.New("rthandle: precondition violation")

	// ErrAllocationFailure is returned when a backing texture could not be
	// created. No handle is returned alongside it.
	ErrAllocationFailure = errors.New("rthandle: allocation failure")

	// ErrContractViolation is returned for misuse that the package happens to
	// detect, such as releasing a handle twice.
	ErrContractViolation = errors.New("rthandle: contract violation")
)

// Specific errors.
var (
	// ErrNoBacking is returned when a handle has neither an owned texture nor
	// an external texture alias.
	ErrNoBacking = fmt.Errorf("%w: handle has no texture backing", ErrPreconditionViolation)

	// ErrNotOwned is returned when a render-target view is requested from a
	// handle that does not own its texture.
	ErrNotOwned = fmt.Errorf("%w: handle does not own a render target", ErrPreconditionViolation)

	// ErrHandleReleased is returned when using a handle after Release.
	ErrHandleReleased = fmt.Errorf("%w: handle has been released", ErrContractViolation)

	// ErrInvalidSize is returned when a computed or requested size is not
	// allocatable.
	ErrInvalidSize = fmt.Errorf("%w: invalid size", ErrAllocationFailure)

	// ErrSizeLimit is returned when a size exceeds the platform's maximum
	// texture dimension.
	ErrSizeLimit = fmt.Errorf("%w: size exceeds platform limit", ErrAllocationFailure)

	// ErrInvalidDescriptor is returned for descriptors that cannot describe a
	// texture, for example multisampled random-write targets.
	ErrInvalidDescriptor = fmt.Errorf("%w: invalid descriptor", ErrAllocationFailure)

	// ErrRegistryClosed is returned when allocating from a closed registry.
	ErrRegistryClosed = errors.New("rthandle: registry closed")

	// ErrNilDevice is returned when a registry is created without a device.
	ErrNilDevice = errors.New("rthandle: device is nil")
)
