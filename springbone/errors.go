package springbone

import "github.com/pkg/errors"

var (
	// ErrInvalidParameter is returned for negative or non finite parameters
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrInvalidGeometry is returned for colliders with degenerate shapes
	ErrInvalidGeometry = errors.New("invalid collider geometry")
	// ErrDegenerateBone is returned for bones of zero rest length
	ErrDegenerateBone = errors.New("degenerate bone")
	// ErrInvalidTopology is returned for chains that are not a simple path
	ErrInvalidTopology = errors.New("invalid chain topology")
	// ErrUnresolved is returned for references to unknown bones or groups
	ErrUnresolved = errors.New("unresolved reference")
	// ErrTransientNumericFault marks per tick faults. It never leaves the solver
	// and is only reported through Faults() and the log.
	ErrTransientNumericFault = errors.New("transient numeric fault")
)
