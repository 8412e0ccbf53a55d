package core

import "errors"

var (
	// ErrMalformedSpec reports a missing or unusable required field.
	ErrMalformedSpec = errors.New("malformed specification")
	// ErrNonPhysical reports a sampled or derived quantity outside its
	// physical domain that no clamp rule can repair (Tc <= Tb, negative
	// power, NaN).
	ErrNonPhysical = errors.New("non-physical value")
	// ErrIntegration reports a band integral that failed to converge or
	// produced a non-finite value.
	ErrIntegration = errors.New("band integration failed")
)
