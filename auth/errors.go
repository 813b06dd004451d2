package auth

import "errors"

var (
	// ErrBiometricNotEnabled is returned when a biometric path is taken but
	// no usable credentials are cached.
	ErrBiometricNotEnabled = errors.New("biometric unlock not enabled")
	// ErrNotAuthenticated is returned by operations that need a live session.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrInvalidTransition is returned when an operation does not apply to
	// the current state.
	ErrInvalidTransition = errors.New("invalid state transition")
)
