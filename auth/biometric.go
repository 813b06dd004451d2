package auth

import (
	"errors"
	"fmt"
)

// BiometricKind classifies a failed biometric prompt.
type BiometricKind int

const (
	BiometricNotRecognized BiometricKind = iota
	BiometricCanceled
	BiometricNegativeButton
	BiometricLockout
	BiometricLockoutPermanent
	BiometricHardwareUnavailable
	BiometricNoneEnrolled
	BiometricOther
)

func (k BiometricKind) String() string {
	switch k {
	case BiometricNotRecognized:
		return "not_recognized"
	case BiometricCanceled:
		return "canceled"
	case BiometricNegativeButton:
		return "negative_button"
	case BiometricLockout:
		return "lockout"
	case BiometricLockoutPermanent:
		return "lockout_permanent"
	case BiometricHardwareUnavailable:
		return "hardware_unavailable"
	case BiometricNoneEnrolled:
		return "none_enrolled"
	default:
		return "other"
	}
}

// retryable kinds consume one attempt and keep the prompt open.
func (k BiometricKind) retryable() bool {
	return k == BiometricNotRecognized || k == BiometricOther
}

// message is what the user sees when the prompt ends with this kind. An
// empty message means fall back to the password form silently.
func (k BiometricKind) message() string {
	switch k {
	case BiometricCanceled, BiometricNegativeButton:
		return ""
	case BiometricLockout:
		return "Too many attempts. Try again later or use your password."
	case BiometricLockoutPermanent:
		return "Biometric unlock is locked. Use your password."
	case BiometricHardwareUnavailable:
		return "Biometric hardware is unavailable. Use your password."
	case BiometricNoneEnrolled:
		return "No fingerprint or face is enrolled on this device. Use your password."
	default:
		return "Biometric check failed. Use your password."
	}
}

// BiometricError is reported by the platform prompt.
type BiometricError struct {
	Kind   BiometricKind
	Detail string
}

func (e *BiometricError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("biometric: %s", e.Kind)
	}
	return fmt.Sprintf("biometric: %s: %s", e.Kind, e.Detail)
}

func biometricKind(err error) BiometricKind {
	var be *BiometricError
	if errors.As(err, &be) {
		return be.Kind
	}
	return BiometricOther
}
