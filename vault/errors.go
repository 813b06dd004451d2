package vault

import "errors"

var (
	// ErrNoCredentials indicates no complete, readable credential pair is cached.
	ErrNoCredentials = errors.New("no cached credentials")
	// ErrInvalidCredentials indicates an empty email or password was supplied.
	ErrInvalidCredentials = errors.New("email and password are required")
	// ErrDestroyed indicates the Credentials have already been wiped.
	ErrDestroyed = errors.New("credentials destroyed")
)
