package auth

// State is the user session state derived by the Orchestrator.
type State int

const (
	Unauthenticated State = iota
	AuthenticatingBiometric
	AutoLoggingIn
	Authenticated
	// Expired means the backend dropped the session; the shell shows a
	// notice and calls AcknowledgeExpiry.
	Expired
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case AuthenticatingBiometric:
		return "authenticating_biometric"
	case AutoLoggingIn:
		return "auto_logging_in"
	case Authenticated:
		return "authenticated"
	case Expired:
		return "expired"
	default:
		return "unknown"
	}
}

// Purpose says what a successful biometric check leads to.
type Purpose int

const (
	// PurposeUnlock reveals an app whose session is still valid.
	PurposeUnlock Purpose = iota + 1
	// PurposeAutoLogin logs in again with the cached credentials.
	PurposeAutoLogin
)

func (p Purpose) String() string {
	switch p {
	case PurposeUnlock:
		return "unlock"
	case PurposeAutoLogin:
		return "auto_login"
	default:
		return "none"
	}
}
