package client

// User is the identity record the backend returns on login and profile fetch.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	FamilyID  string `json:"family_id,omitempty"`
	Role      string `json:"role,omitempty"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is the body the login endpoint answers with.
type LoginResponse struct {
	Success bool    `json:"success"`
	User    *User   `json:"user"`
	Error   *string `json:"error"`
}

// ForgotPasswordRequest is the body of POST /auth/forgot-password.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest is the body of POST /auth/reset-password.
type ResetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// SetupRequest is the body of POST /auth/setup, completing an invited account.
type SetupRequest struct {
	Token     string `json:"token"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// PushRegistration is the body of POST /push/register.
type PushRegistration struct {
	Token          string `json:"token"`
	Platform       string `json:"platform"`
	InstallationID string `json:"installation_id"`
}

// PushUnregistration is the body of POST /push/unregister.
type PushUnregistration struct {
	Token string `json:"token"`
}

// StatusResponse is the generic {success, error} body.
type StatusResponse struct {
	Success bool    `json:"success"`
	Error   *string `json:"error,omitempty"`
}

// ErrorResponse is the body of a non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}
