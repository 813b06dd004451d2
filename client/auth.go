package client

import (
	"context"
	"net/http"
)

// Login exchanges an email and password for a session. On success the
// session cookie has been stored in the jar by the time Login returns.
// Rejected credentials yield an *APIError matching ErrInvalidCredentials
// whose Message carries the backend's explanation.
func (c *Client) Login(ctx context.Context, email, password string) (*User, error) {
	var resp LoginResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", LoginRequest{Email: email, Password: password}, &resp)
	if err != nil {
		return nil, err
	}
	if !resp.Success || resp.User == nil {
		msg := "Incorrect email or password."
		if resp.Error != nil && *resp.Error != "" {
			msg = *resp.Error
		}
		return nil, &APIError{Status: http.StatusOK, Message: msg, kind: ErrInvalidCredentials}
	}
	return resp.User, nil
}

// Logout invalidates the session on the backend.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

// ForgotPassword asks the backend to email a reset link.
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	return c.doStatus(ctx, "/auth/forgot-password", ForgotPasswordRequest{Email: email})
}

// ResetPassword sets a new password using a reset token.
func (c *Client) ResetPassword(ctx context.Context, token, password string) error {
	return c.doStatus(ctx, "/auth/reset-password", ResetPasswordRequest{Token: token, Password: password})
}

// Setup completes an invited account.
func (c *Client) Setup(ctx context.Context, req SetupRequest) error {
	return c.doStatus(ctx, "/auth/setup", req)
}

// doStatus posts in and turns a {success:false, error} body into an APIError.
func (c *Client) doStatus(ctx context.Context, path string, in any) error {
	var resp StatusResponse
	if err := c.do(ctx, http.MethodPost, path, in, &resp); err != nil {
		return err
	}
	if !resp.Success {
		msg := ""
		if resp.Error != nil {
			msg = *resp.Error
		}
		return &APIError{Status: http.StatusOK, Message: msg, kind: ErrRequest}
	}
	return nil
}
