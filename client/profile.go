package client

import (
	"context"
	"net/http"
)

// Me fetches the logged-in user's profile.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, "/users/me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// RegisterPushToken associates a push token with the session's user.
func (c *Client) RegisterPushToken(ctx context.Context, reg PushRegistration) error {
	return c.do(ctx, http.MethodPost, "/push/register", reg, nil)
}

// UnregisterPushToken detaches a push token so the device stops receiving
// notifications for the user.
func (c *Client) UnregisterPushToken(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/push/unregister", PushUnregistration{Token: token}, nil)
}
