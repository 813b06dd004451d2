package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	// ErrInvalidCredentials indicates the backend rejected an email/password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrSessionExpired indicates a 401 from a non-authentication endpoint.
	ErrSessionExpired = errors.New("session expired")
	// ErrTransport indicates the request never produced an HTTP response.
	ErrTransport = errors.New("network unavailable")
	// ErrServer indicates a 5xx response.
	ErrServer = errors.New("server error")
	// ErrRequest indicates any other non-2xx response.
	ErrRequest = errors.New("request rejected")
)

// APIError is a non-2xx response from the backend. It unwraps to one of
// ErrInvalidCredentials, ErrSessionExpired, ErrServer or ErrRequest.
type APIError struct {
	Status  int
	Message string
	kind    error
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s (status %d)", e.kind, e.Status)
	}
	return fmt.Sprintf("%s (status %d): %s", e.kind, e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.kind
}

// TransportKind classifies a transport failure.
type TransportKind int

const (
	TransportIO TransportKind = iota
	TransportTimeout
	TransportDNS
	TransportConnect
	TransportCanceled
)

func (k TransportKind) String() string {
	switch k {
	case TransportTimeout:
		return "timeout"
	case TransportDNS:
		return "dns"
	case TransportConnect:
		return "connect"
	case TransportCanceled:
		return "canceled"
	default:
		return "io"
	}
}

// TransportError wraps a failure that happened before any response arrived.
// It matches both ErrTransport and the underlying cause.
type TransportError struct {
	Kind TransportKind
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s (%s): %v", ErrTransport, e.Kind, e.Err)
}

func (e *TransportError) Unwrap() []error {
	return []error{ErrTransport, e.Err}
}

func newTransportError(err error) *TransportError {
	var dnsErr *net.DNSError
	var opErr *net.OpError
	var netErr net.Error
	kind := TransportIO
	switch {
	case errors.Is(err, context.Canceled):
		kind = TransportCanceled
	case errors.Is(err, context.DeadlineExceeded):
		kind = TransportTimeout
	case errors.As(err, &dnsErr):
		kind = TransportDNS
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = TransportTimeout
	case errors.As(err, &opErr) && opErr.Op == "dial":
		kind = TransportConnect
	}
	return &TransportError{Kind: kind, Err: err}
}

func statusError(status int, message string, authEndpoint bool) *APIError {
	e := &APIError{Status: status, Message: message}
	switch {
	case status == http.StatusUnauthorized && authEndpoint:
		e.kind = ErrInvalidCredentials
	case status == http.StatusUnauthorized:
		e.kind = ErrSessionExpired
	case status >= 500:
		e.kind = ErrServer
	default:
		e.kind = ErrRequest
	}
	return e
}

// Message maps err to the text shown to the user. Transport failures and
// authentication failures always read differently.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var te *TransportError
	if errors.As(err, &te) {
		switch te.Kind {
		case TransportTimeout:
			return "The server took too long to respond. Please try again."
		case TransportDNS:
			return "Could not find the server. Check your internet connection."
		case TransportConnect:
			return "Could not reach the server. Please try again later."
		case TransportCanceled:
			return "The request was canceled."
		default:
			return "No internet connection. Check your connection and try again."
		}
	}
	var ae *APIError
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		if errors.As(err, &ae) && ae.Message != "" {
			return ae.Message
		}
		return "Incorrect email or password."
	case errors.Is(err, ErrSessionExpired):
		return "Your session has expired. Please log in again."
	case errors.Is(err, ErrServer):
		return "Something went wrong on our side. Please try again later."
	case errors.As(err, &ae) && ae.Message != "":
		return ae.Message
	default:
		return "Something went wrong. Please try again."
	}
}
