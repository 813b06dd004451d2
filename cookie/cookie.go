// Package cookie implements the durable, host-scoped cookie store that backs
// every request the client makes.
package cookie

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// SessionCookieMarker identifies the backend's session cookie. Any cookie
// whose name contains it, ignoring case, counts as the session cookie.
const SessionCookieMarker = "ci_session"

// MaxExpiry is the expiry given to cookies the server sent without one.
var MaxExpiry = time.UnixMilli(253402300799999)

const fieldCount = 8

// ErrUnencodable is returned for a cookie whose host, name, domain or path
// contains the '|' separator. RFC 6265 allows it in names, but the persisted
// tuple can only carry it in the value.
var ErrUnencodable = errors.New("cookie field contains '|'")

// Cookie is one HTTP cookie scoped to a host.
type Cookie struct {
	Host      string
	Name      string
	Value     string
	ExpiresAt time.Time
	Domain    string
	Path      string
	Secure    bool
	HTTPOnly  bool
}

// Expired reports whether the cookie must no longer be sent at now.
func (c Cookie) Expired(now time.Time) bool {
	return !c.ExpiresAt.After(now)
}

// IsSession reports whether c is the backend session cookie.
func (c Cookie) IsSession() bool {
	return strings.Contains(strings.ToLower(c.Name), SessionCookieMarker)
}

// Validate reports ErrUnencodable if c cannot survive Encode and Decode.
func (c Cookie) Validate() error {
	for _, f := range []struct{ name, v string }{
		{"host", c.Host}, {"name", c.Name}, {"domain", c.Domain}, {"path", c.Path},
	} {
		if strings.Contains(f.v, "|") {
			return fmt.Errorf("%w: %s %q", ErrUnencodable, f.name, f.v)
		}
	}
	return nil
}

// Encode renders the persisted form
// host|name|value|expiresAtEpochMillis|domain|path|secure|httpOnly.
func (c Cookie) Encode() string {
	return strings.Join([]string{
		c.Host,
		c.Name,
		c.Value,
		strconv.FormatInt(c.ExpiresAt.UnixMilli(), 10),
		c.Domain,
		c.Path,
		strconv.FormatBool(c.Secure),
		strconv.FormatBool(c.HTTPOnly),
	}, "|")
}

// Decode parses the persisted form produced by Encode for a valid cookie.
// Host and name occupy the first two fields and the last five are fixed, so
// a value containing '|' still decodes.
func Decode(s string) (Cookie, error) {
	parts := strings.Split(s, "|")
	n := len(parts)
	if n < fieldCount {
		return Cookie{}, fmt.Errorf("cookie entry has %d fields, want %d", n, fieldCount)
	}
	expiresMillis, err := strconv.ParseInt(parts[n-5], 10, 64)
	if err != nil {
		return Cookie{}, fmt.Errorf("cookie expiry: %w", err)
	}
	secure, err := strconv.ParseBool(parts[n-2])
	if err != nil {
		return Cookie{}, fmt.Errorf("cookie secure flag: %w", err)
	}
	httpOnly, err := strconv.ParseBool(parts[n-1])
	if err != nil {
		return Cookie{}, fmt.Errorf("cookie http-only flag: %w", err)
	}
	if parts[0] == "" || parts[1] == "" {
		return Cookie{}, fmt.Errorf("cookie entry missing host or name")
	}
	return Cookie{
		Host:      parts[0],
		Name:      parts[1],
		Value:     strings.Join(parts[2:n-5], "|"),
		ExpiresAt: time.UnixMilli(expiresMillis),
		Domain:    parts[n-4],
		Path:      parts[n-3],
		Secure:    secure,
		HTTPOnly:  httpOnly,
	}, nil
}

// FromHTTP converts a Set-Cookie value received from host. A negative
// Max-Age yields an already-expired cookie, which deletes any stored cookie
// of the same name.
func FromHTTP(host string, hc *http.Cookie, now time.Time) Cookie {
	c := Cookie{
		Host:     host,
		Name:     hc.Name,
		Value:    hc.Value,
		Domain:   hc.Domain,
		Path:     hc.Path,
		Secure:   hc.Secure,
		HTTPOnly: hc.HttpOnly,
	}
	switch {
	case hc.MaxAge < 0:
		c.ExpiresAt = time.UnixMilli(0)
	case hc.MaxAge > 0:
		c.ExpiresAt = now.Add(time.Duration(hc.MaxAge) * time.Second)
	case !hc.Expires.IsZero():
		c.ExpiresAt = hc.Expires
	default:
		c.ExpiresAt = MaxExpiry
	}
	if c.Domain == "" {
		c.Domain = host
	}
	if c.Path == "" {
		c.Path = "/"
	}
	return c
}

// HTTP returns the request form of the cookie.
func (c Cookie) HTTP() *http.Cookie {
	return &http.Cookie{Name: c.Name, Value: c.Value}
}
