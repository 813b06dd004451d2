package cookie

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	c := Cookie{
		Host:      "api.kinboard.test",
		Name:      "ci_session",
		Value:     "a|b|c",
		ExpiresAt: time.UnixMilli(1767225600000),
		Domain:    "kinboard.test",
		Path:      "/",
		Secure:    true,
		HTTPOnly:  true,
	}

	encoded := c.Encode()
	assert.Equal(t, "api.kinboard.test|ci_session|a|b|c|1767225600000|kinboard.test|/|true|true", encoded)

	decoded, err := Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, c.Value, decoded.Value)
	assert.True(t, c.ExpiresAt.Equal(decoded.ExpiresAt))
	assert.Equal(t, c.Host, decoded.Host)
	assert.Equal(t, c.Domain, decoded.Domain)
	assert.True(t, decoded.Secure)
	assert.True(t, decoded.HTTPOnly)
}

func TestDecodeRejectsMalformed(t *testing.T) {
	for _, entry := range []string{
		"",
		"host|name|value",
		"host|name|value|not-a-number|d|/|false|false",
		"host|name|value|1|d|/|maybe|false",
		"host|name|value|1|d|/|false|maybe",
		"|name|value|1|d|/|false|false",
	} {
		_, err := Decode(entry)
		assert.Error(t, err, "entry %q", entry)
	}
}

func TestValidateRejectsSeparator(t *testing.T) {
	ok := Cookie{Host: "h", Name: "ci_session", Value: "a|b", Domain: "h", Path: "/"}
	require.NoError(t, ok.Validate())

	for _, c := range []Cookie{
		{Host: "h", Name: "a|b", Domain: "h", Path: "/"},
		{Host: "h|x", Name: "a", Domain: "h", Path: "/"},
		{Host: "h", Name: "a", Domain: "h|x", Path: "/"},
		{Host: "h", Name: "a", Domain: "h", Path: "/x|y"},
	} {
		assert.ErrorIs(t, c.Validate(), ErrUnencodable, "%+v", c)
	}
}

func TestIsSession(t *testing.T) {
	assert.True(t, Cookie{Name: "ci_session"}.IsSession())
	assert.True(t, Cookie{Name: "KINBOARD_CI_SESSION_V2"}.IsSession())
	assert.False(t, Cookie{Name: "csrf_token"}.IsSession())
}

func TestFromHTTP(t *testing.T) {
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

	t.Run("MaxAge", func(t *testing.T) {
		c := FromHTTP("h", &http.Cookie{Name: "a", Value: "1", MaxAge: 60}, now)
		assert.Equal(t, now.Add(time.Minute), c.ExpiresAt)
		assert.Equal(t, "h", c.Domain)
		assert.Equal(t, "/", c.Path)
	})

	t.Run("NegativeMaxAgeExpires", func(t *testing.T) {
		c := FromHTTP("h", &http.Cookie{Name: "a", MaxAge: -1}, now)
		assert.True(t, c.Expired(now))
	})

	t.Run("Expires", func(t *testing.T) {
		exp := now.Add(2 * time.Hour)
		c := FromHTTP("h", &http.Cookie{Name: "a", Expires: exp, Domain: "example.test", Path: "/api"}, now)
		assert.Equal(t, exp, c.ExpiresAt)
		assert.Equal(t, "example.test", c.Domain)
		assert.Equal(t, "/api", c.Path)
	})

	t.Run("SessionCookieNeverExpires", func(t *testing.T) {
		c := FromHTTP("h", &http.Cookie{Name: "ci_session"}, now)
		assert.Equal(t, MaxExpiry, c.ExpiresAt)
		assert.False(t, c.Expired(now))
	})
}
