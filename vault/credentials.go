package vault

import (
	"github.com/awnumar/memguard"

	"github.com/kinboard/kinboard/internal/util"
)

// Credentials is a cached (email, password) pair. The password is held in a
// memguard Enclave (encrypted while in memory) and is only decrypted for the
// duration of Password. Call Destroy when done.
type Credentials struct {
	email     string
	password  *memguard.Enclave
	destroyed bool
}

// NewCredentials builds Credentials from email and password. The password
// slice is wiped.
func NewCredentials(email string, password []byte) (*Credentials, error) {
	if email == "" || len(password) == 0 {
		util.WipeBytes(password)
		return nil, ErrInvalidCredentials
	}
	return &Credentials{
		email:    email,
		password: memguard.NewEnclave(password),
	}, nil
}

// Email returns the cached account email.
func (c *Credentials) Email() string {
	if c == nil || c.destroyed {
		return ""
	}
	return c.email
}

// Password decrypts and returns the cached password.
func (c *Credentials) Password() (string, error) {
	if c == nil || c.destroyed {
		return "", ErrDestroyed
	}
	buf, err := c.password.Open()
	if err != nil {
		return "", err
	}
	defer buf.Destroy()
	return string(buf.Bytes()), nil
}

// Destroy drops the password enclave. The Credentials must not be reused.
func (c *Credentials) Destroy() {
	if c == nil || c.destroyed {
		return
	}
	c.password = nil
	c.email = ""
	c.destroyed = true
}
