package util

import (
	"bytes"
	"errors"
	"testing"
)

func TestSealOpen(t *testing.T) {
	key, _ := NewAESKey()
	msg := []byte("grandma@example.com")
	aad := []byte("vault/credential/email")

	nonce, ct, err := Seal(key, msg, aad)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if len(nonce) != NonceSize {
		t.Fatalf("nonce length %d", len(nonce))
	}

	t.Run("RoundTrip", func(t *testing.T) {
		got, err := Open(key, nonce, ct, aad)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		if !bytes.Equal(msg, got) {
			t.Errorf("got %q", got)
		}
	})

	t.Run("FreshNonce", func(t *testing.T) {
		again, _, _ := Seal(key, msg, aad)
		if bytes.Equal(nonce, again) {
			t.Error("nonce reused")
		}
	})

	t.Run("WrongAAD", func(t *testing.T) {
		if _, err := Open(key, nonce, ct, []byte("vault/credential/password")); err == nil {
			t.Error("expected failure")
		}
	})

	t.Run("Tampered", func(t *testing.T) {
		bad := CopyBytes(ct)
		bad[0] ^= 0xFF
		if _, err := Open(key, nonce, bad, aad); err == nil {
			t.Error("expected failure")
		}
	})

	t.Run("KeySize", func(t *testing.T) {
		_, _, err := Seal([]byte("too short"), msg, aad)
		if !errors.Is(err, ErrKeySize) {
			t.Errorf("got %v", err)
		}
	})

	t.Run("NonceSize", func(t *testing.T) {
		if _, err := Open(key, nonce[:4], ct, aad); err == nil {
			t.Error("expected failure")
		}
	})
}

func TestHKDF(t *testing.T) {
	seed := bytes.Repeat([]byte{7}, 32)

	a, err := HKDF(seed, nil, []byte("cookies"))
	if err != nil {
		t.Fatalf("HKDF failed: %v", err)
	}
	again, _ := HKDF(seed, nil, []byte("cookies"))
	b, _ := HKDF(seed, nil, []byte("credentials"))

	if len(a) != KeySize {
		t.Fatalf("expected %d bytes, got %d", KeySize, len(a))
	}
	if !bytes.Equal(a, again) {
		t.Error("HKDF must be deterministic for the same inputs")
	}
	if bytes.Equal(a, b) {
		t.Error("different info must yield different keys")
	}
}

func TestWipeAndCopy(t *testing.T) {
	src := []byte{1, 2, 3}
	dst := CopyBytes(src)
	WipeBytes(src)

	if !bytes.Equal(src, []byte{0, 0, 0}) {
		t.Errorf("expected wiped slice, got %v", src)
	}
	if !bytes.Equal(dst, []byte{1, 2, 3}) {
		t.Errorf("copy must be independent of source, got %v", dst)
	}
	if CopyBytes(nil) != nil {
		t.Error("copy of nil should be nil")
	}
}

func TestNormalizeEmail(t *testing.T) {
	cases := map[string]string{
		"  Grandma@Example.COM ": "grandma@example.com",
		"ｍａｒｙ@example.com":       "mary@example.com",
	}
	for in, want := range cases {
		if got := NormalizeEmail(in); got != want {
			t.Errorf("NormalizeEmail(%q) = %q, want %q", in, got, want)
		}
	}
	if AccountID("Mary@example.com") != AccountID(" mary@EXAMPLE.com") {
		t.Error("AccountID should be stable across email spellings")
	}
	if len(AccountID("mary@example.com")) != 12 {
		t.Errorf("expected 12 hex chars, got %q", AccountID("mary@example.com"))
	}
}
