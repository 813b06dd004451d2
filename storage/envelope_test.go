package storage

import (
	"bytes"
	"testing"

	"github.com/kinboard/kinboard/internal/util"
)

func TestEnvelope(t *testing.T) {
	key, _ := util.NewAESKey()
	plain := []byte("ci_session=abc")
	aad := []byte("cookies")

	env, err := SealRecord(key, plain, aad)
	if err != nil {
		t.Fatalf("SealRecord failed: %v", err)
	}

	if env.Ver != 1 {
		t.Errorf("expected version 1, got %d", env.Ver)
	}
	if env.Scheme != SchemeAESGCM {
		t.Errorf("expected scheme %q, got %q", SchemeAESGCM, env.Scheme)
	}

	decrypted, err := OpenRecord(key, env, aad)
	if err != nil {
		t.Fatalf("OpenRecord failed: %v", err)
	}

	if !bytes.Equal(plain, decrypted) {
		t.Errorf("expected %s, got %s", plain, decrypted)
	}

	t.Run("WrongAAD", func(t *testing.T) {
		_, err := OpenRecord(key, env, []byte("credentials"))
		if err == nil {
			t.Error("expected error with wrong AAD, got nil")
		}
	})

	t.Run("WrongKey", func(t *testing.T) {
		wrongKey, _ := util.NewAESKey()
		_, err := OpenRecord(wrongKey, env, aad)
		if err == nil {
			t.Error("expected error with wrong key, got nil")
		}
	})

	t.Run("UnsupportedVersion", func(t *testing.T) {
		badEnv := *env
		badEnv.Ver = 99
		_, err := OpenRecord(key, &badEnv, aad)
		if err == nil {
			t.Error("expected error with unsupported version, got nil")
		}
	})

	t.Run("RawIsNotSealed", func(t *testing.T) {
		_, err := OpenRecord(key, RawRecord(plain), aad)
		if err == nil {
			t.Error("expected error opening a raw envelope as sealed, got nil")
		}
	})
}

func TestRawRecord(t *testing.T) {
	plain := []byte("true")
	env := RawRecord(plain)
	plain[0] = 'X'

	got, err := OpenRaw(env)
	if err != nil {
		t.Fatalf("OpenRaw failed: %v", err)
	}
	if string(got) != "true" {
		t.Errorf("expected raw payload to be copied, got %q", got)
	}

	key, _ := util.NewAESKey()
	sealed, _ := SealRecord(key, []byte("secret"), nil)
	if _, err := OpenRaw(sealed); err == nil {
		t.Error("expected error opening a sealed envelope as raw, got nil")
	}
}
