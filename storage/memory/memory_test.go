package memory

import (
	"testing"

	"github.com/kinboard/kinboard/storage"
	"github.com/kinboard/kinboard/storage/storagetest"
)

func TestMemoryRepository(t *testing.T) {
	storagetest.Run(t, NewRepository())
}

func TestMemoryRepositoryReturnsClones(t *testing.T) {
	repo := NewRepository()
	env := &storage.Envelope{Ver: 1, Scheme: storage.SchemeAESGCM, Nonce: []byte("nonce1234567"), Ciphertext: []byte("ciphertext")}
	if err := repo.Put("cookies", "jar", "current", env); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, _ := repo.Get("cookies", "jar", "current")
	got.Nonce[0] = 'X'
	got2, _ := repo.Get("cookies", "jar", "current")
	if got2.Nonce[0] == 'X' {
		t.Error("Memory repository should return clones of envelopes")
	}

	env.Ciphertext[0] = 'X'
	got3, _ := repo.Get("cookies", "jar", "current")
	if got3.Ciphertext[0] == 'X' {
		t.Error("Memory repository should store clones of envelopes")
	}
}
