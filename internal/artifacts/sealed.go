package artifacts

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrTampered is returned when a sealed blob fails authentication.
var ErrTampered = errors.New("artifact failed authentication")

// Sealer encrypts blobs with XChaCha20-Poly1305. The random 24-byte nonce
// is prepended to each ciphertext.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer takes a 32-byte key.
func NewSealer(key []byte) (*Sealer, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("artifact key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return &Sealer{aead: aead}, nil
}

// NewSealerHex takes the key as 64 hex characters, as configured in
// ARTIFACT_KEY.
func NewSealerHex(key string) (*Sealer, error) {
	raw, err := hex.DecodeString(key)
	if err != nil {
		return nil, fmt.Errorf("decode artifact key: %w", err)
	}
	return NewSealer(raw)
}

// Seal encrypts plaintext, binding it to key as associated data so a blob
// cannot be replayed under another key.
func (s *Sealer) Seal(key string, plaintext []byte) ([]byte, error) {
	ns := s.aead.NonceSize()
	out := make([]byte, ns, ns+len(plaintext)+s.aead.Overhead())
	if _, err := rand.Read(out); err != nil {
		return nil, err
	}
	return s.aead.Seal(out, out[:ns], plaintext, []byte(key)), nil
}

// Open reverses Seal.
func (s *Sealer) Open(key string, sealed []byte) ([]byte, error) {
	ns := s.aead.NonceSize()
	if len(sealed) < ns+s.aead.Overhead() {
		return nil, ErrTampered
	}
	plain, err := s.aead.Open(nil, sealed[:ns], sealed[ns:], []byte(key))
	if err != nil {
		return nil, ErrTampered
	}
	return plain, nil
}

type sealedStore struct {
	Store
	sealer *Sealer
}

// Sealed wraps store so every blob is encrypted before it is written.
func Sealed(store Store, sealer *Sealer) Store {
	return &sealedStore{Store: store, sealer: sealer}
}

func (s *sealedStore) Put(ctx context.Context, key string, data []byte) error {
	sealed, err := s.sealer.Seal(key, data)
	if err != nil {
		return fmt.Errorf("seal %s: %w", key, err)
	}
	return s.Store.Put(ctx, key, sealed)
}

func (s *sealedStore) Get(ctx context.Context, key string) ([]byte, error) {
	sealed, err := s.Store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return s.sealer.Open(key, sealed)
}

// Sweep forwards to the wrapped store when it needs expiry passes.
func (s *sealedStore) Sweep() int {
	if sw, ok := s.Store.(Sweeper); ok {
		return sw.Sweep()
	}
	return 0
}
