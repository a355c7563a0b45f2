// Package seal authenticates and encrypts individual datagrams with a
// pre-shared key.
//
// Each sealed datagram is self-contained: a random 24-byte XChaCha20 nonce
// followed by the Poly1305-authenticated ciphertext. No counters are kept, so
// loss and reordering on the channel never desynchronise the two ends.
package seal

import (
	"crypto/cipher"
	"crypto/pbkdf2"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	PBKDF2Iterations = 100000
	PBKDF2Salt       = "padlink-datagram-v1"
)

var (
	// ErrEmptyKey is returned when a sealer is requested without a key.
	ErrEmptyKey = errors.New("seal: key cannot be empty")
	// ErrOpen is returned for datagrams that are too short or fail authentication.
	ErrOpen = errors.New("seal: cannot open datagram")
)

// Sealer seals and opens datagrams. It is safe for concurrent use.
type Sealer struct {
	aead cipher.AEAD
}

// DeriveKey stretches a passphrase to a 32-byte key.
func DeriveKey(passphrase string) ([]byte, error) {
	if passphrase == "" {
		return nil, ErrEmptyKey
	}
	return pbkdf2.Key(sha256.New, passphrase, []byte(PBKDF2Salt), PBKDF2Iterations, chacha20poly1305.KeySize)
}

// New derives a key from passphrase and returns a Sealer using it.
func New(passphrase string) (*Sealer, error) {
	key, err := DeriveKey(passphrase)
	if err != nil {
		return nil, err
	}
	return NewWithKey(key)
}

// NewWithKey returns a Sealer for an already derived 32-byte key.
func NewWithKey(key []byte) (*Sealer, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("seal: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

// Seal returns nonce || ciphertext for plain.
func (s *Sealer) Seal(plain []byte) ([]byte, error) {
	ns := s.aead.NonceSize()
	out := make([]byte, ns, ns+len(plain)+s.aead.Overhead())
	if _, err := rand.Read(out); err != nil {
		return nil, fmt.Errorf("seal: nonce: %w", err)
	}
	return s.aead.Seal(out, out[:ns], plain, nil), nil
}

// Open verifies and decrypts a datagram produced by Seal.
func (s *Sealer) Open(data []byte) ([]byte, error) {
	ns := s.aead.NonceSize()
	if len(data) < ns+s.aead.Overhead() {
		return nil, ErrOpen
	}
	pt, err := s.aead.Open(nil, data[:ns], data[ns:], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpen, err)
	}
	return pt, nil
}
