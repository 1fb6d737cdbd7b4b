package storage

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
)

// NewAEADFromPEM derives an AES-GCM cipher from key material such as a
// client cert PEM or a passphrase file.
func NewAEADFromPEM(material []byte) (cipher.AEAD, error) {
	if len(material) == 0 {
		return nil, errors.New("empty key material")
	}
	key := sha256.Sum256(material)
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create AEAD: %w", err)
	}
	return aead, nil
}

// SealedKV encrypts values before handing them to the wrapped KV.
// Stored values are base64(nonce || ciphertext); the key is bound as
// additional data so a value cannot be moved to another key.
type SealedKV struct {
	inner KV
	aead  cipher.AEAD
}

// NewSealedKV wraps inner with aead.
func NewSealedKV(inner KV, aead cipher.AEAD) *SealedKV {
	return &SealedKV{inner: inner, aead: aead}
}

func (s *SealedKV) GetItem(key string) ([]byte, bool, error) {
	raw, ok, err := s.inner.GetItem(key)
	if err != nil || !ok {
		return nil, ok, err
	}
	sealed, err := base64.StdEncoding.DecodeString(string(raw))
	if err != nil {
		return nil, false, fmt.Errorf("%w: decode: %v", ErrCorrupt, err)
	}
	ns := s.aead.NonceSize()
	if len(sealed) < ns {
		return nil, false, fmt.Errorf("%w: sealed value too short", ErrCorrupt)
	}
	plain, err := s.aead.Open(nil, sealed[:ns], sealed[ns:], []byte(key))
	if err != nil {
		return nil, false, fmt.Errorf("%w: decrypt: %v", ErrCorrupt, err)
	}
	return plain, true, nil
}

func (s *SealedKV) SetItem(key string, value []byte) error {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}
	sealed := s.aead.Seal(nonce, nonce, value, []byte(key))
	return s.inner.SetItem(key, []byte(base64.StdEncoding.EncodeToString(sealed)))
}
