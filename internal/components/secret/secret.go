// Package secret seals the portal and calendar passwords stored in the database.
package secret

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// EnvKey names the environment variable the key is read from when the config leaves it
// empty.
const EnvKey = "INFOMENTOR_SECRET_KEY"

var ErrNoKey = errors.New("no secret key configured")

type Box struct {
	key []byte
}

// NewBox derives the sealing key from an arbitrary length passphrase.
func NewBox(passphrase string) (Box, error) {
	if passphrase == "" {
		return Box{}, ErrNoKey
	}
	key := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, []byte(passphrase), nil, []byte("infomentor-notifier credentials"))
	_, err := io.ReadFull(kdf, key)
	if err != nil {
		return Box{}, fmt.Errorf("derive key: %w", err)
	}
	return Box{key: key}, nil
}

// Seal encrypts plaintext with a fresh nonce, the result is base64 text safe to store in a
// TEXT column. The empty string seals to the empty string so "not enabled" users stay
// recognizable.
func (b Box) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	aead, err := chacha20poly1305.NewX(b.key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	_, err = rand.Read(nonce)
	if err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (b Box) Open(sealed string) (string, error) {
	if sealed == "" {
		return "", nil
	}
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("open secret: %w", err)
	}
	aead, err := chacha20poly1305.NewX(b.key)
	if err != nil {
		return "", err
	}
	if len(raw) < aead.NonceSize() {
		return "", fmt.Errorf("open secret: ciphertext too short")
	}
	nonce, ciphertext := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("open secret: %w", err)
	}
	return string(plaintext), nil
}
