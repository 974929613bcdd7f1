// Package crypto seals clipboard payloads at rest with NaCl secretbox.
//
// The 32-byte store key either comes from a passphrase (HKDF-SHA256) or is
// generated once and kept in a 0600 key file next to the database. Every
// sealed value carries its own random nonce:
//
//	[ 24-byte nonce ][ ciphertext ]
package crypto

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	KeySize   = 32
	nonceSize = 24
)

// Key is a secretbox key.
type Key = [KeySize]byte

var (
	hkdfInfo    = []byte("stash-v1")
	hashInfo    = []byte("stash-content-hash")
	errTooShort = errors.New("ciphertext too short")
)

// DeriveKey derives a store key from a passphrase using HKDF-SHA256.
func DeriveKey(passphrase string) (*Key, error) {
	h := hkdf.New(sha256.New, []byte(passphrase), nil, hkdfInfo)
	var key Key
	if _, err := io.ReadFull(h, key[:]); err != nil {
		return nil, fmt.Errorf("key derivation: %w", err)
	}
	return &key, nil
}

// NewKey returns a random key.
func NewKey() (*Key, error) {
	var key Key
	if _, err := io.ReadFull(rand.Reader, key[:]); err != nil {
		return nil, fmt.Errorf("key generation: %w", err)
	}
	return &key, nil
}

// LoadOrCreateKeyFile reads a hex-encoded key from path, creating the file
// with a fresh random key (mode 0600) when it does not exist.
func LoadOrCreateKeyFile(path string) (*Key, error) {
	raw, err := os.ReadFile(path)
	if err == nil {
		b, err := hex.DecodeString(strings.TrimSpace(string(raw)))
		if err != nil || len(b) != KeySize {
			return nil, fmt.Errorf("key file %s: malformed", path)
		}
		var key Key
		copy(key[:], b)
		return &key, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("key file: %w", err)
	}

	key, err := NewKey()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("key file dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("key file create: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(hex.EncodeToString(key[:]) + "\n"); err != nil {
		return nil, fmt.Errorf("key file write: %w", err)
	}
	return key, nil
}

// Seal encrypts plaintext with key, prepending a random nonce.
func Seal(plaintext []byte, key *Key) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("nonce generation: %w", err)
	}
	return secretbox.Seal(nonce[:], plaintext, &nonce, key), nil
}

// Open decrypts nonce+ciphertext produced by Seal.
func Open(ciphertext []byte, key *Key) ([]byte, error) {
	if len(ciphertext) < nonceSize {
		return nil, errTooShort
	}
	var nonce [nonceSize]byte
	copy(nonce[:], ciphertext[:nonceSize])
	plain, ok := secretbox.Open(nil, ciphertext[nonceSize:], &nonce, key)
	if !ok {
		return nil, fmt.Errorf("decryption failed (wrong key?)")
	}
	return plain, nil
}

// ContentHash returns a keyed digest of payload, used by the store to
// recognise a re-copied value without decrypting every row.
func ContentHash(payload []byte, key *Key) string {
	sub := hkdf.Extract(sha256.New, key[:], hashInfo)
	m := hmac.New(sha256.New, sub)
	m.Write(payload)
	return hex.EncodeToString(m.Sum(nil))
}
