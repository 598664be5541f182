// Package cryptox collects the key-derivation and AEAD primitives used by
// the credential vault.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"errors"
	"io"

	"github.com/dmitrijs2005/addonkeeper/internal/common"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
)

// KeySize is the length of every derived key (AES-256).
const KeySize = 32

// ErrShortCiphertext is returned by Open when the input cannot hold a
// nonce and an authentication tag.
var ErrShortCiphertext = errors.New("ciphertext too short")

// MakeVerifier returns a one-way fingerprint of a stretched key. It is
// stored instead of the password and compared on login.
func MakeVerifier(masterKey []byte) []byte {
	hash := sha256.Sum256(masterKey)
	return hash[:]
}

// DeriveMasterKey stretches a password with argon2id.
func DeriveMasterKey(password []byte, salt []byte) []byte {
	return argon2.IDKey(password, salt, 1, 64*1024, 4, KeySize)
}

// DeriveKey expands secret into a KeySize key bound to info using
// HKDF-SHA256.
func DeriveKey(secret, salt, info []byte) ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, salt, info), key); err != nil {
		return nil, err
	}
	return key, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Seal encrypts plaintext with AES-GCM under key and a fresh random nonce.
// The result is nonce ‖ ciphertext ‖ tag, so no separate nonce needs to
// be stored. additionalData is authenticated but not encrypted.
func Seal(key, plaintext, additionalData []byte) ([]byte, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := common.GenerateRandByteArray(aesgcm.NonceSize())

	return aesgcm.Seal(nonce, nonce, plaintext, additionalData), nil
}

// Open reverses Seal. A wrong key, wrong additionalData or any tampering
// makes it fail.
func Open(key, sealed, additionalData []byte) ([]byte, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	if len(sealed) < aesgcm.NonceSize()+aesgcm.Overhead() {
		return nil, ErrShortCiphertext
	}

	nonce, ciphertext := sealed[:aesgcm.NonceSize()], sealed[aesgcm.NonceSize():]
	return aesgcm.Open(nil, nonce, ciphertext, additionalData)
}
