// Package vault protects account secrets at rest.
//
// Every account has two keys. The session key is derived from the server
// key and the account's password-stretched key; it only exists in memory
// between login and logout (or until its TTL lapses) and marks the account
// as signed in. The account key is derived from the server key alone and
// seals everything at rest, so scheduled jobs can open what an operator
// wrote after the operator has logged out. Each blob records which key
// sealed it.
package vault

import (
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/addonkeeper/internal/common"
	"github.com/dmitrijs2005/addonkeeper/internal/cryptox"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const blobVersion byte = 1

type keyKind byte

const kindAccount keyKind = 'f'

const headerSize = 2

// DefaultMaxSessions bounds the number of resident session keys.
const DefaultMaxSessions = 4096

// Vault derives account keys and seals and opens secrets with them. It is
// safe for concurrent use.
type Vault struct {
	serverKey []byte
	sessions  *expirable.LRU[string, []byte]
}

// New returns a Vault over serverKey. Session keys expire after ttl.
func New(serverKey []byte, ttl time.Duration) *Vault {
	return &Vault{
		serverKey: append([]byte(nil), serverKey...),
		sessions:  expirable.NewLRU[string, []byte](DefaultMaxSessions, nil, ttl),
	}
}

func stretch(email, password string) []byte {
	return cryptox.DeriveMasterKey([]byte(password), []byte(email))
}

// Verifier returns the login verifier stored for a new account.
func (v *Vault) Verifier(email, password string) []byte {
	mk := stretch(email, password)
	defer common.WipeByteArray(mk)
	return cryptox.MakeVerifier(mk)
}

// Unlock checks password against verifier and, on success, makes the
// account's session key resident. A mismatch yields common.ErrorUnauthorized.
func (v *Vault) Unlock(accountID, email, password string, verifier []byte) error {
	mk := stretch(email, password)
	defer common.WipeByteArray(mk)

	if subtle.ConstantTimeCompare(cryptox.MakeVerifier(mk), verifier) != 1 {
		return common.ErrorUnauthorized
	}

	ikm := make([]byte, 0, len(v.serverKey)+len(mk))
	ikm = append(ikm, v.serverKey...)
	ikm = append(ikm, mk...)
	defer common.WipeByteArray(ikm)

	key, err := cryptox.DeriveKey(ikm, nil, []byte(accountID))
	if err != nil {
		return fmt.Errorf("derive session key: %w", err)
	}
	v.sessions.Add(accountID, key)
	return nil
}

// Clear drops the account's session key.
func (v *Vault) Clear(accountID string) {
	v.sessions.Remove(accountID)
}

// HasSession reports whether the account's session key is resident.
func (v *Vault) HasSession(accountID string) bool {
	_, ok := v.sessions.Get(accountID)
	return ok
}

func (v *Vault) accountKey(accountID string) ([]byte, error) {
	return cryptox.DeriveKey(v.serverKey, nil, []byte(accountID))
}

func (v *Vault) key(accountID string, kind keyKind) ([]byte, error) {
	if kind != kindAccount {
		return nil, fmt.Errorf("%w: unknown key kind %q", common.ErrDecrypt, byte(kind))
	}
	return v.accountKey(accountID)
}

// Encrypt seals plaintext with the account key. The result opens with or
// without a resident session.
func (v *Vault) Encrypt(accountID string, plaintext []byte) (string, error) {
	key, err := v.accountKey(accountID)
	if err != nil {
		return "", err
	}

	sealed, err := cryptox.Seal(key, plaintext, []byte(accountID))
	if err != nil {
		return "", err
	}

	out := make([]byte, 0, headerSize+len(sealed))
	out = append(out, blobVersion, byte(kindAccount))
	out = append(out, sealed...)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt opens a blob produced by Encrypt for the same account. Blobs
// sealed for another account, tampered with or malformed yield
// common.ErrDecrypt.
func (v *Vault) Decrypt(accountID, blob string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDecrypt, err)
	}
	if len(raw) < headerSize || raw[0] != blobVersion {
		return nil, fmt.Errorf("%w: unsupported blob", common.ErrDecrypt)
	}

	key, err := v.key(accountID, keyKind(raw[1]))
	if err != nil {
		return nil, err
	}

	plain, err := cryptox.Open(key, raw[headerSize:], []byte(accountID))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDecrypt, err)
	}
	return plain, nil
}

// EncryptString is Encrypt for strings.
func (v *Vault) EncryptString(accountID, plaintext string) (string, error) {
	return v.Encrypt(accountID, []byte(plaintext))
}

// DecryptString is Decrypt for strings.
func (v *Vault) DecryptString(accountID, blob string) (string, error) {
	b, err := v.Decrypt(accountID, blob)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// EncryptJSON seals the JSON encoding of value as one blob.
func (v *Vault) EncryptJSON(accountID string, value any) (string, error) {
	b, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return v.Encrypt(accountID, b)
}

// DecryptJSON opens blob and decodes it into out.
func (v *Vault) DecryptJSON(accountID, blob string, out any) error {
	b, err := v.Decrypt(accountID, blob)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("%w: %v", common.ErrDecrypt, err)
	}
	return nil
}
