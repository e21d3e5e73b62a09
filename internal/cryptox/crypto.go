// Package cryptox implements the cryptographic primitives of vaultd:
// PBKDF2 master-key derivation, AES-256-GCM envelope encryption for record
// content, one-way token hashing, and the PKCE/state/nonce token generators
// used by the login flow.
//
// The master key is derived deterministically from stable inputs so it never
// has to be stored anywhere. No function in this package retains key bytes.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/oauth2"

	"github.com/akarpov91/vaultd/internal/common"
)

const (
	// MasterKeySize is the AES-256 key length in bytes.
	MasterKeySize = 32

	// SaltSize is the required per-identity salt length in bytes.
	SaltSize = 32

	// DefaultKDFIterations is the PBKDF2 iteration count used unless the
	// caller configures a higher one.
	DefaultKDFIterations = 100_000

	// MinKDFIterations is the floor below which derivation is refused.
	MinKDFIterations = 100_000

	gcmNonceSize = 12
)

// DeriveMasterKey derives a 32-byte AES key from the identity's stable
// provider subject, the process-wide application secret, and the identity's
// immutable random salt, using PBKDF2-HMAC-SHA256.
//
// Identical inputs always yield an identical key; the key is recomputed per
// request and never persisted. Derivation is deliberately expensive: callers
// on a request path should go through keys.Deriver rather than calling this
// directly.
func DeriveMasterKey(subject, appSecret string, salt []byte, iterations int) ([]byte, error) {
	if len(salt) != SaltSize {
		return nil, fmt.Errorf("%w: salt must be %d bytes, got %d", common.ErrKeyDerivation, SaltSize, len(salt))
	}
	if iterations < MinKDFIterations {
		return nil, fmt.Errorf("%w: iteration count %d below minimum %d", common.ErrKeyDerivation, iterations, MinKDFIterations)
	}
	password := []byte(subject + appSecret)
	defer common.WipeByteArray(password)
	return pbkdf2.Key(password, salt, iterations, MasterKeySize, sha256.New), nil
}

// Encrypt seals plaintext under key with AES-256-GCM and returns the storage
// encoding base64(nonce || ciphertext || tag). A fresh random 96-bit nonce is
// sampled on every call; nonces are never derived from a counter.
func Encrypt(plaintext, key []byte) (string, error) {
	aead, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcmNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrEncryption, err)
	}

	sealed := aead.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. A failed authentication tag (wrong key or
// tampered blob) is reported as common.ErrAuthentication, distinct from the
// generic common.ErrEncryption returned for malformed input.
func Decrypt(blob string, key []byte) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64: %v", common.ErrEncryption, err)
	}
	if len(raw) < gcmNonceSize {
		return nil, fmt.Errorf("%w: blob shorter than nonce", common.ErrEncryption)
	}

	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce, ciphertext := raw[:gcmNonceSize], raw[gcmNonceSize:]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, common.ErrAuthentication
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != MasterKeySize {
		return nil, fmt.Errorf("%w: key must be %d bytes, got %d", common.ErrEncryption, MasterKeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrEncryption, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrEncryption, err)
	}
	return aead, nil
}

// HashToken returns the lowercase hex SHA-256 digest of an opaque token.
// Sessions store only this digest so a database leak never exposes a usable
// refresh token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// GeneratePKCEPair returns a PKCE code_verifier and its S256 code_challenge
// per RFC 7636. Both are base64url encoded without padding. Generation and
// challenge computation delegate to golang.org/x/oauth2.
func GeneratePKCEPair() (verifier, challenge string) {
	verifier = oauth2.GenerateVerifier()
	challenge = oauth2.S256ChallengeFromVerifier(verifier)
	return verifier, challenge
}

// GenerateRandomToken returns a URL-safe opaque token backed by n bytes of
// CSPRNG output, used for OAuth state, nonces, and refresh tokens.
func GenerateRandomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
