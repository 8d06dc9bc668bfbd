package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

// NewToken returns 32 random bytes as unpadded base64url. Tokens carry no
// claims; expiry and state live with the subject row.
func NewToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashToken is the at-rest digest for tokens that are never shown again.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func NewOpaqueToken() (raw string, hash string, err error) {
	raw, err = NewToken()
	if err != nil {
		return "", "", err
	}
	return raw, HashToken(raw), nil
}

// NewTokenPair issues the approve/reject pair for a pending registration.
func NewTokenPair() (approve, reject string, err error) {
	if approve, err = NewToken(); err != nil {
		return "", "", err
	}
	if reject, err = NewToken(); err != nil {
		return "", "", err
	}
	return approve, reject, nil
}
