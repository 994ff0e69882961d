package utils

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2Iterations = 100000
	pbkdf2KeyLength  = 32
	pbkdf2SaltLength = 16
)

// HashSecret derives a storable hash for a password-style secret.
// Format: base64(salt) + ":" + base64(PBKDF2-HMAC-SHA512(secret, salt)).
func HashSecret(secret string) (string, error) {
	salt := make([]byte, pbkdf2SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	dk := pbkdf2.Key([]byte(secret), salt, pbkdf2Iterations, pbkdf2KeyLength, sha512.New)
	return base64.StdEncoding.EncodeToString(salt) + ":" + base64.StdEncoding.EncodeToString(dk), nil
}

// VerifySecret re-derives the key from the stored salt and compares in
// constant time.
func VerifySecret(secret, encoded string) bool {
	salt, want, err := decodeSecretHash(encoded)
	if err != nil {
		return false
	}
	got := pbkdf2.Key([]byte(secret), salt, pbkdf2Iterations, pbkdf2KeyLength, sha512.New)
	return subtle.ConstantTimeCompare(got, want) == 1
}

func decodeSecretHash(encoded string) (salt, dk []byte, err error) {
	parts := strings.SplitN(encoded, ":", 2)
	if len(parts) != 2 {
		return nil, nil, errors.New("malformed secret hash")
	}
	salt, err = base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, nil, err
	}
	dk, err = base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, nil, err
	}
	return salt, dk, nil
}
