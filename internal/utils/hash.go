package utils

import (
	"crypto/sha256"
	"encoding/base64"
)

// HashToken computes the at-rest form of a bearer token. The raw value is
// never stored; lookups and blacklist entries key off this digest.
func HashToken(raw string) string {
	hasher := sha256.New()
	hasher.Write([]byte(raw))
	return base64.URLEncoding.EncodeToString(hasher.Sum(nil))
}
