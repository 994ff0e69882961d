package services

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// SignedTokenService produces and validates self-describing tokens: the
// payload and expiry are embedded and HMAC-signed, so validation needs no
// store round-trip. Wire form:
//
//	base64url(JSON payload) + "." + base64url(HMAC-SHA512(payload, key))
//
// Used for lightweight, store-independent checks such as one-time links.
type SignedTokenService interface {
	GenerateAccessToken(subjectID string, ttl time.Duration) (string, error)
	GenerateURLToken(url string, ttl time.Duration) (string, error)
	// ValidateAccessToken returns the embedded subject when the signature
	// and expiry check out.
	ValidateAccessToken(token string) (string, bool)
	// ValidateURLToken additionally requires the embedded URL to match.
	ValidateURLToken(token, url string) bool
}

type signedPayload struct {
	Subject   string    `json:"subject,omitempty"`
	URL       string    `json:"url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type signedTokenService struct {
	key []byte
}

func NewSignedTokenService(serverKey []byte) (SignedTokenService, error) {
	if len(serverKey) == 0 {
		return nil, errors.New("signed token service requires a non-empty server key")
	}
	return &signedTokenService{key: serverKey}, nil
}

func (s *signedTokenService) GenerateAccessToken(subjectID string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultAccessTokenTTL
	}
	now := time.Now().UTC()
	return s.sign(signedPayload{
		Subject:   subjectID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	})
}

func (s *signedTokenService) GenerateURLToken(url string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultURLTokenTTL
	}
	now := time.Now().UTC()
	return s.sign(signedPayload{
		URL:       url,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	})
}

func (s *signedTokenService) ValidateAccessToken(token string) (string, bool) {
	payload, ok := s.verify(token)
	if !ok || payload.Subject == "" {
		return "", false
	}
	return payload.Subject, true
}

func (s *signedTokenService) ValidateURLToken(token, url string) bool {
	payload, ok := s.verify(token)
	return ok && payload.URL != "" && payload.URL == url
}

func (s *signedTokenService) sign(payload signedPayload) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha512.New, s.key)
	mac.Write(body)
	sig := mac.Sum(nil)
	return base64.RawURLEncoding.EncodeToString(body) + "." + base64.RawURLEncoding.EncodeToString(sig), nil
}

// verify recomputes the HMAC over the payload and compares in constant time
// before trusting anything embedded in it.
func (s *signedTokenService) verify(token string) (*signedPayload, bool) {
	dot := strings.IndexByte(token, '.')
	if dot < 0 {
		return nil, false
	}
	body, err := base64.RawURLEncoding.DecodeString(token[:dot])
	if err != nil {
		return nil, false
	}
	sig, err := base64.RawURLEncoding.DecodeString(token[dot+1:])
	if err != nil {
		return nil, false
	}

	mac := hmac.New(sha512.New, s.key)
	mac.Write(body)
	if !hmac.Equal(sig, mac.Sum(nil)) {
		return nil, false
	}

	var payload signedPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, false
	}
	if !payload.ExpiresAt.After(time.Now().UTC()) {
		return nil, false
	}
	return &payload, true
}
