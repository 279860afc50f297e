// Package linkstate encodes the {zapID, userID} pair that rides through the
// OAuth provider's redirect as the opaque state parameter. The callback has
// no browser session to lean on, so the state doubles as a capability token:
// it is HMAC-signed and expires, and ownership is re-verified against the
// store before any token is written.
package linkstate

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

var (
	ErrMalformedState = errors.New("malformed state token")
	ErrBadSignature   = errors.New("state signature mismatch")
	ErrStateExpired   = errors.New("state token expired")
)

type payload struct {
	ZapID     string `json:"zapId"`
	UserID    string `json:"userId"`
	ExpiresAt int64  `json:"exp"`
}

// Codec signs and verifies linking state tokens
type Codec struct {
	secret []byte
	ttl    time.Duration
}

func NewCodec(secret string, ttl time.Duration) *Codec {
	return &Codec{secret: []byte(secret), ttl: ttl}
}

// Encode builds a signed state token for the given zap and owner
func (c *Codec) Encode(zapID, userID string) (string, error) {
	raw, err := json.Marshal(payload{
		ZapID:     zapID,
		UserID:    userID,
		ExpiresAt: time.Now().Add(c.ttl).Unix(),
	})
	if err != nil {
		return "", err
	}
	body := base64.RawURLEncoding.EncodeToString(raw)
	return body + "." + c.sign(body), nil
}

// Decode verifies the signature and expiry and returns the zap and owner ids
func (c *Codec) Decode(token string) (zapID, userID string, err error) {
	body, sig, ok := strings.Cut(token, ".")
	if !ok || body == "" || sig == "" {
		return "", "", ErrMalformedState
	}

	if !hmac.Equal([]byte(c.sign(body)), []byte(sig)) {
		return "", "", ErrBadSignature
	}

	raw, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return "", "", ErrMalformedState
	}

	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return "", "", ErrMalformedState
	}
	if p.ZapID == "" || p.UserID == "" {
		return "", "", ErrMalformedState
	}
	if time.Now().Unix() >= p.ExpiresAt {
		return "", "", ErrStateExpired
	}

	return p.ZapID, p.UserID, nil
}

func (c *Codec) sign(body string) string {
	h := hmac.New(sha256.New, c.secret)
	h.Write([]byte(body))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
