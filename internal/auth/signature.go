package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// saltSize is the number of random bytes drawn for each salt (16 hex chars)
const saltSize = 8

// ErrInvalidSignature is returned when a signature does not match the credentials
var ErrInvalidSignature = errors.New("invalid signature")

// Credentials identify an application against the streaming service
type Credentials struct {
	AppID     string
	AppSecret string
}

// SignatureRequest holds the per-connection values that are signed and sent
// alongside the signature in the connection query.
type SignatureRequest struct {
	AppID     string
	Salt      string
	Timestamp string
}

// Sign computes the request signature: the lowercase hex SHA-256 digest of
// appID + salt + timestamp + appSecret.
func Sign(appID, salt, timestamp, appSecret string) string {
	sum := sha256.Sum256([]byte(appID + salt + timestamp + appSecret))
	return hex.EncodeToString(sum[:])
}

// NewSalt returns a fresh hex-encoded random nonce
func NewSalt() (string, error) {
	buf := make([]byte, saltSize)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Timestamp renders t as milliseconds since the Unix epoch in base 10
func Timestamp(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

// NewSignatureRequest creates the signing input for one connection attempt
func NewSignatureRequest(appID string, now time.Time) (*SignatureRequest, error) {
	salt, err := NewSalt()
	if err != nil {
		return nil, err
	}

	return &SignatureRequest{
		AppID:     appID,
		Salt:      salt,
		Timestamp: Timestamp(now),
	}, nil
}

// Sign signs the request with the application secret
func (r *SignatureRequest) Sign(appSecret string) string {
	return Sign(r.AppID, r.Salt, r.Timestamp, appSecret)
}

// Verify recomputes the signature for the given credentials and compares it
// with sign in constant time.
func Verify(creds Credentials, appID, salt, timestamp, sign string) error {
	if appID != creds.AppID {
		return fmt.Errorf("%w: unknown app id %q", ErrInvalidSignature, appID)
	}

	expected := Sign(creds.AppID, salt, timestamp, creds.AppSecret)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(sign)) != 1 {
		return ErrInvalidSignature
	}

	return nil
}
