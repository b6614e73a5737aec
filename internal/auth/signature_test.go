package auth

import (
	"errors"
	"regexp"
	"testing"
	"time"
)

var lowerHex = regexp.MustCompile(`^[0-9a-f]+$`)

func TestSign_Deterministic(t *testing.T) {
	tests := []struct {
		name      string
		appID     string
		salt      string
		timestamp string
		secret    string
	}{
		{"typical", "app-123", "0011223344556677", "1600000000000", "secret"},
		{"unicode secret", "app", "ffffffffffffffff", "1", "秘密"},
		{"short values", "a", "b", "c", "d"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first := Sign(tt.appID, tt.salt, tt.timestamp, tt.secret)
			second := Sign(tt.appID, tt.salt, tt.timestamp, tt.secret)

			if first != second {
				t.Errorf("Sign() not deterministic: %s != %s", first, second)
			}
			if len(first)%2 != 0 {
				t.Errorf("Expected even length signature, got %d", len(first))
			}
			if len(first) != 64 {
				t.Errorf("Expected 64 hex chars, got %d", len(first))
			}
			if !lowerHex.MatchString(first) {
				t.Errorf("Signature %q is not lowercase hex", first)
			}
		})
	}
}

func TestSign_KnownDigest(t *testing.T) {
	// sha256("abc")
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got := Sign("a", "b", "c", ""); got != want {
		t.Errorf("Sign() = %s, want %s", got, want)
	}
}

func TestSign_OrderMatters(t *testing.T) {
	a := Sign("app", "salt", "1000", "secret")
	b := Sign("salt", "app", "1000", "secret")
	if a == b {
		t.Error("Expected different signatures for swapped fields")
	}
}

func TestNewSignatureRequest(t *testing.T) {
	now := time.UnixMilli(1600000000123)

	req, err := NewSignatureRequest("app-1", now)
	if err != nil {
		t.Fatalf("NewSignatureRequest() error = %v", err)
	}

	if req.Timestamp != "1600000000123" {
		t.Errorf("Expected timestamp 1600000000123, got %s", req.Timestamp)
	}
	if len(req.Salt) != saltSize*2 || !lowerHex.MatchString(req.Salt) {
		t.Errorf("Unexpected salt %q", req.Salt)
	}

	other, err := NewSignatureRequest("app-1", now)
	if err != nil {
		t.Fatalf("NewSignatureRequest() error = %v", err)
	}
	if other.Salt == req.Salt {
		t.Error("Expected a fresh salt per request")
	}

	if req.Sign("secret") != Sign("app-1", req.Salt, req.Timestamp, "secret") {
		t.Error("SignatureRequest.Sign does not match Sign")
	}
}

func TestVerify(t *testing.T) {
	creds := Credentials{AppID: "app-1", AppSecret: "secret"}
	sign := Sign("app-1", "salt", "42", "secret")

	if err := Verify(creds, "app-1", "salt", "42", sign); err != nil {
		t.Errorf("Verify() error = %v", err)
	}

	if err := Verify(creds, "app-1", "salt", "43", sign); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("Expected ErrInvalidSignature for tampered timestamp, got %v", err)
	}

	if err := Verify(creds, "app-2", "salt", "42", sign); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("Expected ErrInvalidSignature for unknown app, got %v", err)
	}
}
