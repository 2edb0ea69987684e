package token

import (
	"strings"
	"testing"
	"time"
)

func TestNewSignerRequiresSecret(t *testing.T) {
	if _, err := NewSigner(""); err == nil {
		t.Error("expected error for empty secret")
	}
	if _, err := NewSigner("s3cret"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestDownloadTokenRoundTrip(t *testing.T) {
	signer, err := NewSigner("test-secret")
	if err != nil {
		t.Fatalf("NewSigner failed: %v", err)
	}

	now := time.Unix(time.Now().Unix(), 0)
	maxAge := 7 * 24 * time.Hour
	tok := signer.SignDownload("archive-1", now)

	if !signer.VerifyDownload("archive-1", tok, now, maxAge) {
		t.Error("fresh token should verify")
	}
	if !signer.VerifyDownload("archive-1", tok, now.Add(maxAge), maxAge) {
		t.Error("token at exactly max age should verify")
	}
	if signer.VerifyDownload("archive-2", tok, now, maxAge) {
		t.Error("token must be scoped to one archive")
	}
}

func TestDownloadTokenExpiry(t *testing.T) {
	signer, _ := NewSigner("test-secret")
	maxAge := 7 * 24 * time.Hour

	issued := time.Unix(time.Now().Unix(), 0)
	tok := signer.SignDownload("archive-1", issued)

	// One second past max age: rejected regardless of signature correctness.
	if signer.VerifyDownload("archive-1", tok, issued.Add(maxAge+time.Second), maxAge) {
		t.Error("expired token should be rejected")
	}

	// Future-dated tokens are rejected too.
	future := signer.SignDownload("archive-1", issued.Add(time.Hour))
	if signer.VerifyDownload("archive-1", future, issued, maxAge) {
		t.Error("future-dated token should be rejected")
	}
}

func TestDownloadTokenTampering(t *testing.T) {
	signer, _ := NewSigner("test-secret")
	now := time.Now()
	maxAge := time.Hour
	tok := signer.SignDownload("archive-1", now)

	// Flipping any single character must invalidate the token.
	for i := 0; i < len(tok); i++ {
		mutated := []byte(tok)
		if mutated[i] == 'a' {
			mutated[i] = 'b'
		} else {
			mutated[i] = 'a'
		}
		if string(mutated) == tok {
			continue
		}
		if signer.VerifyDownload("archive-1", string(mutated), now, maxAge) {
			t.Errorf("mutated token at index %d should be invalid: %s", i, mutated)
		}
	}
}

func TestDownloadTokenMalformed(t *testing.T) {
	signer, _ := NewSigner("test-secret")
	now := time.Now()

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"no separator", "abcdef"},
		{"empty timestamp", ":abcdef"},
		{"empty signature", "12345:"},
		{"non-numeric timestamp", "notanumber:abcdef"},
		{"only separator", ":"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if signer.VerifyDownload("archive-1", tt.token, now, time.Hour) {
				t.Errorf("malformed token %q should be invalid", tt.token)
			}
		})
	}
}

func TestDownloadTokenWrongSecret(t *testing.T) {
	signer1, _ := NewSigner("secret-one")
	signer2, _ := NewSigner("secret-two")

	now := time.Now()
	tok := signer1.SignDownload("archive-1", now)

	if signer2.VerifyDownload("archive-1", tok, now, time.Hour) {
		t.Error("token signed with a different secret should be invalid")
	}
}

func TestGrantTokenRoundTrip(t *testing.T) {
	signer, _ := NewSigner("test-secret")

	now := time.Unix(time.Now().Unix(), 0)
	expires := now.Add(5 * time.Minute)
	tok := signer.SignGrant("images/u1/g1/photo.jpg", expires)

	if !signer.VerifyGrant("images/u1/g1/photo.jpg", tok, now) {
		t.Error("fresh grant should verify")
	}
	if signer.VerifyGrant("images/u1/g1/other.jpg", tok, now) {
		t.Error("grant must be scoped to one storage path")
	}
	if signer.VerifyGrant("images/u1/g1/photo.jpg", tok, expires) {
		t.Error("grant at expiry instant should fail closed")
	}
	if signer.VerifyGrant("images/u1/g1/photo.jpg", tok, expires.Add(time.Second)) {
		t.Error("expired grant should fail closed")
	}
}

func TestTokenFormat(t *testing.T) {
	signer, _ := NewSigner("test-secret")
	tok := signer.SignDownload("archive-1", time.Unix(1700000000, 0))

	ts, sig, ok := strings.Cut(tok, ":")
	if !ok {
		t.Fatalf("token missing separator: %s", tok)
	}
	if ts != "1700000000" {
		t.Errorf("expected unix timestamp prefix, got %s", ts)
	}
	if len(sig) != 64 {
		t.Errorf("expected 64 hex chars of HMAC-SHA256, got %d", len(sig))
	}
}
