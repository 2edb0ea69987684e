// Package token implements stateless HMAC authorization tokens.
//
// Download tokens authorize fetching one archive: the token is
// "timestamp:signature" where the signature is HMAC-SHA256 over
// "archiveID:timestamp". Validity is purely a function of the secret, the
// timestamp age, and the archive ID; nothing is persisted and there is no
// revocation.
//
// Grant tokens bind an upload confirmation to one storage path, proving the
// confirm request originated from a grant this server issued.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Signer signs and verifies tokens with a server-held secret.
type Signer struct {
	secret []byte
}

// NewSigner creates a Signer. The secret must be non-empty.
func NewSigner(secret string) (*Signer, error) {
	if secret == "" {
		return nil, fmt.Errorf("token secret is required")
	}
	return &Signer{secret: []byte(secret)}, nil
}

func (s *Signer) sign(payload string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// SignDownload issues a download token for archiveID at the given time.
func (s *Signer) SignDownload(archiveID string, now time.Time) string {
	ts := strconv.FormatInt(now.Unix(), 10)
	return ts + ":" + s.sign(archiveID+":"+ts)
}

// VerifyDownload reports whether token authorizes archiveID.
//
// The token is valid iff the recomputed signature matches and the timestamp
// is no older than maxAge. The comparison is constant-time so signature
// bytes cannot be recovered through timing. Tokens dated in the future are
// rejected: a legitimate clock can't issue them.
func (s *Signer) VerifyDownload(archiveID, token string, now time.Time, maxAge time.Duration) bool {
	ts, sig, ok := strings.Cut(token, ":")
	if !ok || ts == "" || sig == "" {
		return false
	}

	issued, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return false
	}

	age := now.Sub(time.Unix(issued, 0))
	if age < 0 || age > maxAge {
		return false
	}

	expected := s.sign(archiveID + ":" + ts)
	return hmac.Equal([]byte(sig), []byte(expected))
}

// SignGrant issues an upload grant token bound to storagePath, expiring at
// the given time.
func (s *Signer) SignGrant(storagePath string, expiresAt time.Time) string {
	ts := strconv.FormatInt(expiresAt.Unix(), 10)
	return ts + ":" + s.sign("grant:"+storagePath+":"+ts)
}

// VerifyGrant reports whether token is an unexpired grant for storagePath.
// Expired grants fail closed; the client must request a fresh grant.
func (s *Signer) VerifyGrant(storagePath, token string, now time.Time) bool {
	ts, sig, ok := strings.Cut(token, ":")
	if !ok || ts == "" || sig == "" {
		return false
	}

	expires, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return false
	}

	if !now.Before(time.Unix(expires, 0)) {
		return false
	}

	expected := s.sign("grant:" + storagePath + ":" + ts)
	return hmac.Equal([]byte(sig), []byte(expected))
}
