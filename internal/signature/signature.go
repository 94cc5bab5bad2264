// Package signature validates webhook payload signatures of the
// X-Hub-Signature family: an HMAC hex digest of the raw request body, either
// bare or prefixed with the digest name ("sha1=<hex>").
package signature

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/hex"
	"hash"
	"strings"
)

type Verifier struct {
	secret []byte
	digest func() hash.Hash
}

type Option func(*Verifier)

// WithDigest overrides the default HMAC-SHA1 digest.
func WithDigest(digest func() hash.Hash) Option {
	return func(v *Verifier) {
		v.digest = digest
	}
}

func New(secret string, opts ...Option) *Verifier {
	v := &Verifier{
		secret: []byte(secret),
		digest: sha1.New,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// HMAC returns the hex digest of payload keyed by the shared secret.
func (v *Verifier) HMAC(payload []byte) string {
	mac := hmac.New(v.digest, v.secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks header against the computed digest. The header matches
// either verbatim or in its part after the first '=', so "sha1=<hex>" style
// values from providers like GitHub are accepted. An empty header never
// matches.
func (v *Verifier) Verify(payload []byte, header string) bool {
	if header == "" {
		return false
	}

	expected := v.HMAC(payload)
	if constantTimeEqual(expected, header) {
		return true
	}

	if idx := strings.Index(header, "="); idx >= 0 {
		return constantTimeEqual(expected, header[idx+1:])
	}

	return false
}

func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
