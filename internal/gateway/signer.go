package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Signer recomputes the keyed hash the gateway uses to sign its payment
// callbacks: HMAC-SHA256 over "<gateway order reference>|<payment id>",
// hex encoded. The secret never leaves the server.
type Signer struct {
	secret []byte
}

// NewSigner creates a Signer for the shared gateway secret.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Sign returns the expected signature for a session reference and payment id.
func (s *Signer) Sign(gatewayReference, paymentID string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(gatewayReference + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify compares a claimed signature against the recomputed one in
// constant time.
func (s *Signer) Verify(gatewayReference, paymentID, signature string) bool {
	expected := s.Sign(gatewayReference, paymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}
