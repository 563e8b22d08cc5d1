package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"log"
)

// PinVerifier compares submitted PINs against a stored one-way digest.
// It is stateless per call and never logs or stores the raw PIN.
type PinVerifier struct {
	digest []byte // decoded SHA-256 digest
}

// NewPinVerifier creates a verifier for a hex-encoded SHA-256 digest.
// A malformed digest yields a verifier that rejects everything.
func NewPinVerifier(storedDigest string) *PinVerifier {
	raw, err := hex.DecodeString(storedDigest)
	if err != nil || len(raw) != sha256.Size {
		log.Printf("stored PIN digest is malformed; all PIN checks will fail")
		return &PinVerifier{}
	}
	return &PinVerifier{digest: raw}
}

// Verify returns true when the submitted PIN hashes to the stored digest.
// Empty input or a malformed stored digest return false, never an error.
func (v *PinVerifier) Verify(submittedPIN string) bool {
	if submittedPIN == "" {
		log.Printf("empty PIN submitted")
		return false
	}
	if len(v.digest) != sha256.Size {
		return false
	}

	sum := sha256.Sum256([]byte(submittedPIN))
	return subtle.ConstantTimeCompare(sum[:], v.digest) == 1
}
