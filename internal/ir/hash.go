package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainClause keys sync registrations and change listeners. The version
// suffix enables future algorithm migration.
const DomainClause = "dojo/clause/v1"

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Digest computes the domain-separated digest of v's canonical encoding.
// Two values with the same canonical bytes share a digest regardless of
// object insertion order.
func Digest(domain string, v IRValue) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("digest %s: %w", domain, err)
	}
	return hashWithDomain(domain, canonical), nil
}

// MustDigest is like Digest but panics on error.
// Use only when the value is known to be canonicalizable.
func MustDigest(domain string, v IRValue) string {
	d, err := Digest(domain, v)
	if err != nil {
		panic(err)
	}
	return d
}
