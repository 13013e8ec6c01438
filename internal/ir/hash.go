package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix enables future algorithm migration.
const (
	DomainForm   = "speciate/form/v1"
	DomainUnit   = "speciate/unit/v1"
	DomainBundle = "speciate/bundle/v1"
)

// Digest computes SHA-256 with domain separation:
// SHA256(domain + 0x00 + data), hex encoded.
func Digest(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// DigestCanonical canonically encodes v and digests it under domain.
func DigestCanonical(domain string, v any) (string, error) {
	data, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("digest %s: %w", domain, err)
	}
	return Digest(domain, data), nil
}
