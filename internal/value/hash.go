package value

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed hashing. The version suffix leaves
// room for an algorithm migration without colliding with old hashes.
const (
	domainPayload = "filament/payload/v1"
	domainSchema  = "filament/schema/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data). The null separator
// prevents ambiguity at the domain/data boundary.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint returns a stable content-addressed hash of a value. Two
// structurally equal values always fingerprint alike; the journal and trace
// output use this to correlate payloads without embedding them.
func Fingerprint(v Value) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	return hashWithDomain(domainPayload, canonical), nil
}

// MustFingerprint is like Fingerprint but panics on error. Use only in
// tests or when the value is known to be finite.
func MustFingerprint(v Value) string {
	fp, err := Fingerprint(v)
	if err != nil {
		panic(err)
	}
	return fp
}

// Fingerprint returns a stable hash of the schema's compact notation,
// usable as a map key where Schema itself cannot be (it contains slices).
func (s Schema) Fingerprint() string {
	return hashWithDomain(domainSchema, []byte(s.String()))
}
