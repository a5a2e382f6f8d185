package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed digests. The version suffix allows
// a later algorithm change without colliding with old digests.
const (
	DomainFingerprint   = "versa/fingerprint/v1"
	DomainVersionables  = "versa/versionables/v1"
	DomainChildrenOrder = "versa/children-order/v1"
)

// HashWithDomain computes SHA256(domain || 0x00 || data) as hex. The NUL
// separator keeps the domain and data boundary unambiguous.
func HashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Digest marshals v canonically and hashes it under domain.
func Digest(domain string, v any) (string, error) {
	data, err := Marshal(v)
	if err != nil {
		return "", fmt.Errorf("digest %s: %w", domain, err)
	}
	return HashWithDomain(domain, data), nil
}
