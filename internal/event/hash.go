package event

import (
	"crypto/sha256"
	"encoding/hex"
)

// Domain prefixes for content hashing. The version suffix leaves room for
// algorithm migration without ambiguity between old and new digests.
const (
	// DomainState is the domain for projection content hashes.
	DomainState = "feedsim/state/v1"
)

// HashWithDomain computes SHA-256 over domain + 0x00 + data and returns the
// hex digest. The null separator prevents domain/data boundary ambiguity.
func HashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
