// Package sha256 derives stable hex digests for backup object names.
package sha256

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"hash"
)

// Hasher produces SHA-256 hex digests, keyed with HMAC when a key is set.
// Emails are low-entropy, so a keyed digest stops anyone with bucket list
// access from confirming an address by hashing it themselves.
type Hasher struct {
	key []byte
}

// New returns an unkeyed hasher.
func New() *Hasher {
	return &Hasher{}
}

// NewKeyed returns an HMAC-SHA256 hasher. An empty key behaves like New.
func NewKeyed(key string) *Hasher {
	if key == "" {
		return New()
	}
	return &Hasher{key: []byte(key)}
}

// Hash returns the hex digest of data.
func (h *Hasher) Hash(data []byte) (string, error) {
	var mac hash.Hash
	if len(h.key) > 0 {
		mac = hmac.New(sha256.New, h.key)
	} else {
		mac = sha256.New()
	}
	_, _ = mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil)), nil
}
