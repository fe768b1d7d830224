// Package signature signs and verifies payment provider payloads with a shared HMAC-SHA256 key.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// HMAC holds the shared checksum key.
type HMAC struct {
	key []byte
}

// New returns a signer for key. An empty key never verifies anything.
func New(key string) *HMAC {
	return &HMAC{key: []byte(key)}
}

// Sign returns the lowercase hex HMAC-SHA256 of payload.
func (h *HMAC) Sign(payload []byte) string {
	mac := hmac.New(sha256.New, h.key)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignFields signs "k1=v1&k2=v2" with keys in lexical order.
func (h *HMAC) SignFields(fields map[string]string) string {
	return h.Sign([]byte(Canonical(fields)))
}

// Verify compares the header against the body's HMAC in constant time.
func (h *HMAC) Verify(rawBody []byte, header string) bool {
	if h == nil || len(h.key) == 0 {
		return false
	}
	header = strings.TrimSpace(header)
	if header == "" {
		return false
	}
	got, err := hex.DecodeString(strings.ToLower(header))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, h.key)
	mac.Write(rawBody)
	return hmac.Equal(got, mac.Sum(nil))
}

// Canonical renders fields as a sorted query-like string without escaping.
func Canonical(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(fields[k])
	}
	return b.String()
}
