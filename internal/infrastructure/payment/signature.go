package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Signer produces and checks HMAC-SHA256 signatures over a canonical
// "k1=v1&k2=v2" string with keys sorted ascending. Empty values are kept.
type Signer struct {
	key []byte
}

// NewSigner creates a signer for the shared secret
func NewSigner(secret string) *Signer {
	return &Signer{key: []byte(secret)}
}

// Canonical renders fields in signing order
func Canonical(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if k == "signature" {
			continue
		}
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

// Sign returns the lowercase hex signature of fields
func (s *Signer) Sign(fields map[string]string) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(Canonical(fields)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks signature against fields in constant time
func (s *Signer) Verify(fields map[string]string, signature string) bool {
	got, err := hex.DecodeString(strings.ToLower(signature))
	if err != nil {
		return false
	}
	want, _ := hex.DecodeString(s.Sign(fields))
	return hmac.Equal(got, want)
}
