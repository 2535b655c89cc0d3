package tokenstore

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// Fingerprint returns a short blake3 digest of token, safe to print or log.
// It returns "" for an empty token.
func Fingerprint(token string) string {
	if token == "" {
		return ""
	}
	sum := blake3.Sum256([]byte(token))
	return hex.EncodeToString(sum[:6])
}
