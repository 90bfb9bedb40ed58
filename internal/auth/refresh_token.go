package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// refreshDigest returns the hex SHA-256 of a refresh token. Sessions and the
// session cache are keyed by the digest so a leaked row or cache entry cannot
// be replayed.
func refreshDigest(token string) (string, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:]), true
}
