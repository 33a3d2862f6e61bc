package gate

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// sign returns the lowercase hex-encoded HMAC-SHA256 of data under secret.
// Callers slice the result themselves when they need a prefix; sign never
// truncates.
func sign(secret, data string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

// equalConstantTime reports whether a and b are equal, in time that does
// not depend on where they first differ. Different lengths never match,
// but the length check itself does not leak timing beyond "did not match":
// callers should not rely on any comparison being cheaper than another.
func equalConstantTime(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
