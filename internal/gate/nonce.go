package gate

import (
	"strconv"
	"time"
)

const nonceTTL = 300_000 // ms

// mintNonce returns a fresh single-use nonce for the challenge page.
func mintNonce(secret string, now time.Time) string {
	t := now.UnixMilli()
	ts := strconv.FormatInt(t, 10)
	return ts + "." + sign(secret, "nonce:"+ts)
}

// validateNonce checks that n is a well-formed, unexpired, correctly
// signed nonce under secret.
func validateNonce(secret, n string, now time.Time) bool {
	t, sig, ok := splitTimestampSig(n)
	if !ok {
		return false
	}
	age := now.UnixMilli() - t
	if age <= 0 || age > nonceTTL {
		return false
	}
	expected := sign(secret, "nonce:"+strconv.FormatInt(t, 10))
	return equalConstantTime(sig, expected)
}
