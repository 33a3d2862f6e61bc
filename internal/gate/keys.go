package gate

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

const (
	agentKeyPrefix = "ag_"
	memoPrefix     = "gm_"
	sigLen         = 16
	maxAgentKeyLen = 64
)

// generateAgentKey draws 16 hex chars of cryptographically strong
// randomness and returns ag_<random>_<sig>, where sig is the first 16 hex
// chars of HMAC-SHA256(secret, random).
func generateAgentKey(secret string) (string, error) {
	buf := make([]byte, sigLen/2)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	random := hex.EncodeToString(buf)
	sig := sign(secret, random)[:sigLen]
	return agentKeyPrefix + random + "_" + sig, nil
}

// validateAgentKey reports whether k is a well-formed agent key under secret.
func validateAgentKey(secret, k string) bool {
	if k == "" || len(k) > maxAgentKeyLen {
		return false
	}
	if !strings.HasPrefix(k, agentKeyPrefix) {
		return false
	}
	rest := k[len(agentKeyPrefix):]
	idx := strings.IndexByte(rest, '_')
	if idx < 0 {
		return false
	}
	random, tail := rest[:idx], rest[idx+1:]
	expected := sign(secret, random)[:sigLen]
	return equalConstantTime(tail, expected)
}

// derivePaymentMemo deterministically derives the memo a payer must quote
// for agent key k under secret. gm_ + first 16 hex chars of sign(secret, k).
func derivePaymentMemo(secret, k string) string {
	return memoPrefix + sign(secret, k)[:sigLen]
}
