package gate

import (
	"regexp"
	"testing"
)

var agentKeyRe = regexp.MustCompile(`^ag_[0-9a-f]{16}_[0-9a-f]{16}$`)

func TestGenerateAndValidateAgentKey(t *testing.T) {
	k, err := generateAgentKey("secret")
	if err != nil {
		t.Fatalf("generateAgentKey: %v", err)
	}
	if !agentKeyRe.MatchString(k) {
		t.Fatalf("key %q does not match expected shape", k)
	}
	if !validateAgentKey("secret", k) {
		t.Fatalf("freshly generated key failed validation")
	}
}

func TestValidateAgentKey_WrongSecret(t *testing.T) {
	k, _ := generateAgentKey("secret")
	if validateAgentKey("other-secret", k) {
		t.Fatal("key should not validate under a different secret")
	}
}

func TestValidateAgentKey_Malformed(t *testing.T) {
	tests := []string{
		"",
		"not-an-agent-key",
		"ag_missingunderscore",
		"ag_" + string(make([]byte, 70)),
	}
	for _, k := range tests {
		if validateAgentKey("secret", k) {
			t.Errorf("malformed key %q should not validate", k)
		}
	}
}

func TestValidateAgentKey_MutatedCharFails(t *testing.T) {
	k, _ := generateAgentKey("secret")
	mutated := []byte(k)
	// Flip the last character.
	if mutated[len(mutated)-1] == 'f' {
		mutated[len(mutated)-1] = 'e'
	} else {
		mutated[len(mutated)-1] = 'f'
	}
	if validateAgentKey("secret", string(mutated)) {
		t.Fatal("mutated key should fail validation")
	}
}

func TestDerivePaymentMemo(t *testing.T) {
	k, _ := generateAgentKey("secret")
	m1 := derivePaymentMemo("secret", k)
	m2 := derivePaymentMemo("secret", k)
	if m1 != m2 {
		t.Fatalf("derivePaymentMemo not deterministic: %q != %q", m1, m2)
	}
	if len(m1) != 19 {
		t.Fatalf("memo should be 19 chars (gm_ + 16 hex), got %d: %q", len(m1), m1)
	}
	if m1[:3] != "gm_" {
		t.Fatalf("memo should start with gm_, got %q", m1)
	}
}
