package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old := os.Getenv(key)
	os.Setenv(key, value)
	t.Cleanup(func() {
		if old == "" {
			os.Unsetenv(key)
		} else {
			os.Setenv(key, old)
		}
	})
}

func TestLoad_WithValidConfig(t *testing.T) {
	setEnv(t, "CHALLENGE_SECRET", "a-real-secret")
	setEnv(t, "AGENTPAYMENTS_VERIFY_URL", "https://verify.example.com")
	setEnv(t, "AGENTPAYMENTS_API_KEY", "key123")
	setEnv(t, "PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "https://verify.example.com/verify", cfg.VerifyURL)
	assert.Equal(t, DefaultMinPayment, cfg.MinPayment)
}

func TestLoad_MissingSecret(t *testing.T) {
	setEnv(t, "CHALLENGE_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "CHALLENGE_SECRET is required")
}

func TestLoad_SentinelSecretRefused(t *testing.T) {
	setEnv(t, "CHALLENGE_SECRET", "default-secret-change-me")
	setEnv(t, "AGENTPAYMENTS_INSECURE_DEBUG", "")

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "sentinel")
}

func TestLoad_SentinelSecretAllowedInDebug(t *testing.T) {
	setEnv(t, "CHALLENGE_SECRET", "default-secret-change-me")
	setEnv(t, "AGENTPAYMENTS_INSECURE_DEBUG", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.InsecureDebug)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{
			name:    "valid config",
			config:  Config{ChallengeSecret: "s"},
			wantErr: "",
		},
		{
			name:    "missing secret",
			config:  Config{ChallengeSecret: ""},
			wantErr: "CHALLENGE_SECRET is required",
		},
		{
			name:    "sentinel without debug",
			config:  Config{ChallengeSecret: sentinelSecret},
			wantErr: "sentinel",
		},
		{
			name:    "sentinel with debug",
			config:  Config{ChallengeSecret: sentinelSecret, InsecureDebug: true},
			wantErr: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestConfig_VerifyURLNormalisation(t *testing.T) {
	cfg := &Config{ChallengeSecret: "s", VerifyURL: "https://verify.example.com"}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "https://verify.example.com/verify", cfg.VerifyURL)

	cfg2 := &Config{ChallengeSecret: "s", VerifyURL: "https://verify.example.com/verify"}
	require.NoError(t, cfg2.Validate())
	assert.Equal(t, "https://verify.example.com/verify", cfg2.VerifyURL)
}

func TestConfig_VerifyBase(t *testing.T) {
	cfg := &Config{VerifyURL: "https://verify.example.com/verify"}
	assert.Equal(t, "https://verify.example.com", cfg.VerifyBase())
}

func TestConfig_IsDevelopment(t *testing.T) {
	cfg := &Config{Env: "development"}
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())

	cfg.Env = "production"
	assert.False(t, cfg.IsDevelopment())
	assert.True(t, cfg.IsProduction())
}

func TestGetEnv(t *testing.T) {
	setEnv(t, "TEST_VAR", "custom_value")

	assert.Equal(t, "custom_value", getEnv("TEST_VAR", "default"))
	assert.Equal(t, "default", getEnv("NONEXISTENT_VAR", "default"))
}

func TestSplitCSV(t *testing.T) {
	assert.Equal(t, []string{"/a", "/b"}, splitCSV("/a, /b"))
	assert.Nil(t, splitCSV(""))
}
