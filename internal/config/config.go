// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mattnewell-cam/AgentPayments/internal/usdc"
)

// sentinelSecret is the placeholder value the gate refuses to run with
// outside of an explicit debug/insecure mode.
const sentinelSecret = "default-secret-change-me"

// Config holds the gate's runtime configuration. Immutable after Load.
type Config struct {
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// ChallengeSecret is the HMAC key for agent keys, memos, nonces and cookies.
	ChallengeSecret string
	// VerifyURL is the verify-service endpoint. Normalised to end in /verify.
	VerifyURL string
	// APIKey is the bearer credential presented to the verify service.
	APIKey string

	// PublicPathAllowlist holds extra exact-match bypass paths beyond
	// /robots.txt and /.well-known/*.
	PublicPathAllowlist []string
	// MinPayment is the decimal USDC amount quoted to agents, e.g. "0.01".
	MinPayment string
	// HomeWallet optionally names the expected merchant wallet address as a
	// cross-check on /merchants/me; a mismatch is logged and the fetched
	// wallet is still used.
	HomeWallet string

	// InsecureDebug allows the gate to start with the sentinel secret,
	// emitting a warning instead of refusing to serve.
	InsecureDebug bool
}

const (
	DefaultPort       = "8080"
	DefaultEnv        = "development"
	DefaultLogLevel   = "info"
	DefaultMinPayment = "0.01"
)

// Load reads configuration from environment variables, loading a .env file
// first if one is present (ignored if absent; local development only).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:                getEnv("PORT", DefaultPort),
		Env:                 getEnv("ENV", DefaultEnv),
		LogLevel:            getEnv("LOG_LEVEL", DefaultLogLevel),
		ChallengeSecret:     os.Getenv("CHALLENGE_SECRET"),
		VerifyURL:           os.Getenv("AGENTPAYMENTS_VERIFY_URL"),
		APIKey:              os.Getenv("AGENTPAYMENTS_API_KEY"),
		PublicPathAllowlist: splitCSV(os.Getenv("AGENTPAYMENTS_PUBLIC_PATHS")),
		MinPayment:          getEnv("AGENTPAYMENTS_MIN_PAYMENT", DefaultMinPayment),
		HomeWallet:          os.Getenv("AGENTPAYMENTS_HOME_WALLET"),
		InsecureDebug:       getEnvBool("AGENTPAYMENTS_INSECURE_DEBUG", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks required configuration and normalises VerifyURL.
func (c *Config) Validate() error {
	if c.ChallengeSecret == "" {
		return fmt.Errorf("CHALLENGE_SECRET is required")
	}

	if c.ChallengeSecret == sentinelSecret && !c.InsecureDebug {
		return fmt.Errorf("CHALLENGE_SECRET is set to the default sentinel value; refusing to start (set AGENTPAYMENTS_INSECURE_DEBUG=true to override for local development)")
	}

	if c.VerifyURL != "" && !strings.HasSuffix(c.VerifyURL, "/verify") {
		c.VerifyURL = strings.TrimSuffix(c.VerifyURL, "/") + "/verify"
	}

	if _, ok := usdc.Parse(c.MinPayment); !ok {
		return fmt.Errorf("AGENTPAYMENTS_MIN_PAYMENT %q is not a valid decimal USDC amount", c.MinPayment)
	}

	return nil
}

// VerifyBase returns the verify service's base URL with the trailing
// /verify segment stripped, for building other endpoints like /merchants/me.
func (c *Config) VerifyBase() string {
	return strings.TrimSuffix(c.VerifyURL, "/verify")
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
