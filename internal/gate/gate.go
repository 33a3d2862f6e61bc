package gate

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/mattnewell-cam/AgentPayments/internal/logging"
	"github.com/mattnewell-cam/AgentPayments/internal/metrics"
)

// nowFunc is overridden in tests that need to control elapsed time.
var nowFunc = time.Now

const (
	slogLevelInfo  = slog.LevelInfo
	slogLevelWarn  = slog.LevelWarn
	slogLevelError = slog.LevelError
)

// Config is the gate's immutable-after-construction configuration. It is
// the domain-level counterpart of internal/config.Config; host binaries
// load env vars with internal/config and translate into this shape.
type Config struct {
	ChallengeSecret     string
	VerifyURL           string
	APIKey              string
	PublicPathAllowlist []string
	MinPayment          string
	// HomeWallet optionally pins the expected merchant wallet address.
	// When set, a fetched /merchants/me wallet that disagrees is logged
	// as a warning rather than trusted silently or treated as fatal.
	HomeWallet    string
	InsecureDebug bool
	// Secure controls the cookie's Secure flag. Hosts serving over HTTPS
	// should always pass true; left false only for plain-HTTP local dev.
	Secure bool
	Logger *slog.Logger
}

// Gate holds the long-lived shared resources for one gate instance:
// the payment cache, rate limiter, merchant config cache, and verify
// client. Construct one Gate per process; it has no module-level mutable
// state, so multiple Gates (e.g. in tests) never interfere.
type Gate struct {
	cfg      Config
	logger   *slog.Logger
	verify   *verifyServiceClient
	payments *paymentCache
	limiter  *rateLimiter
	merchant *merchantConfigCache
}

// New constructs a Gate. It refuses to construct one with the sentinel
// secret unless InsecureDebug is set, in which case it logs a warning
// exactly once.
func New(cfg Config) (*Gate, error) {
	if cfg.ChallengeSecret == sentinelSecretValue {
		if !cfg.InsecureDebug {
			return nil, errSentinelSecret
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ChallengeSecret == sentinelSecretValue && cfg.InsecureDebug {
		logger.Warn("agentpayments gate running with default sentinel secret", "component", "agentpayments")
	}

	return &Gate{
		cfg:      cfg,
		logger:   logger,
		verify:   newVerifyServiceClient(cfg.VerifyURL, cfg.APIKey),
		payments: newPaymentCache(),
		limiter:  newRateLimiter(),
		merchant: newMerchantConfigCache(),
	}, nil
}

const sentinelSecretValue = "default-secret-change-me"

// Handle is the gate's entire core entry point. Host adapters translate a
// framework-native request/response pair into Request/ResponseWriter and
// call Handle; everything downstream of this call is framework-agnostic.
//
// passthrough reports whether the caller should continue to its own
// routing/handlers (true), as opposed to the gate having already written
// a terminal response (false).
func (g *Gate) Handle(ctx context.Context, w ResponseWriter, r Request) (passthrough bool) {
	d := g.classify(r)

	switch d.kind {
	case decisionPublicPath:
		metrics.GateDecisionsTotal.WithLabelValues("public").Inc()
		return true

	case decisionChallengeVerify:
		g.handleChallengeVerify(ctx, w, r)
		return false

	case decisionAgentNoKey, decisionAgentWithKey:
		return g.handleAgentFlow(ctx, w, r, d)

	case decisionBrowserCookie:
		if validateCookieValue(g.cfg.ChallengeSecret, d.cookieVal, nowFunc()) {
			metrics.GateDecisionsTotal.WithLabelValues("passthrough").Inc()
			return true
		}
		g.serveChallengePage(w, r)
		return false

	case decisionBrowserNoCookie:
		g.serveChallengePage(w, r)
		return false
	}

	// Unreachable: every decisionKind is handled above.
	return true
}

// writeJSON writes a structured JSON error/response body with the given
// status code.
func writeJSON(w ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	_ = enc.Encode(body)
}

func (g *Gate) logEvent(ctx context.Context, level slog.Level, msg string, args ...any) {
	logger := logging.L(ctx)
	logger.Log(ctx, level, msg, append([]any{"component", "agentpayments"}, args...)...)
}
