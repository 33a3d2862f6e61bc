package gate

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mattnewell-cam/AgentPayments/internal/metrics"
	"github.com/mattnewell-cam/AgentPayments/internal/validation"
)

// paymentInfo is the "payment" object nested in every 402 body.
type paymentInfo struct {
	Chain         string `json:"chain"`
	Network       string `json:"network"`
	Token         string `json:"token"`
	Amount        string `json:"amount"`
	WalletAddress string `json:"wallet_address"`
	Memo          string `json:"memo"`
	Instructions  string `json:"instructions,omitempty"`
}

type paymentRequiredBody struct {
	Error   string      `json:"error"`
	Message string      `json:"message"`
	YourKey string      `json:"your_key"`
	Payment paymentInfo `json:"payment"`
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

const firstIssuanceMessage = "Access requires a paid API key. A key has been generated for you below. Send a USDC payment with the provided memo to activate it, then retry your request with the X-Agent-Key header."

// handleAgentFlow runs the AgentFlow state machine on a classified agent
// request and returns whether the caller should pass through to its own
// handlers.
func (g *Gate) handleAgentFlow(ctx context.Context, w ResponseWriter, r Request, d decision) bool {
	if d.kind == decisionAgentNoKey {
		return g.agentNoKey(ctx, w)
	}
	return g.agentWithKey(ctx, w, r, d.agentKey)
}

func (g *Gate) agentNoKey(ctx context.Context, w ResponseWriter) bool {
	mc, err := g.fetchMerchantConfig(ctx)
	if err != nil {
		metrics.GateDecisionsTotal.WithLabelValues("server_error").Inc()
		g.logEvent(ctx, slogLevelError, "merchant config unavailable", "verify_err", err.Error())
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Error:   "server_error",
			Message: "Payment verification unavailable.",
		})
		return false
	}

	key, err := generateAgentKey(g.cfg.ChallengeSecret)
	if err != nil {
		metrics.GateDecisionsTotal.WithLabelValues("server_error").Inc()
		g.logEvent(ctx, slogLevelError, "failed to generate agent key", "verify_err", err.Error())
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Error:   "server_error",
			Message: "Payment verification unavailable.",
		})
		return false
	}
	memo := derivePaymentMemo(g.cfg.ChallengeSecret, key)

	metrics.GateDecisionsTotal.WithLabelValues("agent_402_new").Inc()
	writeJSON(w, http.StatusPaymentRequired, paymentRequiredBody{
		Error:   "payment_required",
		Message: firstIssuanceMessage,
		YourKey: key,
		Payment: paymentInfo{
			Chain:         "solana",
			Network:       mc.Network,
			Token:         "USDC",
			Amount:        g.cfg.MinPayment,
			WalletAddress: mc.WalletAddress,
			Memo:          memo,
			Instructions: fmt.Sprintf(
				"Send %s USDC on Solana %s to %s with memo %q. Then include the header X-Agent-Key: %s on all subsequent requests.",
				g.cfg.MinPayment, mc.Network, mc.WalletAddress, memo, key,
			),
		},
	})
	return false
}

func (g *Gate) agentWithKey(ctx context.Context, w ResponseWriter, r Request, key string) bool {
	if !validateAgentKey(g.cfg.ChallengeSecret, key) {
		metrics.GateDecisionsTotal.WithLabelValues("agent_403").Inc()
		writeJSON(w, http.StatusForbidden, errorBody{
			Error:   "forbidden",
			Message: "Invalid API key. Keys must be issued by this server.",
			Details: "GET /.well-known/agent-access.json for access instructions.",
		})
		return false
	}

	if g.payments.get(key) {
		metrics.GateDecisionsTotal.WithLabelValues("passthrough").Inc()
		return true
	}

	if g.cfg.VerifyURL == "" || g.cfg.APIKey == "" {
		metrics.GateDecisionsTotal.WithLabelValues("server_error").Inc()
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Error:   "server_error",
			Message: "Payment verification not configured.",
		})
		return false
	}

	memo := derivePaymentMemo(g.cfg.ChallengeSecret, key)
	paid, err := g.verify.verify(memo)
	if err != nil {
		g.logEvent(ctx, slogLevelError, "verify service call failed", "verify_err", err.Error())
		paid = false
	}

	if !paid {
		mc, mcErr := g.fetchMerchantConfig(ctx)
		if mcErr != nil {
			metrics.GateDecisionsTotal.WithLabelValues("server_error").Inc()
			writeJSON(w, http.StatusInternalServerError, errorBody{
				Error:   "server_error",
				Message: "Payment verification unavailable.",
			})
			return false
		}
		metrics.GateDecisionsTotal.WithLabelValues("agent_402_unpaid").Inc()
		writeJSON(w, http.StatusPaymentRequired, paymentRequiredBody{
			Error:   "payment_required",
			Message: firstIssuanceMessage,
			YourKey: key,
			Payment: paymentInfo{
				Chain:         "solana",
				Network:       mc.Network,
				Token:         "USDC",
				Amount:        g.cfg.MinPayment,
				WalletAddress: mc.WalletAddress,
				Memo:          memo,
			},
		})
		return false
	}

	g.payments.set(key)
	metrics.PaymentCacheSize.Set(float64(g.payments.size()))
	metrics.GateDecisionsTotal.WithLabelValues("agent_ok").Inc()
	g.logEvent(ctx, slogLevelInfo, "agent payment verified",
		"key_prefix", keyPrefix(key),
		"client_ip", r.ClientIP(),
		"user_agent", r.Header("User-Agent"),
		"path", r.Path(),
	)
	return true
}

// fetchMerchantConfig fetches (or reuses the cached) merchant wallet and
// network, rejecting a wallet address that isn't valid base58 before it
// ever reaches a 402 body. An invalid address is never cached, so a fix on
// the verify service's side is picked up on the next call. When HomeWallet
// is configured, a disagreeing fetched address is logged as a warning; the
// fetched value still wins, since /merchants/me is the source of truth for
// the network field regardless.
func (g *Gate) fetchMerchantConfig(ctx context.Context) (MerchantConfig, error) {
	mc, err := g.merchant.get(g.cfg.APIKey, func() (MerchantConfig, error) {
		mc, err := g.verify.fetchMerchantConfig(verifyBase(g.cfg.VerifyURL))
		if err != nil {
			return MerchantConfig{}, err
		}
		if !validation.IsValidSolanaAddress(mc.WalletAddress) {
			return MerchantConfig{}, fmt.Errorf("merchant wallet address %q is not a valid Solana address", mc.WalletAddress)
		}
		return mc, nil
	})
	if err != nil {
		return MerchantConfig{}, err
	}

	if g.cfg.HomeWallet != "" && g.cfg.HomeWallet != mc.WalletAddress {
		g.logEvent(ctx, slogLevelWarn, "merchant wallet mismatch",
			"home_wallet", g.cfg.HomeWallet,
			"verify_wallet", mc.WalletAddress,
		)
	}

	return mc, nil
}

func verifyBase(verifyURL string) string {
	const suffix = "/verify"
	if len(verifyURL) >= len(suffix) && verifyURL[len(verifyURL)-len(suffix):] == suffix {
		return verifyURL[:len(verifyURL)-len(suffix)]
	}
	return verifyURL
}

// keyPrefix returns the first 12 chars of an agent key for log-safe
// identification, never the full key.
func keyPrefix(key string) string {
	if len(key) <= 12 {
		return key
	}
	return key[:12]
}
