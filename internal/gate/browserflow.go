package gate

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/mattnewell-cam/AgentPayments/internal/metrics"
	"github.com/mattnewell-cam/AgentPayments/internal/validation"
)

// handleChallengeVerify implements the POST /__challenge/verify flow: rate
// limit, parse and validate the form, mint a cookie, and redirect.
func (g *Gate) handleChallengeVerify(ctx context.Context, w ResponseWriter, r Request) {
	if !g.limiter.permit(r.ClientIP()) {
		metrics.GateDecisionsTotal.WithLabelValues("rate_limited").Inc()
		g.logEvent(ctx, slogLevelWarn, "challenge verify rate limited", "client_ip", r.ClientIP())
		writeJSON(w, http.StatusTooManyRequests, errorBody{
			Error:   "rate_limited",
			Message: "Too many verification attempts. Please wait and try again.",
		})
		return
	}

	form, err := r.ParseForm()
	if err != nil {
		metrics.GateDecisionsTotal.WithLabelValues("browser_verify_fail").Inc()
		writeJSON(w, http.StatusForbidden, errorBody{
			Error:   "forbidden",
			Message: "Challenge verification failed.",
		})
		return
	}

	nonce := validation.SanitizeString(form.Get("nonce"), validation.MaxNonceLength)
	returnTo := validation.SanitizeString(form.Get("return_to"), validation.MaxReturnToLength)
	if returnTo == "" {
		returnTo = "/"
	}
	fp := validation.SanitizeString(form.Get("fp"), validation.MaxFingerprintLen)

	if !strings.Contains(nonce, ".") || len(fp) < 10 {
		metrics.GateDecisionsTotal.WithLabelValues("browser_verify_fail").Inc()
		writeJSON(w, http.StatusForbidden, errorBody{
			Error:   "forbidden",
			Message: "Challenge verification failed.",
		})
		return
	}

	ts, sig, ok := splitTimestampSig(nonce)
	if !ok {
		metrics.GateDecisionsTotal.WithLabelValues("browser_verify_fail").Inc()
		writeJSON(w, http.StatusForbidden, errorBody{
			Error:   "forbidden",
			Message: "Challenge verification failed.",
		})
		return
	}

	now := nowFunc()
	age := now.UnixMilli() - ts
	if age <= 0 || age > nonceTTL {
		metrics.GateDecisionsTotal.WithLabelValues("browser_verify_fail").Inc()
		writeJSON(w, http.StatusForbidden, errorBody{
			Error:   "forbidden",
			Message: "Challenge expired. Reload the page.",
		})
		return
	}

	expected := sign(g.cfg.ChallengeSecret, "nonce:"+strconv.FormatInt(ts, 10))
	if !equalConstantTime(sig, expected) {
		metrics.GateDecisionsTotal.WithLabelValues("browser_verify_fail").Inc()
		writeJSON(w, http.StatusForbidden, errorBody{
			Error:   "forbidden",
			Message: "Invalid challenge.",
		})
		return
	}

	safePath := "/"
	if strings.HasPrefix(returnTo, "/") {
		safePath = returnTo
	}

	cookie := mintCookie(g.cfg.ChallengeSecret, now, g.cfg.Secure)
	w.Header().Add("Set-Cookie", cookie.String())
	w.Header().Set("Location", safePath)
	metrics.GateDecisionsTotal.WithLabelValues("browser_verify_ok").Inc()
	w.WriteHeader(http.StatusFound)
}

// serveChallengePage mints a nonce and serves the challenge HTML document.
func (g *Gate) serveChallengePage(w ResponseWriter, r Request) {
	nonce := mintNonce(g.cfg.ChallengeSecret, nowFunc())
	metrics.GateDecisionsTotal.WithLabelValues("browser_challenge").Inc()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(renderChallengePage(nonce, returnToFor(r))))
}

// returnToFor returns the current path for use as return_to. The query
// string is not included: Request exposes no accessor for it.
func returnToFor(r Request) string {
	return r.Path()
}
