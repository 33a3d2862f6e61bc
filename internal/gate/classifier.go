package gate

import "strings"

// decisionKind is the sum-type tag for a classified request, per the
// {PublicPath, ChallengeVerify, AgentNoKey, AgentWithKey, BrowserCookie,
// BrowserNoCookie} variant set.
type decisionKind int

const (
	decisionPublicPath decisionKind = iota
	decisionChallengeVerify
	decisionAgentNoKey
	decisionAgentWithKey
	decisionBrowserCookie
	decisionBrowserNoCookie
)

// decision is the classifier's output: a variant tag plus whatever payload
// that variant carries (the agent key, or the cookie value).
type decision struct {
	kind      decisionKind
	agentKey  string
	cookieVal string
}

// classify applies the ordered decision rules from the request/response
// pipeline design. First match wins; callers must not re-parse the URL or
// headers once a decision is returned.
func (g *Gate) classify(r Request) decision {
	path := r.Path()

	if isPublicPath(path, g.cfg.PublicPathAllowlist) {
		return decision{kind: decisionPublicPath}
	}

	if r.Method() == "POST" && path == challengeVerifyPath {
		return decision{kind: decisionChallengeVerify}
	}

	if isBrowser(r) {
		if cookieVal, ok := r.Cookie(cookieName); ok {
			return decision{kind: decisionBrowserCookie, cookieVal: cookieVal}
		}
		return decision{kind: decisionBrowserNoCookie}
	}

	key := r.Header("X-Agent-Key")
	if key == "" {
		return decision{kind: decisionAgentNoKey}
	}
	if len(key) > maxAgentKeyLen {
		key = key[:maxAgentKeyLen]
	}
	return decision{kind: decisionAgentWithKey, agentKey: key}
}

const challengeVerifyPath = "/__challenge/verify"

// isPublicPath reports whether path should bypass the gate entirely.
func isPublicPath(path string, allowlist []string) bool {
	if path == "/robots.txt" {
		return true
	}
	if strings.HasPrefix(path, "/.well-known/") {
		return true
	}
	for _, p := range allowlist {
		if path == p {
			return true
		}
	}
	return false
}

// isBrowser reports whether the request carries a fetch-metadata header
// that only browsers send, per the browser classifier design.
func isBrowser(r Request) bool {
	return r.Header("Sec-Fetch-Mode") != "" || r.Header("Sec-Fetch-Dest") != ""
}
