package gate

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	cookieName = "__agp_verified"
	cookieTTL  = 86_400_000 // ms
	cookieMax  = 86400      // seconds
)

// mintCookie returns the http.Cookie to set for a freshly issued
// challenge-passed cookie; its Value is "<ms>.<signature>". secure controls whether the Secure flag is set;
// hosts serving over HTTPS should always pass true.
func mintCookie(secret string, now time.Time, secure bool) *http.Cookie {
	t := now.UnixMilli()
	value := strconv.FormatInt(t, 10) + "." + sign(secret, strconv.FormatInt(t, 10))
	return &http.Cookie{
		Name:     cookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   cookieMax,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// validateCookieValue checks that value is a well-formed, unexpired,
// correctly signed __agp_verified cookie value under secret.
func validateCookieValue(secret, value string, now time.Time) bool {
	t, sig, ok := splitTimestampSig(value)
	if !ok {
		return false
	}
	age := now.UnixMilli() - t
	if age <= 0 || age > cookieTTL {
		return false
	}
	expected := sign(secret, strconv.FormatInt(t, 10))
	return equalConstantTime(sig, expected)
}

// splitTimestampSig parses a "<int>.<hex>" value used by both cookies and
// nonces, returning the parsed timestamp and signature tail.
func splitTimestampSig(value string) (ts int64, sig string, ok bool) {
	idx := strings.IndexByte(value, '.')
	if idx < 0 {
		return 0, "", false
	}
	tsPart, sigPart := value[:idx], value[idx+1:]
	t, err := strconv.ParseInt(tsPart, 10, 64)
	if err != nil {
		return 0, "", false
	}
	return t, sigPart, true
}
