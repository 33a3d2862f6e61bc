package gate

import "errors"

var (
	// errSentinelSecret is returned by New when ChallengeSecret is the
	// placeholder value and InsecureDebug was not set.
	errSentinelSecret = errors.New("gate: ChallengeSecret is the default sentinel value; refusing to operate")
	// errVerifyUnconfigured is returned when the verify URL or API key is missing.
	errVerifyUnconfigured = errors.New("gate: verify service not configured")
)
