package threatintel

import "strings"

// Verdict is the tri-state lookup outcome. Secure is nil when nothing is
// known about the URL; absence of a match is not proof of safety.
type Verdict struct {
	Secure *bool  `json:"secure"`
	Type   int    `json:"type"`
	Level  int    `json:"level"`
	Match  int    `json:"match"`
	Error  string `json:"error,omitempty"`
}

const (
	StatusMalicious = "malicious"
	StatusTrusted   = "trusted"
	StatusUnknown   = "unknown"
)

func Malicious(rec HashRecord, c Collection) Verdict {
	secure := false
	return Verdict{Secure: &secure, Type: rec.Type, Level: rec.Level, Match: MatchForCollection(c)}
}

func Trusted() Verdict {
	secure := true
	return Verdict{Secure: &secure}
}

func Unknown() Verdict {
	return Verdict{}
}

// UnknownWithError is the degraded verdict returned when a lookup fails internally.
func UnknownWithError(err error) Verdict {
	v := Unknown()
	if err != nil {
		v.Error = err.Error()
	}
	return v
}

func (v Verdict) Status() string {
	switch {
	case v.Secure == nil:
		return StatusUnknown
	case *v.Secure:
		return StatusTrusted
	default:
		return StatusMalicious
	}
}

const trustedGatewaySuffix = ".shaparak.ir"

// IsTrustedGateway is the single hard-coded allow rule: any subdomain of the
// national payment gateway zone, reached over TLS.
func IsTrustedGateway(n NormalizedURL) bool {
	return n.Parsed && n.Scheme == "https" && strings.HasSuffix(n.Domain, trustedGatewaySuffix)
}
