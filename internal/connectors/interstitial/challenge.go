package interstitial

import (
	"math/big"
	"regexp"
	"strings"
)

// VerifyPath is the challenge verification endpoint, relative to the host.
const VerifyPath = "/_sec/verify?provider=interstitial"

var (
	tokenJSONPattern  = regexp.MustCompile(`"bm-verify"\s*:\s*"([^"]+)"`)
	tokenQueryPattern = regexp.MustCompile(`bm-verify=([^'"&]+)`)
	iVarPattern       = regexp.MustCompile(`var\s+i\s*=\s*(\d+)\s*;`)
	numberPattern     = regexp.MustCompile(`Number\("(\d+)"\s*\+\s*"(\d+)"\)`)
)

// Challenge is a parsed interstitial proof-of-work page.
type Challenge struct {
	Token string
	Pow   *big.Int
}

// IsChallenge reports whether a 200 response body is an interstitial page
// rather than real content.
func IsChallenge(status int, body string) bool {
	return status == 200 && strings.Contains(body, VerifyPath) && strings.Contains(body, "bm-verify")
}

// ParseChallenge extracts the verification token and computes the proof:
// i plus the integer formed by concatenating the two Number() operands.
func ParseChallenge(body string) (Challenge, bool) {
	tm := tokenJSONPattern.FindStringSubmatch(body)
	if tm == nil {
		tm = tokenQueryPattern.FindStringSubmatch(body)
	}
	im := iVarPattern.FindStringSubmatch(body)
	nm := numberPattern.FindStringSubmatch(body)
	if tm == nil || im == nil || nm == nil {
		return Challenge{}, false
	}

	i, ok := new(big.Int).SetString(im[1], 10)
	if !ok {
		return Challenge{}, false
	}
	n, ok := new(big.Int).SetString(nm[1]+nm[2], 10)
	if !ok {
		return Challenge{}, false
	}
	return Challenge{Token: tm[1], Pow: i.Add(i, n)}, true
}

// Payload is the JSON body posted to VerifyPath.
func (c Challenge) Payload() map[string]any {
	return map[string]any{"bm-verify": c.Token, "pow": c.Pow}
}
