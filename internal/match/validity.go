package match

import (
	"regexp"
	"strings"
)

var (
	// party, versus marker, party
	caseNameRe = regexp.MustCompile(`(?i)[\p{L}\p{N}.,')]\s+(?:v\.|vs\.?|versus)\s+[\p{L}\p{N}(']`)

	domainTokenRe = regexp.MustCompile(`(?i)^(?:[a-z0-9-]+\.)+(?:com|org|net|gov|edu|io|law|us|info|co|uk)$`)
)

// IsValidCaseName is the hard filter applied before any candidate may count
// as a verification: the name must contain a "v."/"vs." pattern between two
// parties and must not be, or contain, a web domain.
func IsValidCaseName(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}

	if looksLikeWebString(name) {
		return false
	}

	return caseNameRe.MatchString(name)
}

func looksLikeWebString(name string) bool {
	lower := strings.ToLower(name)
	if strings.Contains(lower, "http://") || strings.Contains(lower, "https://") || strings.Contains(lower, "www.") {
		return true
	}

	for _, field := range strings.Fields(lower) {
		field = strings.Trim(field, ",;:()[]\"'")
		if domainTokenRe.MatchString(field) {
			return true
		}
	}
	return false
}
