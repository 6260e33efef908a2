package normalize

import (
	"strings"

	"github.com/synapse-qa/synapse-backend/internal/audits/domain"
)

var (
	highTokens   = []string{"high", "alta", "alto", "crit", "urgent", "sever", "grave", "blocker"}
	mediumTokens = []string{"medium", "media", "medio", "moderat", "normal"}
)

// Severity classifies free text into the three-level enum. Anything that does not
// contain a high-like or medium-like token is Low, including the empty string.
func Severity(raw string) domain.Severity {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return domain.SeverityLow
	}
	for _, tok := range highTokens {
		if strings.Contains(s, tok) {
			return domain.SeverityHigh
		}
	}
	for _, tok := range mediumTokens {
		if strings.Contains(s, tok) {
			return domain.SeverityMedium
		}
	}
	return domain.SeverityLow
}

// Category maps a category spelling onto the canonical enum. Unknown values return
// the empty category unless strict is set, in which case they become Backend.
func Category(raw string, strict bool) domain.Category {
	s := strings.ToLower(strings.TrimSpace(raw))
	if c, ok := categoryAliases[s]; ok {
		return domain.Category(c)
	}
	if strict {
		return domain.CategoryBackend
	}
	return ""
}
