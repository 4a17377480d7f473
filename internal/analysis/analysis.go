// Package analysis provides functionalities for analyzing reports filed after a session.
// It includes logic for determining the severity of a report and calculating its impact on user reputation.
package analysis

import (
	"strings"

	"vibecall/backend/internal/config"
)

const (
	SeverityLow      = "Low"
	SeverityMedium   = "Medium"
	SeverityCritical = "Critical"
)

var (
	criticalTerms = []string{"underage", "minor", "child", "threat", "violence", "weapon", "nudity", "explicit", "self-harm"}
	mediumTerms   = []string{"harass", "abuse", "hate", "racis", "insult", "sexual", "stalk", "drugs"}
)

// ClassifySeverity maps a free-text report reason to a severity level by keyword.
func ClassifySeverity(reason string) string {
	r := strings.ToLower(reason)
	for _, term := range criticalTerms {
		if strings.Contains(r, term) {
			return SeverityCritical
		}
	}
	for _, term := range mediumTerms {
		if strings.Contains(r, term) {
			return SeverityMedium
		}
	}
	return SeverityLow
}

// GetWeight returns the weight (penalty) for a given severity.
// It returns 0 if the severity is not recognized.
func GetWeight(severity string) int {
	return config.ComplaintWeights[severity]
}
