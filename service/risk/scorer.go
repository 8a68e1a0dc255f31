// Package risk scores proposed actions so that callers can decide whether an
// action may be auto-approved or requires a human decision. Scoring is a
// deterministic weighted sum over attribute flags - no side effects.
package risk

// Level is the categorical assessment derived from a numeric score.
type Level string

const (
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

// Attribute weights. The sum of all flags exceeds the high bucket on purpose
// so that a fully flagged action lands in the critical level.
const (
	weightExternalRecipient = 20
	weightIrreversible      = 35
	weightSensitiveData     = 25
	weightFinancialImpact   = 30
)

// Attributes are the flags contributing to an action's risk score.
type Attributes struct {
	ExternalRecipient     bool `yaml:"external_recipient" json:"externalRecipient"`
	Irreversible          bool `yaml:"irreversible" json:"irreversible"`
	ContainsSensitiveData bool `yaml:"contains_sensitive_data" json:"containsSensitiveData"`
	HasFinancialImpact    bool `yaml:"has_financial_impact" json:"hasFinancialImpact"`
}

// Score maps action attributes to a numeric risk score and its level.
func Score(attributes Attributes) (int, Level) {
	score := 0
	if attributes.ExternalRecipient {
		score += weightExternalRecipient
	}
	if attributes.Irreversible {
		score += weightIrreversible
	}
	if attributes.ContainsSensitiveData {
		score += weightSensitiveData
	}
	if attributes.HasFinancialImpact {
		score += weightFinancialImpact
	}
	return score, LevelOf(score)
}

// LevelOf buckets a numeric score into a level: 0-20 low, 21-50 medium,
// 51-100 high, above critical.
func LevelOf(score int) Level {
	switch {
	case score <= 20:
		return LevelLow
	case score <= 50:
		return LevelMedium
	case score <= 100:
		return LevelHigh
	default:
		return LevelCritical
	}
}
