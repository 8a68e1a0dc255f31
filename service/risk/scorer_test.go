package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScore(t *testing.T) {
	testCases := []struct {
		description string
		attributes  Attributes
		expectScore int
		expectLevel Level
	}{
		{
			description: "no flags",
			attributes:  Attributes{},
			expectScore: 0,
			expectLevel: LevelLow,
		},
		{
			description: "external recipient only",
			attributes:  Attributes{ExternalRecipient: true},
			expectScore: 20,
			expectLevel: LevelLow,
		},
		{
			description: "irreversible only",
			attributes:  Attributes{Irreversible: true},
			expectScore: 35,
			expectLevel: LevelMedium,
		},
		{
			description: "external recipient and irreversible",
			attributes:  Attributes{ExternalRecipient: true, Irreversible: true},
			expectScore: 55,
			expectLevel: LevelHigh,
		},
		{
			description: "all flags",
			attributes: Attributes{
				ExternalRecipient:     true,
				Irreversible:          true,
				ContainsSensitiveData: true,
				HasFinancialImpact:    true,
			},
			expectScore: 110,
			expectLevel: LevelCritical,
		},
	}

	for _, testCase := range testCases {
		score, level := Score(testCase.attributes)
		assert.Equal(t, testCase.expectScore, score, testCase.description)
		assert.Equal(t, testCase.expectLevel, level, testCase.description)
	}
}

func TestLevelOf_Boundaries(t *testing.T) {
	assert.Equal(t, LevelLow, LevelOf(20))
	assert.Equal(t, LevelMedium, LevelOf(21))
	assert.Equal(t, LevelMedium, LevelOf(50))
	assert.Equal(t, LevelHigh, LevelOf(51))
	assert.Equal(t, LevelHigh, LevelOf(100))
	assert.Equal(t, LevelCritical, LevelOf(101))
}

func TestRules_RuleFor(t *testing.T) {
	threshold := 30
	rules := Rules{
		"send_email": {Action: "send_email", RequiresApproval: true, TimeoutMinutes: 60},
		"read_file":  {Action: "read_file", RequiresApproval: true, AutoApproveThreshold: &threshold},
	}

	rule := rules.RuleFor("send_email")
	assert.Equal(t, 60, rule.TimeoutMinutes)
	assert.True(t, rule.RequiresApproval)

	// a rule without its own timeout inherits the default
	rule = rules.RuleFor("read_file")
	assert.Equal(t, DefaultTimeoutMinutes, rule.TimeoutMinutes)

	// unknown action types fall back to the conservative default
	rule = rules.RuleFor("delete_everything")
	assert.True(t, rule.RequiresApproval)
	assert.Nil(t, rule.AutoApproveThreshold)
	assert.Equal(t, DefaultTimeoutMinutes, rule.TimeoutMinutes)

	// RuleFor returns a copy, mutating it never touches the rule set
	rule.TimeoutMinutes = 1
	assert.Equal(t, DefaultTimeoutMinutes, rules.RuleFor("read_file").TimeoutMinutes)
}

func TestRule_AutoApproves(t *testing.T) {
	threshold := 30
	rule := &Rule{Action: "read_file", AutoApproveThreshold: &threshold}
	assert.True(t, rule.AutoApproves(29))
	assert.False(t, rule.AutoApproves(30), "threshold itself is not below it")
	assert.False(t, rule.AutoApproves(55))

	noThreshold := &Rule{Action: "send_email", RequiresApproval: true}
	assert.False(t, noThreshold.AutoApproves(0), "nil threshold means approval is mandatory")
}
