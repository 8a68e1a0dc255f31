package risk

// Rule is the per action-type policy surface: whether a human decision is
// required, the optional score threshold below which a request may be
// created directly in approved status, and how long a pending request waits
// before it expires.
type Rule struct {
	Action               string `yaml:"action" json:"action"`
	RequiresApproval     bool   `yaml:"requires_approval" json:"requiresApproval"`
	AutoApproveThreshold *int   `yaml:"auto_approve_threshold,omitempty" json:"autoApproveThreshold,omitempty"`
	TimeoutMinutes       int    `yaml:"timeout_minutes" json:"timeoutMinutes"`
}

// DefaultTimeoutMinutes is applied when a rule does not declare its own
// pending timeout (24 hours).
const DefaultTimeoutMinutes = 1440

// Rules holds the per action-type rule set keyed by action type.
type Rules map[string]*Rule

// RuleFor returns the rule for the supplied action type. Unknown action
// types fall back to the conservative default: mandatory approval and the
// default timeout.
func (r Rules) RuleFor(action string) *Rule {
	if r != nil {
		if rule, ok := r[action]; ok && rule != nil {
			ret := *rule
			if ret.TimeoutMinutes <= 0 {
				ret.TimeoutMinutes = DefaultTimeoutMinutes
			}
			return &ret
		}
	}
	return &Rule{
		Action:           action,
		RequiresApproval: true,
		TimeoutMinutes:   DefaultTimeoutMinutes,
	}
}

// AutoApproves reports whether a request with the supplied score may skip
// human review. A nil threshold means approval is mandatory regardless of
// score.
func (r *Rule) AutoApproves(score int) bool {
	if r == nil || r.AutoApproveThreshold == nil {
		return false
	}
	return score < *r.AutoApproveThreshold
}
