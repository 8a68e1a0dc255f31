package request

import (
	"fmt"
	"time"
)

// Status represents the lifecycle state of an action request.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusExecuting Status = "executing"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusExpired   Status = "expired"
)

// successors encodes the legal transition graph. Terminal states have no
// entry - any transition out of them is illegal.
var successors = map[Status][]Status{
	StatusPending:   {StatusApproved, StatusRejected, StatusExpired},
	StatusApproved:  {StatusExecuting},
	StatusExecuting: {StatusCompleted, StatusFailed},
}

// Successors returns the legally reachable statuses from the supplied status.
func Successors(from Status) []Status {
	return successors[from]
}

// CanTransition reports whether from -> to is a legal transition.
func CanTransition(from, to Status) bool {
	for _, s := range successors[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is permitted.
func IsTerminal(status Status) bool {
	return len(successors[status]) == 0
}

// IsValid reports whether the supplied value is a known status. Human edits
// are validated with it before being honoured.
func IsValid(status Status) bool {
	switch status {
	case StatusPending, StatusApproved, StatusRejected, StatusExecuting,
		StatusCompleted, StatusFailed, StatusExpired:
		return true
	}
	return false
}

// ActionRequest is a durable record of one proposed sensitive action awaiting
// or having received a decision. The header fields below are persisted as a
// key/value block; Body carries the free-form human readable part of the
// record file. Status and RejectionReason are the only fields a human editor
// is expected to change.
type ActionRequest struct {
	ID              string                 `yaml:"id" json:"id"`
	Action          string                 `yaml:"action" json:"action"`
	Status          Status                 `yaml:"status" json:"status"`
	RiskScore       int                    `yaml:"risk_score" json:"riskScore"`
	RiskLevel       string                 `yaml:"risk_level" json:"riskLevel"`
	CreatedAt       time.Time              `yaml:"created_at" json:"createdAt"`
	TimeoutAt       time.Time              `yaml:"timeout_at" json:"timeoutAt"`
	DecisionAt      *time.Time             `yaml:"decision_at,omitempty" json:"decisionAt,omitempty"`
	ExecutedAt      *time.Time             `yaml:"executed_at,omitempty" json:"executedAt,omitempty"`
	RetryCount      int                    `yaml:"retry_count" json:"retryCount"`
	LastError       string                 `yaml:"last_error,omitempty" json:"lastError,omitempty"`
	RejectionReason string                 `yaml:"rejection_reason,omitempty" json:"rejectionReason,omitempty"`
	ExecutionResult string                 `yaml:"execution_result,omitempty" json:"executionResult,omitempty"`
	Payload         map[string]interface{} `yaml:"payload,omitempty" json:"payload,omitempty"`

	Body string `yaml:"-" json:"body,omitempty"`
}

// Validate checks the required fields of a request before it is persisted.
func (r *ActionRequest) Validate() error {
	if r == nil {
		return fmt.Errorf("request was nil")
	}
	if r.ID == "" {
		return fmt.Errorf("request ID was empty")
	}
	if r.Action == "" {
		return fmt.Errorf("request action was empty")
	}
	if !IsValid(r.Status) {
		return fmt.Errorf("invalid request status: %q", r.Status)
	}
	return nil
}

// Clone returns a deep enough copy for safe mutation by a claimant.
func (r *ActionRequest) Clone() *ActionRequest {
	if r == nil {
		return nil
	}
	ret := *r
	if r.Payload != nil {
		ret.Payload = make(map[string]interface{}, len(r.Payload))
		for k, v := range r.Payload {
			ret.Payload[k] = v
		}
	}
	return &ret
}
