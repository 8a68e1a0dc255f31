// Package audit defines the append-only audit record emitted for every state
// transition and execution attempt.
package audit

import "time"

// Well-known actors recorded in the audit trail.
const (
	ActorHuman     = "human"
	ActorScheduler = "scheduler"
	ActorExecutor  = "executor"
	ActorTimeout   = "timeout"
	ActorCaller    = "caller"
)

// Record is a single immutable audit entry. Once appended it is never
// mutated; a transition without a durable record is not considered committed.
type Record struct {
	Timestamp  time.Time `json:"timestamp"`
	EntityID   string    `json:"entityId"`
	FromStatus string    `json:"fromStatus"`
	ToStatus   string    `json:"toStatus"`
	Actor      string    `json:"actor"`
	Detail     string    `json:"detail,omitempty"`
}
