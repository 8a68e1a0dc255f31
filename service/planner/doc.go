// Package planner tracks the ordered task records of a plan and computes
// which tasks are unblocked. A task may become ready only when every task it
// depends on is completed; approval-gated tasks additionally follow the
// linked action request to their terminal status. Within one dependency
// chain completion strictly precedes successor readiness - across
// independent branches no ordering is promised.
package planner
