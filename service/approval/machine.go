package approval

import (
	"errors"
	"fmt"
	"time"

	model "github.com/viant/warden/model/audit"
	request "github.com/viant/warden/model/request"
)

// ErrIllegalStatus is returned when a pending record carries a status value
// that is valid in the model but not a legal successor of pending (for
// example a human writing "completed"). Such records are logged and left
// untouched.
var ErrIllegalStatus = errors.New("approval: illegal status edit")

// Outcome describes the transition the poller must perform for one observed
// pending record.
type Outcome struct {
	// To is the status the record must be claimed into.
	To request.Status

	// Actor identifies who caused the transition (human or timeout).
	Actor string

	// Reason carries the rejection or expiry reason, when any.
	Reason string

	// Execute indicates execution must begin once the claim succeeded.
	Execute bool
}

// Next maps an observed pending record to its required transition. The
// record's header status is whatever the human editor last wrote; nil means
// nothing to do on this tick. Timeout is evaluated only when the status is
// still exactly pending, so an explicit human decision observed on the same
// tick always wins over expiry.
func Next(r *request.ActionRequest, now time.Time) (*Outcome, error) {
	if r == nil {
		return nil, fmt.Errorf("approval: nil request")
	}
	switch r.Status {
	case request.StatusApproved:
		return &Outcome{To: request.StatusApproved, Actor: model.ActorHuman, Execute: true}, nil
	case request.StatusRejected:
		reason := r.RejectionReason
		if reason == "" {
			reason = "Rejected by human (no reason provided)"
		}
		return &Outcome{To: request.StatusRejected, Actor: model.ActorHuman, Reason: reason}, nil
	case request.StatusPending:
		if !now.Before(r.TimeoutAt) {
			minutes := int(r.TimeoutAt.Sub(r.CreatedAt).Minutes())
			return &Outcome{
				To:     request.StatusExpired,
				Actor:  model.ActorTimeout,
				Reason: fmt.Sprintf("Timeout - no response within %d minutes", minutes),
			}, nil
		}
		return nil, nil
	}
	if !request.IsValid(r.Status) {
		return nil, fmt.Errorf("%w: request %s has unrecognized status %q", ErrIllegalStatus, r.ID, r.Status)
	}
	return nil, fmt.Errorf("%w: request %s observed as %q which is not a legal successor of pending", ErrIllegalStatus, r.ID, r.Status)
}
