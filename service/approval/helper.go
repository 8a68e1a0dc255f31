package approval

import (
	"context"
	"fmt"
	"time"

	"github.com/viant/warden/internal/clock"
	request "github.com/viant/warden/model/request"
	requestdao "github.com/viant/warden/service/dao/request"
)

// Decide emulates the privileged human editor: it toggles the status header
// of a pending record in place, without claiming it. The poller honours the
// edit on its next tick. Only pending records may be decided.
func Decide(ctx context.Context, store requestdao.Store, id string, approved bool, reason string) error {
	record, err := store.Load(ctx, id)
	if err != nil {
		return err
	}
	if record.Status != request.StatusPending {
		return fmt.Errorf("request %s is not pending (status %s)", id, record.Status)
	}
	edited := record.Clone()
	if approved {
		edited.Status = request.StatusApproved
	} else {
		edited.Status = request.StatusRejected
		edited.RejectionReason = reason
	}
	// The record file stays in the pending queue - only its header changes,
	// exactly like a human edit. The poller claims it on the next tick.
	return store.Update(ctx, request.StatusPending, edited)
}

// DecisionFunc decides what to do with a pending request: return true to
// approve, or false with a reason to reject.
type DecisionFunc func(r *request.ActionRequest) (approved bool, reason string)

// AutoDecider starts a goroutine that polls the pending queue and applies fn
// to every undecided request. Call the returned stop function (or cancel ctx)
// to exit.
func AutoDecider(ctx context.Context,
	store requestdao.Store,
	fn DecisionFunc,
	interval time.Duration) (stop func()) {

	if interval <= 0 {
		interval = 20 * time.Millisecond
	}
	done := make(chan struct{})

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				pending, _ := store.ListByStatus(ctx, request.StatusPending)
				for _, r := range pending {
					if r.Status != request.StatusPending {
						continue // already decided, waiting for the poller
					}
					if !clock.Now().Before(r.TimeoutAt) {
						continue // let the poller expire it
					}
					ok, reason := fn(r)
					_ = Decide(ctx, store, r.ID, ok, reason)
				}
			}
		}
	}()
	return func() { close(done) }
}

// AutoApprove automatically approves all pending requests
func AutoApprove(ctx context.Context,
	store requestdao.Store,
	interval time.Duration) func() {
	return AutoDecider(ctx, store,
		func(*request.ActionRequest) (bool, string) { return true, "" }, interval)
}

// AutoReject automatically rejects all pending requests with the given reason
func AutoReject(ctx context.Context,
	store requestdao.Store,
	reason string,
	interval time.Duration) func() {
	return AutoDecider(ctx, store,
		func(*request.ActionRequest) (bool, string) { return false, reason }, interval)
}
