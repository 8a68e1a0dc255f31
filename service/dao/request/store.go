// Package request defines the durable store contract for action requests.
// Records live in status-named locations acting as queues; every state
// transition is an atomic claim - an exclusive move of the record out of its
// current location - so that at most one process can win a given transition.
package request

import (
	"context"

	model "github.com/viant/warden/model/request"
)

// Store is the canonical home of action request records.
type Store interface {
	// Create persists a new record under its initial status. It fails with
	// dao.ErrInvalidPayload when required fields are absent and with
	// dao.ErrPermissionDenied when the backing storage is not writable.
	Create(ctx context.Context, r *model.ActionRequest) error

	// Load returns the record with the supplied ID, searching every status
	// location, or dao.ErrNotFound.
	Load(ctx context.Context, id string) (*model.ActionRequest, error)

	// ListByStatus returns every well-formed record currently stored under
	// the supplied status. Malformed records are skipped with a warning and
	// left untouched.
	ListByStatus(ctx context.Context, status model.Status) ([]*model.ActionRequest, error)

	// Claim atomically moves the record out of from into to, applying mutate
	// to the claimed copy before it is rewritten in its new location. Losing
	// the race surfaces as dao.ErrConflict. The claim itself is
	// graph-agnostic - legality of the transition is the state machine's
	// concern.
	Claim(ctx context.Context, id string, from, to model.Status, mutate func(*model.ActionRequest)) (*model.ActionRequest, error)

	// Remove deletes a record from the supplied status location. It exists
	// solely to roll back an unaudited creation - committed records are
	// archived, never deleted.
	Remove(ctx context.Context, location model.Status, id string) error

	// Update rewrites a record in place within the supplied status location
	// without moving it. Used by the decision helpers that emulate a human
	// editor toggling header fields of a record that still sits in the
	// pending queue.
	Update(ctx context.Context, location model.Status, r *model.ActionRequest) error
}

// Statuses enumerates every status location a store maintains.
var Statuses = []model.Status{
	model.StatusPending,
	model.StatusApproved,
	model.StatusRejected,
	model.StatusExecuting,
	model.StatusCompleted,
	model.StatusFailed,
	model.StatusExpired,
}
