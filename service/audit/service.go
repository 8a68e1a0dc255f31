// Package audit provides the append-only audit trail. Every state transition
// and execution attempt is recorded before it is considered committed -
// failure to append is fatal to the triggering transition.
package audit

import (
	"context"
	"time"

	model "github.com/viant/warden/model/audit"
)

// Service appends and lists immutable audit records.
type Service interface {
	// Record appends an entry to the ordered per-day log. It never
	// overwrites previous entries.
	Record(ctx context.Context, record *model.Record) error

	// List returns the records of the supplied day in append order.
	List(ctx context.Context, day time.Time) ([]*model.Record, error)
}
