// Package plan defines the durable store contract for plans and their tasks.
// Task records follow the same status-directory queue layout as action
// requests; the plan itself is a small header-only record acting as the join
// key over its tasks.
package plan

import (
	"context"

	model "github.com/viant/warden/model/plan"
)

// Store is the canonical home of plan and task records.
type Store interface {
	// SavePlan persists (or overwrites) a plan header.
	SavePlan(ctx context.Context, p *model.Plan) error

	// LoadPlan returns the plan with the supplied ID or dao.ErrNotFound.
	LoadPlan(ctx context.Context, id string) (*model.Plan, error)

	// ListPlans returns every stored plan.
	ListPlans(ctx context.Context) ([]*model.Plan, error)

	// CreateTask persists a new task under its initial status.
	CreateTask(ctx context.Context, t *model.Task) error

	// LoadTask returns the task with the supplied ID, searching every status
	// location, or dao.ErrNotFound.
	LoadTask(ctx context.Context, id string) (*model.Task, error)

	// ListTasks returns every well-formed task belonging to the supplied
	// plan, across all statuses, ordered by step index.
	ListTasks(ctx context.Context, planID string) ([]*model.Task, error)

	// ClaimTask atomically moves a task out of from into to, applying mutate
	// to the claimed copy. Losing the race surfaces as dao.ErrConflict.
	ClaimTask(ctx context.Context, id string, from, to model.TaskStatus, mutate func(*model.Task)) (*model.Task, error)
}

// TaskStatuses enumerates every status location a store maintains for tasks.
var TaskStatuses = []model.TaskStatus{
	model.TaskStatusBlocked,
	model.TaskStatusReady,
	model.TaskStatusInProgress,
	model.TaskStatusCompleted,
	model.TaskStatusFailed,
}
