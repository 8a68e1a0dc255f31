package planner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	plan "github.com/viant/warden/model/plan"
	request "github.com/viant/warden/model/request"
	auditmem "github.com/viant/warden/service/audit/memory"
	planmem "github.com/viant/warden/service/dao/plan/memory"
	requestmem "github.com/viant/warden/service/dao/request/memory"
)

func newTask(id, planID string, stepIndex int, dependsOn ...string) *plan.Task {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	return &plan.Task{
		ID:         id,
		PlanID:     planID,
		StepIndex:  stepIndex,
		TotalSteps: 4,
		Status:     plan.TaskStatusBlocked,
		DependsOn:  dependsOn,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func newFixture(t *testing.T, tasks ...*plan.Task) (*Service, *planmem.Service, *requestmem.Service, *auditmem.Service) {
	planDAO := planmem.New()
	requestDAO := requestmem.New()
	auditSvc := auditmem.New()
	ctx := context.Background()
	for _, task := range tasks {
		assert.NoError(t, planDAO.CreateTask(ctx, task))
	}
	return New(planDAO, requestDAO, auditSvc), planDAO, requestDAO, auditSvc
}

func complete(t *testing.T, planDAO *planmem.Service, id string, from plan.TaskStatus) {
	_, err := planDAO.ClaimTask(context.Background(), id, from, plan.TaskStatusCompleted, nil)
	assert.NoError(t, err)
}

func TestService_ReadyTasks_SequentialDependency(t *testing.T) {
	service, planDAO, _, _ := newFixture(t,
		newTask("task-1", "plan-001", 1),
		newTask("task-2", "plan-001", 2, "task-1"),
	)
	ctx := context.Background()

	ready, err := service.ReadyTasks(ctx, "plan-001")
	assert.NoError(t, err)
	assert.Len(t, ready, 1)
	assert.Equal(t, "task-1", ready[0].ID)

	// task-2 stays blocked while its dependency is unresolved
	loaded, err := planDAO.LoadTask(ctx, "task-2")
	assert.NoError(t, err)
	assert.Equal(t, plan.TaskStatusBlocked, loaded.Status)

	complete(t, planDAO, "task-1", plan.TaskStatusReady)

	ready, err = service.ReadyTasks(ctx, "plan-001")
	assert.NoError(t, err)
	assert.Len(t, ready, 1)
	assert.Equal(t, "task-2", ready[0].ID)
}

func TestService_ReadyTasks_DiamondDependency(t *testing.T) {
	service, planDAO, _, _ := newFixture(t,
		newTask("task-a", "plan-001", 1),
		newTask("task-b", "plan-001", 2, "task-a"),
		newTask("task-c", "plan-001", 3, "task-a"),
		newTask("task-d", "plan-001", 4, "task-b", "task-c"),
	)
	ctx := context.Background()

	ready, err := service.ReadyTasks(ctx, "plan-001")
	assert.NoError(t, err)
	assert.Len(t, ready, 1)
	assert.Equal(t, "task-a", ready[0].ID)

	complete(t, planDAO, "task-a", plan.TaskStatusReady)

	// both branches unblock together, in step index order
	ready, err = service.ReadyTasks(ctx, "plan-001")
	assert.NoError(t, err)
	assert.Len(t, ready, 2)
	assert.Equal(t, "task-b", ready[0].ID)
	assert.Equal(t, "task-c", ready[1].ID)

	// the join waits for every dependency, not just one
	complete(t, planDAO, "task-b", plan.TaskStatusReady)
	ready, err = service.ReadyTasks(ctx, "plan-001")
	assert.NoError(t, err)
	assert.Empty(t, ready)

	complete(t, planDAO, "task-c", plan.TaskStatusReady)
	ready, err = service.ReadyTasks(ctx, "plan-001")
	assert.NoError(t, err)
	assert.Len(t, ready, 1)
	assert.Equal(t, "task-d", ready[0].ID)
}

func TestService_ReadyTasks_FailedDependencyCascades(t *testing.T) {
	service, planDAO, _, auditSvc := newFixture(t,
		newTask("task-1", "plan-001", 1),
		newTask("task-2", "plan-001", 2, "task-1"),
	)
	ctx := context.Background()

	_, err := service.ReadyTasks(ctx, "plan-001")
	assert.NoError(t, err)
	_, err = planDAO.ClaimTask(ctx, "task-1", plan.TaskStatusReady, plan.TaskStatusFailed, nil)
	assert.NoError(t, err)

	ready, err := service.ReadyTasks(ctx, "plan-001")
	assert.NoError(t, err)
	assert.Empty(t, ready)

	loaded, err := planDAO.LoadTask(ctx, "task-2")
	assert.NoError(t, err)
	assert.Equal(t, plan.TaskStatusFailed, loaded.Status)

	records := auditSvc.All()
	last := records[len(records)-1]
	assert.Equal(t, "task-2", last.EntityID)
	assert.Equal(t, "dependency task-1 failed", last.Detail)
}

func TestService_Advance_ApprovalGatedTask(t *testing.T) {
	gated := newTask("task-1", "plan-001", 1)
	gated.RequiresApproval = true
	gated.RequestID = "req-001"
	service, planDAO, requestDAO, _ := newFixture(t, gated)
	ctx := context.Background()

	created := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	linked := &request.ActionRequest{
		ID:        "req-001",
		Action:    "send_email",
		Status:    request.StatusPending,
		CreatedAt: created,
		TimeoutAt: created.Add(24 * time.Hour),
	}
	assert.NoError(t, requestDAO.Create(ctx, linked))

	// the task unblocks but cannot complete while the request is undecided
	assert.NoError(t, service.Advance(ctx, "plan-001"))
	loaded, err := planDAO.LoadTask(ctx, "task-1")
	assert.NoError(t, err)
	assert.Equal(t, plan.TaskStatusReady, loaded.Status)

	_, err = requestDAO.Claim(ctx, "req-001", request.StatusPending, request.StatusApproved, nil)
	assert.NoError(t, err)
	_, err = requestDAO.Claim(ctx, "req-001", request.StatusApproved, request.StatusExecuting, nil)
	assert.NoError(t, err)
	_, err = requestDAO.Claim(ctx, "req-001", request.StatusExecuting, request.StatusCompleted, nil)
	assert.NoError(t, err)

	assert.NoError(t, service.Advance(ctx, "plan-001"))
	loaded, err = planDAO.LoadTask(ctx, "task-1")
	assert.NoError(t, err)
	assert.Equal(t, plan.TaskStatusCompleted, loaded.Status)
}

func TestService_Advance_RejectedRequestFailsTask(t *testing.T) {
	gated := newTask("task-1", "plan-001", 1)
	gated.RequiresApproval = true
	gated.RequestID = "req-001"
	dependent := newTask("task-2", "plan-001", 2, "task-1")
	service, planDAO, requestDAO, _ := newFixture(t, gated, dependent)
	ctx := context.Background()

	created := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	linked := &request.ActionRequest{
		ID:        "req-001",
		Action:    "send_email",
		Status:    request.StatusPending,
		CreatedAt: created,
		TimeoutAt: created.Add(24 * time.Hour),
	}
	assert.NoError(t, requestDAO.Create(ctx, linked))
	_, err := requestDAO.Claim(ctx, "req-001", request.StatusPending, request.StatusRejected, nil)
	assert.NoError(t, err)

	assert.NoError(t, service.Advance(ctx, "plan-001"))
	loaded, err := planDAO.LoadTask(ctx, "task-1")
	assert.NoError(t, err)
	assert.Equal(t, plan.TaskStatusFailed, loaded.Status)

	// the failure cascades to dependents on the following pass
	assert.NoError(t, service.Advance(ctx, "plan-001"))
	loaded, err = planDAO.LoadTask(ctx, "task-2")
	assert.NoError(t, err)
	assert.Equal(t, plan.TaskStatusFailed, loaded.Status)
}
