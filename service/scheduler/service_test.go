package scheduler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/viant/warden/internal/clock"
	plan "github.com/viant/warden/model/plan"
	request "github.com/viant/warden/model/request"
	"github.com/viant/warden/service/approval"
	auditmem "github.com/viant/warden/service/audit/memory"
	planmem "github.com/viant/warden/service/dao/plan/memory"
	requestmem "github.com/viant/warden/service/dao/request/memory"
	"github.com/viant/warden/service/executor"
	"github.com/viant/warden/service/planner"
)

type fixture struct {
	service    *Service
	requestDAO *requestmem.Service
	planDAO    *planmem.Service
	auditSvc   *auditmem.Service
	executor   *executor.Service
	now        *time.Time
}

func newFixture(t *testing.T) *fixture {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	previousNow := clock.NowFunc
	previousSleep := clock.SleepFunc
	clock.NowFunc = func() time.Time { return now }
	clock.SleepFunc = func(time.Duration) {}
	t.Cleanup(func() {
		clock.NowFunc = previousNow
		clock.SleepFunc = previousSleep
	})

	requestDAO := requestmem.New()
	planDAO := planmem.New()
	auditSvc := auditmem.New()
	retryExecutor := executor.New(auditSvc, executor.DefaultConfig())
	tracker := planner.New(planDAO, requestDAO, auditSvc)
	service := New(requestDAO, planDAO, tracker, retryExecutor, auditSvc, DefaultConfig())
	return &fixture{
		service:    service,
		requestDAO: requestDAO,
		planDAO:    planDAO,
		auditSvc:   auditSvc,
		executor:   retryExecutor,
		now:        &now,
	}
}

func (f *fixture) createPending(t *testing.T, id string, timeoutMinutes int) *request.ActionRequest {
	r := &request.ActionRequest{
		ID:        id,
		Action:    "send_email",
		Status:    request.StatusPending,
		CreatedAt: *f.now,
		TimeoutAt: f.now.Add(time.Duration(timeoutMinutes) * time.Minute),
	}
	assert.NoError(t, f.requestDAO.Create(context.Background(), r))
	return r
}

func (f *fixture) registerSuccess() {
	f.executor.Register("send_email", &executor.Registration{
		Handler: func(ctx context.Context, action string, payload map[string]interface{}) (*executor.Result, error) {
			return &executor.Result{Success: true, Detail: "delivered", MessageID: "msg-42"}, nil
		},
	})
}

func TestService_Tick_ApprovedRequestRunsToCompletion(t *testing.T) {
	f := newFixture(t)
	f.registerSuccess()
	ctx := context.Background()

	f.createPending(t, "req-001", 60)
	assert.NoError(t, approval.Decide(ctx, f.requestDAO, "req-001", true, ""))

	assert.NoError(t, f.service.Tick(ctx))

	loaded, err := f.requestDAO.Load(ctx, "req-001")
	assert.NoError(t, err)
	assert.Equal(t, request.StatusCompleted, loaded.Status)
	assert.NotNil(t, loaded.DecisionAt)
	assert.NotNil(t, loaded.ExecutedAt)
	assert.Equal(t, 0, loaded.RetryCount)
	assert.Equal(t, "delivered (message msg-42)", loaded.ExecutionResult)

	// one audit record per transition plus one per execution attempt
	records := f.auditSvc.All()
	assert.Len(t, records, 4)
	assert.Equal(t, "approved", records[0].ToStatus)
	assert.Equal(t, "executing", records[1].ToStatus)
	assert.Contains(t, records[2].Detail, "attempt 1/3")
	assert.Equal(t, "completed", records[3].ToStatus)
}

func TestService_Tick_RejectedRequestArchives(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.createPending(t, "req-001", 60)
	assert.NoError(t, approval.Decide(ctx, f.requestDAO, "req-001", false, "not today"))

	assert.NoError(t, f.service.Tick(ctx))

	loaded, err := f.requestDAO.Load(ctx, "req-001")
	assert.NoError(t, err)
	assert.Equal(t, request.StatusRejected, loaded.Status)
	assert.Equal(t, "not today", loaded.RejectionReason)
	assert.Nil(t, loaded.ExecutedAt, "a rejected request is never executed")
}

func TestService_Tick_ExpiresTimedOutRequestOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.createPending(t, "req-001", 60)
	*f.now = f.now.Add(61 * time.Minute)

	assert.NoError(t, f.service.Tick(ctx))

	loaded, err := f.requestDAO.Load(ctx, "req-001")
	assert.NoError(t, err)
	assert.Equal(t, request.StatusExpired, loaded.Status)
	assert.Equal(t, "Timeout - no response within 60 minutes", loaded.RejectionReason)

	records := f.auditSvc.All()
	assert.Len(t, records, 1)

	// expiry is terminal, further ticks change nothing
	assert.NoError(t, f.service.Tick(ctx))
	assert.Len(t, f.auditSvc.All(), 1)
}

func TestService_Tick_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.registerSuccess()
	ctx := context.Background()

	f.createPending(t, "req-001", 60)
	assert.NoError(t, approval.Decide(ctx, f.requestDAO, "req-001", true, ""))

	assert.NoError(t, f.service.Tick(ctx))
	after := len(f.auditSvc.All())

	// re-running the cycle over unchanged state performs no transitions
	assert.NoError(t, f.service.Tick(ctx))
	assert.NoError(t, f.service.Tick(ctx))
	assert.Len(t, f.auditSvc.All(), after)
}

func TestService_Tick_FailedExecutionArchivesWithRetryCount(t *testing.T) {
	f := newFixture(t)
	f.executor.Register("send_email", &executor.Registration{
		Handler: func(ctx context.Context, action string, payload map[string]interface{}) (*executor.Result, error) {
			return &executor.Result{Success: false, Retryable: true, Detail: "smtp connection reset"}, nil
		},
	})
	ctx := context.Background()

	f.createPending(t, "req-001", 60)
	assert.NoError(t, approval.Decide(ctx, f.requestDAO, "req-001", true, ""))

	assert.NoError(t, f.service.Tick(ctx))

	loaded, err := f.requestDAO.Load(ctx, "req-001")
	assert.NoError(t, err)
	assert.Equal(t, request.StatusFailed, loaded.Status)
	assert.Equal(t, 2, loaded.RetryCount)
	assert.Equal(t, "smtp connection reset", loaded.LastError)
}

func TestService_Tick_IgnoresIllegalHumanEdit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r := f.createPending(t, "req-001", 60)
	edited := r.Clone()
	edited.Status = request.StatusCompleted
	assert.NoError(t, f.requestDAO.Update(ctx, request.StatusPending, edited))

	assert.NoError(t, f.service.Tick(ctx))

	// the record is left untouched in the pending queue
	pending, err := f.requestDAO.ListByStatus(ctx, request.StatusPending)
	assert.NoError(t, err)
	assert.Len(t, pending, 1)
	assert.Equal(t, request.StatusCompleted, pending[0].Status)
	assert.Empty(t, f.auditSvc.All())
}

func TestService_Tick_AuditFailureIsFatalAndRolledBack(t *testing.T) {
	f := newFixture(t)
	f.registerSuccess()
	ctx := context.Background()

	f.createPending(t, "req-001", 60)
	assert.NoError(t, approval.Decide(ctx, f.requestDAO, "req-001", true, ""))

	f.auditSvc.FailWith(fmt.Errorf("disk full"))
	assert.Error(t, f.service.Tick(ctx))

	// the unaudited claim was rolled back, the decision edit survives
	pending, err := f.requestDAO.ListByStatus(ctx, request.StatusPending)
	assert.NoError(t, err)
	assert.Len(t, pending, 1)
	assert.Equal(t, request.StatusApproved, pending[0].Status)

	// once the log recovers the next tick completes the request
	f.auditSvc.FailWith(nil)
	assert.NoError(t, f.service.Tick(ctx))
	loaded, err := f.requestDAO.Load(ctx, "req-001")
	assert.NoError(t, err)
	assert.Equal(t, request.StatusCompleted, loaded.Status)
}

func TestService_Tick_AdvancesPlans(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	now := *f.now
	assert.NoError(t, f.planDAO.SavePlan(ctx, &plan.Plan{ID: "plan-001", Name: "release", CreatedAt: now, TotalSteps: 2}))
	assert.NoError(t, f.planDAO.CreateTask(ctx, &plan.Task{
		ID: "task-1", PlanID: "plan-001", StepIndex: 1, TotalSteps: 2,
		Status: plan.TaskStatusBlocked, CreatedAt: now, UpdatedAt: now,
	}))
	assert.NoError(t, f.planDAO.CreateTask(ctx, &plan.Task{
		ID: "task-2", PlanID: "plan-001", StepIndex: 2, TotalSteps: 2,
		Status: plan.TaskStatusBlocked, DependsOn: []string{"task-1"}, CreatedAt: now, UpdatedAt: now,
	}))

	assert.NoError(t, f.service.Tick(ctx))

	loaded, err := f.planDAO.LoadTask(ctx, "task-1")
	assert.NoError(t, err)
	assert.Equal(t, plan.TaskStatusReady, loaded.Status)
	loaded, err = f.planDAO.LoadTask(ctx, "task-2")
	assert.NoError(t, err)
	assert.Equal(t, plan.TaskStatusBlocked, loaded.Status)
}
