package planner

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/viant/warden/internal/clock"
	auditmodel "github.com/viant/warden/model/audit"
	plan "github.com/viant/warden/model/plan"
	request "github.com/viant/warden/model/request"
	"github.com/viant/warden/service/audit"
	"github.com/viant/warden/service/dao"
	plandao "github.com/viant/warden/service/dao/plan"
	requestdao "github.com/viant/warden/service/dao/request"
)

// Service advances plan tasks as their dependencies resolve.
type Service struct {
	planDAO    plandao.Store
	requestDAO requestdao.Store
	auditSvc   audit.Service
}

// New creates a plan tracker.
func New(planDAO plandao.Store, requestDAO requestdao.Store, auditSvc audit.Service) *Service {
	return &Service{planDAO: planDAO, requestDAO: requestDAO, auditSvc: auditSvc}
}

// ReadyTasks unblocks every task of the supplied plan whose dependencies are
// all completed and returns the tasks that became ready, in ascending step
// index order. Tasks with a failed dependency are failed instead - they can
// never legally become ready.
func (s *Service) ReadyTasks(ctx context.Context, planID string) ([]*plan.Task, error) {
	tasks, err := s.planDAO.ListTasks(ctx, planID)
	if err != nil {
		return nil, err
	}
	statusOf := make(map[string]plan.TaskStatus, len(tasks))
	for _, task := range tasks {
		statusOf[task.ID] = task.Status
	}

	var ready []*plan.Task
	for _, task := range tasks {
		if task.Status != plan.TaskStatusBlocked {
			continue
		}
		completed := 0
		var failedDep string
		for _, depID := range task.DependsOn {
			switch statusOf[depID] {
			case plan.TaskStatusCompleted:
				completed++
			case plan.TaskStatusFailed:
				failedDep = depID
			}
		}
		if failedDep != "" {
			detail := fmt.Sprintf("dependency %s failed", failedDep)
			if err := s.transition(ctx, task, plan.TaskStatusBlocked, plan.TaskStatusFailed, detail); err != nil {
				return ready, err
			}
			continue
		}
		if completed != len(task.DependsOn) {
			continue
		}
		if err := s.transition(ctx, task, plan.TaskStatusBlocked, plan.TaskStatusReady, ""); err != nil {
			return ready, err
		}
		ready = append(ready, task)
	}
	return ready, nil
}

// Advance performs one full tracking pass over a plan: it unblocks eligible
// tasks and settles approval-gated tasks against their linked action
// request.
func (s *Service) Advance(ctx context.Context, planID string) error {
	if _, err := s.ReadyTasks(ctx, planID); err != nil {
		return err
	}
	tasks, err := s.planDAO.ListTasks(ctx, planID)
	if err != nil {
		return err
	}
	for _, task := range tasks {
		if !task.RequiresApproval || task.RequestID == "" {
			continue
		}
		if task.Status != plan.TaskStatusReady && task.Status != plan.TaskStatusInProgress {
			continue
		}
		linked, err := s.requestDAO.Load(ctx, task.RequestID)
		if err != nil {
			if errors.Is(err, dao.ErrNotFound) {
				log.Printf("warn: task %s links missing request %s", task.ID, task.RequestID)
				continue
			}
			return err
		}
		switch linked.Status {
		case request.StatusCompleted:
			detail := fmt.Sprintf("request %s completed", linked.ID)
			if err := s.transition(ctx, task, task.Status, plan.TaskStatusCompleted, detail); err != nil {
				return err
			}
		case request.StatusRejected, request.StatusExpired, request.StatusFailed:
			detail := fmt.Sprintf("request %s %s", linked.ID, linked.Status)
			if err := s.transition(ctx, task, task.Status, plan.TaskStatusFailed, detail); err != nil {
				return err
			}
		}
	}
	return nil
}

// transition claims a task move and commits it with an audit record; when the
// audit append fails the claim is rolled back so the transition never counts.
func (s *Service) transition(ctx context.Context, task *plan.Task, from, to plan.TaskStatus, detail string) error {
	claimed, err := s.planDAO.ClaimTask(ctx, task.ID, from, to, func(t *plan.Task) {
		t.UpdatedAt = clock.Now()
	})
	if err != nil {
		if errors.Is(err, dao.ErrConflict) {
			return nil // another poller advanced it first
		}
		return err
	}
	record := &auditmodel.Record{
		Timestamp:  clock.Now(),
		EntityID:   claimed.ID,
		FromStatus: string(from),
		ToStatus:   string(to),
		Actor:      auditmodel.ActorScheduler,
		Detail:     detail,
	}
	if err = s.auditSvc.Record(ctx, record); err != nil {
		if _, rbErr := s.planDAO.ClaimTask(ctx, task.ID, to, from, nil); rbErr != nil {
			return fmt.Errorf("audit write failed (%v) and rollback of task %s failed: %w", err, task.ID, rbErr)
		}
		return fmt.Errorf("audit write failed for task %s: %w", task.ID, err)
	}
	return nil
}
