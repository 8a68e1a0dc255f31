package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	model "github.com/viant/warden/model/plan"
	"github.com/viant/warden/service/dao"
	plandao "github.com/viant/warden/service/dao/plan"
)

// Service implements an in-memory plan/task store mirroring the filesystem
// backend's claim semantics.
type Service struct {
	mu    sync.Mutex
	plans map[string]*model.Plan
	tasks map[string]*model.Task
}

// Ensure Service implements plandao.Store
var _ plandao.Store = (*Service)(nil)

// New creates an in-memory plan store.
func New() *Service {
	return &Service{
		plans: make(map[string]*model.Plan),
		tasks: make(map[string]*model.Task),
	}
}

// SavePlan persists a plan header.
func (s *Service) SavePlan(_ context.Context, p *model.Plan) error {
	if p == nil {
		return dao.ErrNilEntity
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %v", dao.ErrInvalidPayload, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *p
	s.plans[p.ID] = &clone
	return nil
}

// LoadPlan returns the plan with the supplied ID.
func (s *Service) LoadPlan(_ context.Context, id string) (*model.Plan, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	aPlan, ok := s.plans[id]
	if !ok {
		return nil, fmt.Errorf("%w: plan %s", dao.ErrNotFound, id)
	}
	clone := *aPlan
	return &clone, nil
}

// ListPlans returns every stored plan ordered by ID.
func (s *Service) ListPlans(_ context.Context) ([]*model.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	plans := make([]*model.Plan, 0, len(s.plans))
	for _, aPlan := range s.plans {
		clone := *aPlan
		plans = append(plans, &clone)
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].ID < plans[j].ID })
	return plans, nil
}

// CreateTask persists a new task.
func (s *Service) CreateTask(_ context.Context, t *model.Task) error {
	if t == nil {
		return dao.ErrNilEntity
	}
	if err := t.Validate(); err != nil {
		return fmt.Errorf("%w: %v", dao.ErrInvalidPayload, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[t.ID]; exists {
		return fmt.Errorf("task %s already exists", t.ID)
	}
	s.tasks[t.ID] = t.Clone()
	return nil
}

// LoadTask returns the task with the supplied ID.
func (s *Service) LoadTask(_ context.Context, id string) (*model.Task, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: task %s", dao.ErrNotFound, id)
	}
	return task.Clone(), nil
}

// ListTasks returns every task of the supplied plan ordered by step index.
func (s *Service) ListTasks(_ context.Context, planID string) ([]*model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var tasks []*model.Task
	for _, task := range s.tasks {
		if planID != "" && task.PlanID != planID {
			continue
		}
		tasks = append(tasks, task.Clone())
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].StepIndex < tasks[j].StepIndex })
	return tasks, nil
}

// ClaimTask atomically transitions a task between statuses.
func (s *Service) ClaimTask(_ context.Context, id string, from, to model.TaskStatus, mutate func(*model.Task)) (*model.Task, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok || task.Status != from {
		return nil, fmt.Errorf("%w: task %s no longer in %s", dao.ErrConflict, id, from)
	}
	claimed := task.Clone()
	claimed.Status = to
	if mutate != nil {
		mutate(claimed)
	}
	s.tasks[id] = claimed
	return claimed.Clone(), nil
}
