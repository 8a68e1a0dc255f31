package warden

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/viant/warden/internal/clock"
	"github.com/viant/warden/internal/idgen"
	auditmodel "github.com/viant/warden/model/audit"
	planmodel "github.com/viant/warden/model/plan"
	request "github.com/viant/warden/model/request"
	"github.com/viant/warden/service/approval"
	"github.com/viant/warden/service/audit"
	auditfs "github.com/viant/warden/service/audit/fs"
	auditmem "github.com/viant/warden/service/audit/memory"
	"github.com/viant/warden/service/dao"
	plandao "github.com/viant/warden/service/dao/plan"
	planfs "github.com/viant/warden/service/dao/plan/fs"
	planmem "github.com/viant/warden/service/dao/plan/memory"
	requestdao "github.com/viant/warden/service/dao/request"
	requestfs "github.com/viant/warden/service/dao/request/fs"
	requestmem "github.com/viant/warden/service/dao/request/memory"
	"github.com/viant/warden/service/executor"
	"github.com/viant/warden/service/planner"
	"github.com/viant/warden/service/risk"
	"github.com/viant/warden/service/scheduler"
)

// Service is the engine facade: it creates risk-scored action requests,
// decomposes plans into tracked tasks and owns the poller runtime.
type Service struct {
	config        *Config
	requestDAO    requestdao.Store
	planDAO       plandao.Store
	auditSvc      audit.Service
	executor      *executor.Service
	tracker       *planner.Service
	registrations map[string]*executor.Registration
	runtime       *Runtime
}

// New creates an engine service. Without options it runs entirely in memory.
func New(options ...Option) (*Service, error) {
	ret := &Service{
		config:        DefaultConfig(),
		registrations: make(map[string]*executor.Registration),
		runtime:       &Runtime{},
	}
	for _, option := range options {
		option(ret)
	}
	if err := ret.init(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (s *Service) init() error {
	if err := s.config.Validate(); err != nil {
		return err
	}
	if err := s.ensureBaseSetup(); err != nil {
		return err
	}
	s.executor = executor.New(s.auditSvc, s.config.Retry)
	for action, registration := range s.registrations {
		s.executor.Register(action, registration)
	}
	s.tracker = planner.New(s.planDAO, s.requestDAO, s.auditSvc)
	s.runtime.scheduler = scheduler.New(s.requestDAO, s.planDAO, s.tracker, s.executor, s.auditSvc, s.config.Scheduler)
	return nil
}

func (s *Service) ensureBaseSetup() error {
	var err error
	if s.requestDAO == nil {
		if s.config.BaseURL != "" {
			if s.requestDAO, err = requestfs.New(path.Join(s.config.BaseURL, "requests")); err != nil {
				return err
			}
		} else {
			s.requestDAO = requestmem.New()
		}
	}
	if s.planDAO == nil {
		if s.config.BaseURL != "" {
			if s.planDAO, err = planfs.New(path.Join(s.config.BaseURL, "plans")); err != nil {
				return err
			}
		} else {
			s.planDAO = planmem.New()
		}
	}
	if s.auditSvc == nil {
		if s.config.BaseURL != "" {
			if s.auditSvc, err = auditfs.New(path.Join(s.config.BaseURL, "audit")); err != nil {
				return err
			}
		} else {
			s.auditSvc = auditmem.New()
		}
	}
	return nil
}

// RegisterHandler binds the external collaborator for an action type.
func (s *Service) RegisterHandler(action string, registration *executor.Registration) {
	s.executor.Register(action, registration)
}

// Runtime returns the poller runtime.
func (s *Service) Runtime() *Runtime {
	return s.runtime
}

// Store returns the underlying request store.
func (s *Service) Store() requestdao.Store {
	return s.requestDAO
}

// Plans returns the underlying plan store.
func (s *Service) Plans() plandao.Store {
	return s.planDAO
}

// Audit returns the audit logger.
func (s *Service) Audit() audit.Service {
	return s.auditSvc
}

// CreateRequest scores and persists a new action request. Depending on the
// action's rule the record is created pending human review or, when the
// score clears the auto-approval threshold, directly approved. The creation
// is committed only once its audit record is durable.
func (s *Service) CreateRequest(ctx context.Context, action string, payload map[string]interface{},
	attributes risk.Attributes, body string) (*request.ActionRequest, error) {
	if action == "" {
		return nil, fmt.Errorf("%w: action type is required", dao.ErrInvalidPayload)
	}
	score, level := risk.Score(attributes)
	rule := s.config.Rules.RuleFor(action)
	now := clock.Now()

	status := request.StatusPending
	if !rule.RequiresApproval || rule.AutoApproves(score) {
		status = request.StatusApproved
	}
	r := &request.ActionRequest{
		ID:        idgen.New(),
		Action:    action,
		Status:    status,
		RiskScore: score,
		RiskLevel: string(level),
		CreatedAt: now,
		TimeoutAt: now.Add(time.Duration(rule.TimeoutMinutes) * time.Minute),
		Payload:   payload,
		Body:      body,
	}
	if err := s.requestDAO.Create(ctx, r); err != nil {
		return nil, err
	}
	entry := &auditmodel.Record{
		Timestamp:  now,
		EntityID:   r.ID,
		FromStatus: "",
		ToStatus:   string(status),
		Actor:      auditmodel.ActorCaller,
		Detail:     fmt.Sprintf("created %s request (risk %d/%s)", action, score, level),
	}
	if err := s.auditSvc.Record(ctx, entry); err != nil {
		// The creation never happened without its audit record.
		if rbErr := s.requestDAO.Remove(ctx, status, r.ID); rbErr != nil {
			return nil, fmt.Errorf("audit write failed (%v) and rollback of request %s failed: %w", err, r.ID, rbErr)
		}
		return nil, fmt.Errorf("audit write failed for request %s: %w", r.ID, err)
	}
	return r, nil
}

// SubmitPlan persists a plan and its decomposed tasks. Tasks start blocked;
// the poller unblocks them as dependencies complete.
func (s *Service) SubmitPlan(ctx context.Context, aPlan *planmodel.Plan, tasks []*planmodel.Task) error {
	if aPlan == nil {
		return fmt.Errorf("%w: plan is required", dao.ErrInvalidPayload)
	}
	if aPlan.ID == "" {
		aPlan.ID = idgen.New()
	}
	now := clock.Now()
	if aPlan.CreatedAt.IsZero() {
		aPlan.CreatedAt = now
	}
	if aPlan.TotalSteps == 0 {
		aPlan.TotalSteps = len(tasks)
	}
	if err := aPlan.Validate(); err != nil {
		return fmt.Errorf("%w: %v", dao.ErrInvalidPayload, err)
	}
	for _, task := range tasks {
		if task == nil {
			return fmt.Errorf("%w: plan %s contains a nil task", dao.ErrInvalidPayload, aPlan.ID)
		}
		task.PlanID = aPlan.ID
		if task.ID == "" {
			task.ID = idgen.New()
		}
		if task.Status == "" {
			task.Status = planmodel.TaskStatusBlocked
		}
		task.TotalSteps = aPlan.TotalSteps
		task.CreatedAt = now
		task.UpdatedAt = now
		if err := task.Validate(); err != nil {
			return fmt.Errorf("%w: %v", dao.ErrInvalidPayload, err)
		}
	}
	if err := s.planDAO.SavePlan(ctx, aPlan); err != nil {
		return err
	}
	for _, task := range tasks {
		if err := s.planDAO.CreateTask(ctx, task); err != nil {
			return err
		}
		entry := &auditmodel.Record{
			Timestamp:  now,
			EntityID:   task.ID,
			FromStatus: "",
			ToStatus:   string(task.Status),
			Actor:      auditmodel.ActorCaller,
			Detail:     fmt.Sprintf("created step %d/%d of plan %s", task.StepIndex, task.TotalSteps, aPlan.ID),
		}
		if err := s.auditSvc.Record(ctx, entry); err != nil {
			return fmt.Errorf("audit write failed for task %s: %w", task.ID, err)
		}
	}
	return nil
}

// Decide applies a programmatic decision to a pending request, emulating
// the human editor.
func (s *Service) Decide(ctx context.Context, id string, approved bool, reason string) error {
	return approval.Decide(ctx, s.requestDAO, id, approved, reason)
}
