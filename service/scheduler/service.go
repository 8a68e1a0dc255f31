package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/viant/warden/internal/clock"
	auditmodel "github.com/viant/warden/model/audit"
	request "github.com/viant/warden/model/request"
	"github.com/viant/warden/service/approval"
	"github.com/viant/warden/service/audit"
	"github.com/viant/warden/service/dao"
	plandao "github.com/viant/warden/service/dao/plan"
	requestdao "github.com/viant/warden/service/dao/request"
	"github.com/viant/warden/service/executor"
	"github.com/viant/warden/service/planner"
	"github.com/viant/warden/tracing"
)

// Config represents poller configuration.
type Config struct {
	// PollInterval is how often the poller scans the queues.
	PollInterval time.Duration `yaml:"poll_interval" json:"pollInterval"`
}

// DefaultConfig returns the default poller configuration.
func DefaultConfig() Config {
	return Config{PollInterval: 5 * time.Second}
}

// Service is the cooperative polling loop.
type Service struct {
	config     Config
	requestDAO requestdao.Store
	planDAO    plandao.Store
	tracker    *planner.Service
	executor   *executor.Service
	auditSvc   audit.Service
	shutdownCh chan struct{}
}

// New creates a poller service.
func New(requestDAO requestdao.Store, planDAO plandao.Store, tracker *planner.Service,
	retryExecutor *executor.Service, auditSvc audit.Service, config Config) *Service {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultConfig().PollInterval
	}
	return &Service{
		config:     config,
		requestDAO: requestDAO,
		planDAO:    planDAO,
		tracker:    tracker,
		executor:   retryExecutor,
		auditSvc:   auditSvc,
		shutdownCh: make(chan struct{}),
	}
}

// Start begins the polling loop. It returns when the context is cancelled,
// the service is shut down, or a tick fails fatally - an unaudited state
// change must halt the process rather than proceed.
func (s *Service) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.shutdownCh:
			return nil
		case <-ticker.C:
			if err := s.Tick(ctx); err != nil {
				return fmt.Errorf("tick failed fatally: %w", err)
			}
		}
	}
}

// Shutdown stops the polling loop.
func (s *Service) Shutdown() {
	close(s.shutdownCh)
}

// Tick runs one complete poll cycle. Recoverable problems (malformed
// records, lost claims, storage hiccups) are logged and skipped; only audit
// write failures surface as an error.
func (s *Service) Tick(ctx context.Context) (err error) {
	ctx, span := tracing.StartSpan(ctx, "scheduler.Tick", "INTERNAL")
	defer func() { tracing.EndSpan(span, err) }()

	if err = s.pollPending(ctx); err != nil {
		return err
	}
	if err = s.pollApproved(ctx); err != nil {
		return err
	}
	return s.pollPlans(ctx)
}

// pollPending applies the approval state machine to every record in the
// pending queue.
func (s *Service) pollPending(ctx context.Context) error {
	pending, err := s.requestDAO.ListByStatus(ctx, request.StatusPending)
	if err != nil {
		log.Printf("warn: failed to list pending requests: %v", err)
		return nil
	}
	now := clock.Now()
	for _, r := range pending {
		outcome, err := approval.Next(r, now)
		if err != nil {
			// Unrecognized or illegal human edit: reject the value, keep the
			// record untouched.
			log.Printf("warn: %v", err)
			continue
		}
		if outcome == nil {
			continue
		}
		if err = s.transition(ctx, r, request.StatusPending, outcome.To, outcome.Actor, outcome.Reason,
			func(t *request.ActionRequest) {
				decidedAt := now
				t.DecisionAt = &decidedAt
				if outcome.Reason != "" {
					t.RejectionReason = outcome.Reason
				}
			}); err != nil {
			return err
		}
	}
	return nil
}

// pollApproved starts execution for every record in the approved queue -
// both records just claimed out of pending and records created directly in
// approved status by an auto-approval rule.
func (s *Service) pollApproved(ctx context.Context) error {
	approved, err := s.requestDAO.ListByStatus(ctx, request.StatusApproved)
	if err != nil {
		log.Printf("warn: failed to list approved requests: %v", err)
		return nil
	}
	for _, r := range approved {
		if err := s.execute(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

// pollPlans advances every known plan.
func (s *Service) pollPlans(ctx context.Context) error {
	plans, err := s.planDAO.ListPlans(ctx)
	if err != nil {
		log.Printf("warn: failed to list plans: %v", err)
		return nil
	}
	for _, aPlan := range plans {
		if err := s.tracker.Advance(ctx, aPlan.ID); err != nil {
			return err
		}
	}
	return nil
}

// execute claims an approved record into executing, runs the retry executor
// and archives the final outcome. The executing claim is the at-most-once
// gate: a record already claimed by another poller is a no-op here.
func (s *Service) execute(ctx context.Context, r *request.ActionRequest) error {
	now := clock.Now()
	claimed, err := s.requestDAO.Claim(ctx, r.ID, request.StatusApproved, request.StatusExecuting,
		func(t *request.ActionRequest) {
			if t.ExecutedAt == nil {
				executedAt := now
				t.ExecutedAt = &executedAt
			}
		})
	if err != nil {
		if errors.Is(err, dao.ErrConflict) {
			return nil
		}
		log.Printf("warn: failed to claim request %s for execution: %v", r.ID, err)
		return nil
	}
	if err = s.record(ctx, claimed.ID, request.StatusApproved, request.StatusExecuting, auditmodel.ActorScheduler, ""); err != nil {
		// Roll the unaudited claim back so the record can be claimed again.
		if _, rbErr := s.requestDAO.Claim(ctx, r.ID, request.StatusExecuting, request.StatusApproved,
			func(t *request.ActionRequest) { t.ExecutedAt = r.ExecutedAt }); rbErr != nil {
			return fmt.Errorf("audit write failed (%v) and rollback of request %s failed: %w", err, r.ID, rbErr)
		}
		return err
	}

	result, attempts, err := s.executor.Execute(ctx, claimed)
	if err != nil {
		// An unaudited attempt may already have fired an external effect;
		// the record deliberately stays in executing for human follow-up.
		return err
	}

	to := request.StatusFailed
	if result.Success {
		to = request.StatusCompleted
	}
	return s.transition(ctx, claimed, request.StatusExecuting, to, auditmodel.ActorExecutor, result.Detail,
		func(t *request.ActionRequest) {
			t.RetryCount = attempts - 1
			if result.Success {
				t.ExecutionResult = result.Detail
				if result.MessageID != "" {
					t.ExecutionResult = fmt.Sprintf("%s (message %s)", result.Detail, result.MessageID)
				}
			} else {
				t.LastError = result.Detail
			}
		})
}

// transition claims a request move and commits it with an audit record,
// rolling the claim back when the audit append fails.
func (s *Service) transition(ctx context.Context, r *request.ActionRequest, from, to request.Status,
	actor, detail string, mutate func(*request.ActionRequest)) error {
	claimed, err := s.requestDAO.Claim(ctx, r.ID, from, to, mutate)
	if err != nil {
		if errors.Is(err, dao.ErrConflict) {
			return nil // another poller won the claim
		}
		log.Printf("warn: failed to claim request %s (%s -> %s): %v", r.ID, from, to, err)
		return nil
	}
	if err = s.record(ctx, claimed.ID, from, to, actor, detail); err != nil {
		if _, rbErr := s.requestDAO.Claim(ctx, r.ID, to, from, func(t *request.ActionRequest) { *t = *r }); rbErr != nil {
			return fmt.Errorf("audit write failed (%v) and rollback of request %s failed: %w", err, r.ID, rbErr)
		}
		return err
	}
	return nil
}

func (s *Service) record(ctx context.Context, entityID string, from, to request.Status, actor, detail string) error {
	entry := &auditmodel.Record{
		Timestamp:  clock.Now(),
		EntityID:   entityID,
		FromStatus: string(from),
		ToStatus:   string(to),
		Actor:      actor,
		Detail:     detail,
	}
	if err := s.auditSvc.Record(ctx, entry); err != nil {
		return fmt.Errorf("audit write failed for request %s: %w", entityID, err)
	}
	return nil
}
