package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/viant/warden/internal/clock"
	auditmodel "github.com/viant/warden/model/audit"
	request "github.com/viant/warden/model/request"
	"github.com/viant/warden/service/audit"
	"github.com/viant/warden/tracing"
)

// ErrAuditFailure marks an execution aborted because an attempt could not be
// audited. The triggering transition must not be considered committed.
var ErrAuditFailure = errors.New("executor: audit write failed")

// Result is the outcome the external collaborator reports for one attempt.
type Result struct {
	Success   bool   `json:"success"`
	Detail    string `json:"detail,omitempty"`
	Retryable bool   `json:"retryable"`
	MessageID string `json:"messageId,omitempty"`
}

// Handler is the collaborator contract: execute one external effect for the
// supplied action type and payload. Handlers must be safe to retry unless
// registered as non-idempotent.
type Handler func(ctx context.Context, action string, payload map[string]interface{}) (*Result, error)

// Registration binds a handler to an action type.
type Registration struct {
	Handler Handler

	// NonIdempotent limits the engine to a single attempt regardless of how
	// a failure is classified.
	NonIdempotent bool
}

// Config represents retry executor configuration.
type Config struct {
	// MaxAttempts is the upper bound of attempts per request.
	MaxAttempts int `yaml:"max_attempts" json:"maxAttempts"`

	// BackoffBase is the delay before the first retry; each further retry
	// doubles it (2s, 4s, 8s ...).
	BackoffBase time.Duration `yaml:"backoff_base" json:"backoffBase"`

	// CallTimeout is the upper bound of a single collaborator invocation.
	// Exceeding it surfaces as a transient failure.
	CallTimeout time.Duration `yaml:"call_timeout" json:"callTimeout"`
}

// DefaultConfig returns the default retry policy.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		BackoffBase: 2 * time.Second,
		CallTimeout: 30 * time.Second,
	}
}

// Service is the retry executor.
type Service struct {
	config   Config
	auditSvc audit.Service
	mu       sync.RWMutex
	handlers map[string]*Registration
}

// New creates a retry executor recording every attempt with auditSvc.
func New(auditSvc audit.Service, config Config) *Service {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultConfig().MaxAttempts
	}
	if config.BackoffBase <= 0 {
		config.BackoffBase = DefaultConfig().BackoffBase
	}
	if config.CallTimeout <= 0 {
		config.CallTimeout = DefaultConfig().CallTimeout
	}
	return &Service{
		config:   config,
		auditSvc: auditSvc,
		handlers: make(map[string]*Registration),
	}
}

// Register binds the collaborator for an action type.
func (s *Service) Register(action string, registration *Registration) {
	if action == "" || registration == nil || registration.Handler == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[action] = registration
}

// Lookup returns the registration for an action type, or nil.
func (s *Service) Lookup(action string) *Registration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handlers[action]
}

// Execute runs the collaborator for an approved request, retrying transient
// failures up to the configured bound. It returns the final result and the
// number of attempts made. ErrAuditFailure aborts the sequence immediately.
func (s *Service) Execute(ctx context.Context, r *request.ActionRequest) (result *Result, attempts int, err error) {
	ctx, span := tracing.StartSpan(ctx, fmt.Sprintf("executor.Execute %s", r.Action), "CLIENT")
	defer func() { tracing.EndSpan(span, err) }()
	span.WithAttributes(map[string]string{"request.id": r.ID, "request.action": r.Action})

	registration := s.Lookup(r.Action)
	if registration == nil {
		result = &Result{Success: false, Retryable: false,
			Detail: fmt.Sprintf("no handler registered for action %s", r.Action)}
		if err = s.recordAttempt(ctx, r, 1, result); err != nil {
			return nil, 0, err
		}
		return result, 1, nil
	}

	maxAttempts := s.config.MaxAttempts
	if registration.NonIdempotent {
		maxAttempts = 1
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			clock.Sleep(s.backoff(attempt))
		}
		result = s.attempt(ctx, registration, r)
		attempts = attempt

		// The attempt is committed only once its audit record is durable.
		if err = s.recordAttempt(ctx, r, attempt, result); err != nil {
			return nil, attempts, err
		}
		if result.Success || !result.Retryable {
			break
		}
	}
	return result, attempts, nil
}

// attempt performs a single bounded collaborator invocation, classifying the
// outcome. The bound is enforced here rather than delegated to the handler: a
// collaborator that ignores its context must not stall the polling loop, so
// the deadline fires regardless and the abandoned invocation is discarded.
func (s *Service) attempt(ctx context.Context, registration *Registration, r *request.ActionRequest) *Result {
	callCtx, cancel := context.WithTimeout(ctx, s.config.CallTimeout)
	defer cancel()

	type outcome struct {
		result *Result
		err    error
	}
	outcomeCh := make(chan outcome, 1)
	go func() {
		result, err := registration.Handler(callCtx, r.Action, r.Payload)
		outcomeCh <- outcome{result: result, err: err}
	}()

	var handled outcome
	select {
	case <-callCtx.Done():
		return &Result{Success: false, Retryable: true,
			Detail: fmt.Sprintf("timed out after %s: %v", s.config.CallTimeout, callCtx.Err())}
	case handled = <-outcomeCh:
	}
	if handled.err != nil {
		if errors.Is(handled.err, context.DeadlineExceeded) {
			return &Result{Success: false, Retryable: true,
				Detail: fmt.Sprintf("timed out after %s: %v", s.config.CallTimeout, handled.err)}
		}
		// Unclassified handler errors are permanent - only the collaborator
		// may mark a failure transient.
		return &Result{Success: false, Retryable: false, Detail: handled.err.Error()}
	}
	if handled.result == nil {
		return &Result{Success: false, Retryable: false, Detail: "handler returned no result"}
	}
	return handled.result
}

// backoff returns the delay preceding the supplied attempt number.
func (s *Service) backoff(attempt int) time.Duration {
	delay := s.config.BackoffBase
	for i := 2; i < attempt; i++ {
		delay *= 2
	}
	return delay
}

func (s *Service) recordAttempt(ctx context.Context, r *request.ActionRequest, attempt int, result *Result) error {
	detail := fmt.Sprintf("attempt %d/%d: %s", attempt, s.config.MaxAttempts, s.describe(result))
	record := &auditmodel.Record{
		Timestamp:  clock.Now(),
		EntityID:   r.ID,
		FromStatus: string(request.StatusExecuting),
		ToStatus:   string(request.StatusExecuting),
		Actor:      auditmodel.ActorExecutor,
		Detail:     detail,
	}
	if err := s.auditSvc.Record(ctx, record); err != nil {
		return fmt.Errorf("%w: %v", ErrAuditFailure, err)
	}
	return nil
}

func (s *Service) describe(result *Result) string {
	switch {
	case result.Success && result.MessageID != "":
		return fmt.Sprintf("succeeded (message %s)", result.MessageID)
	case result.Success:
		return "succeeded"
	case result.Retryable:
		return fmt.Sprintf("transient failure: %s", result.Detail)
	default:
		return fmt.Sprintf("permanent failure: %s", result.Detail)
	}
}
