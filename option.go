package warden

import (
	"time"

	"github.com/viant/warden/service/audit"
	plandao "github.com/viant/warden/service/dao/plan"
	requestdao "github.com/viant/warden/service/dao/request"
	"github.com/viant/warden/service/executor"
	"github.com/viant/warden/service/risk"
)

// Option customises the engine service.
type Option func(*Service)

// WithConfig supplies a complete configuration.
func WithConfig(config *Config) Option {
	return func(s *Service) {
		if config != nil {
			s.config = config
		}
	}
}

// WithBaseURL roots the filesystem backends at the supplied URL.
func WithBaseURL(baseURL string) Option {
	return func(s *Service) {
		s.config.BaseURL = baseURL
	}
}

// WithRules supplies the per action-type approval rule set.
func WithRules(rules risk.Rules) Option {
	return func(s *Service) {
		s.config.Rules = rules
	}
}

// WithRequestStore overrides the action request store.
func WithRequestStore(store requestdao.Store) Option {
	return func(s *Service) {
		s.requestDAO = store
	}
}

// WithPlanStore overrides the plan/task store.
func WithPlanStore(store plandao.Store) Option {
	return func(s *Service) {
		s.planDAO = store
	}
}

// WithAuditService overrides the audit logger.
func WithAuditService(auditSvc audit.Service) Option {
	return func(s *Service) {
		s.auditSvc = auditSvc
	}
}

// WithHandler registers the external collaborator for an action type.
func WithHandler(action string, handler executor.Handler) Option {
	return func(s *Service) {
		s.registrations[action] = &executor.Registration{Handler: handler}
	}
}

// WithNonIdempotentHandler registers a collaborator that must never be
// retried - the engine performs at most one attempt.
func WithNonIdempotentHandler(action string, handler executor.Handler) Option {
	return func(s *Service) {
		s.registrations[action] = &executor.Registration{Handler: handler, NonIdempotent: true}
	}
}

// WithPollInterval overrides the poller interval.
func WithPollInterval(interval time.Duration) Option {
	return func(s *Service) {
		s.config.Scheduler.PollInterval = interval
	}
}

// WithRetryConfig overrides the retry policy.
func WithRetryConfig(config executor.Config) Option {
	return func(s *Service) {
		s.config.Retry = config
	}
}
