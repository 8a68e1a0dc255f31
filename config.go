package warden

import (
	"context"
	"fmt"

	"github.com/viant/afs"
	"gopkg.in/yaml.v3"

	"github.com/viant/warden/service/executor"
	"github.com/viant/warden/service/risk"
	"github.com/viant/warden/service/scheduler"
)

// Config is a serialisable representation of the engine configuration. It
// can be populated from YAML or JSON. The zero-value is useful - all nested
// fields inherit their package defaults and the engine runs on in-memory
// backends.
type Config struct {
	// BaseURL roots the filesystem backends (requests, plans and audit live
	// in subdirectories). Empty means in-memory backends.
	BaseURL string `json:"baseURL,omitempty" yaml:"baseURL,omitempty"`

	// Rules is the per action-type approval rule set.
	Rules risk.Rules `json:"rules,omitempty" yaml:"rules,omitempty"`

	Retry     executor.Config  `json:"retry" yaml:"retry"`
	Scheduler scheduler.Config `json:"scheduler" yaml:"scheduler"`
}

// DefaultConfig returns a Config populated with the package defaults.
func DefaultConfig() *Config {
	return &Config{
		Retry:     executor.DefaultConfig(),
		Scheduler: scheduler.DefaultConfig(),
	}
}

// Validate returns an error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	if c.Retry.MaxAttempts < 0 {
		return fmt.Errorf("retry.maxAttempts must be >= 0")
	}
	if c.Scheduler.PollInterval < 0 {
		return fmt.Errorf("scheduler.pollInterval must be >= 0")
	}
	for action, rule := range c.Rules {
		if rule == nil {
			continue
		}
		if rule.TimeoutMinutes < 0 {
			return fmt.Errorf("rule %s: timeoutMinutes must be >= 0", action)
		}
		if rule.AutoApproveThreshold != nil && *rule.AutoApproveThreshold < 0 {
			return fmt.Errorf("rule %s: autoApproveThreshold must be >= 0", action)
		}
	}
	return nil
}

// LoadConfig reads a YAML configuration from the supplied URL.
func LoadConfig(ctx context.Context, URL string) (*Config, error) {
	fs := afs.New()
	data, err := fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", URL, err)
	}
	ret := DefaultConfig()
	if err = yaml.Unmarshal(data, ret); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", URL, err)
	}
	if err = ret.Validate(); err != nil {
		return nil, err
	}
	return ret, nil
}
