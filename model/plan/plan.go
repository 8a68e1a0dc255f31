// Package plan defines the data model for multi-step plans: a Plan is an
// ordered collection of tasks joined by its ID, and each Task is one step
// gated by dependency completion and, optionally, by an approval decision.
package plan

import (
	"fmt"
	"time"
)

// Plan owns no executable state itself - it exists as the join key over its
// tasks plus the declared critical path through them.
type Plan struct {
	ID           string    `yaml:"id" json:"id"`
	Name         string    `yaml:"name" json:"name"`
	CreatedAt    time.Time `yaml:"created_at" json:"createdAt"`
	TotalSteps   int       `yaml:"total_steps" json:"totalSteps"`
	CriticalPath []string  `yaml:"critical_path,omitempty" json:"criticalPath,omitempty"`
}

// Validate checks the required plan fields.
func (p *Plan) Validate() error {
	if p == nil {
		return fmt.Errorf("plan was nil")
	}
	if p.ID == "" {
		return fmt.Errorf("plan ID was empty")
	}
	if p.TotalSteps <= 0 {
		return fmt.Errorf("plan %s has no steps", p.ID)
	}
	return nil
}
