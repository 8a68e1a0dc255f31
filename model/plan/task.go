package plan

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// TaskStatus represents the lifecycle state of a single plan step.
type TaskStatus string

const (
	TaskStatusBlocked    TaskStatus = "blocked"
	TaskStatusReady      TaskStatus = "ready"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// taskSuccessors encodes the legal task transitions.
var taskSuccessors = map[TaskStatus][]TaskStatus{
	TaskStatusBlocked:    {TaskStatusReady, TaskStatusFailed},
	TaskStatusReady:      {TaskStatusInProgress, TaskStatusCompleted, TaskStatusFailed},
	TaskStatusInProgress: {TaskStatusCompleted, TaskStatusFailed},
}

// CanTransition reports whether from -> to is a legal task transition.
func CanTransition(from, to TaskStatus) bool {
	for _, s := range taskSuccessors[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminalTask reports whether a task status permits no further transition.
func IsTerminalTask(status TaskStatus) bool {
	return len(taskSuccessors[status]) == 0
}

// ChecklistItem is one human-readable completion criterion of a task.
type ChecklistItem struct {
	Text string `yaml:"text" json:"text"`
	Done bool   `yaml:"done" json:"done"`
}

// Task is one step of a decomposed plan. Its status may become ready only
// when every ID in DependsOn denotes a completed task; when RequiresApproval
// is set, completion is additionally gated on the linked action request.
type Task struct {
	ID               string          `yaml:"id" json:"id"`
	PlanID           string          `yaml:"plan_id" json:"planId"`
	StepIndex        int             `yaml:"step_index" json:"stepIndex"`
	TotalSteps       int             `yaml:"total_steps" json:"totalSteps"`
	Status           TaskStatus      `yaml:"status" json:"status"`
	DependsOn        []string        `yaml:"depends_on,omitempty" json:"dependsOn,omitempty"`
	RequiresApproval bool            `yaml:"requires_approval" json:"requiresApproval"`
	RequestID        string          `yaml:"request_id,omitempty" json:"requestId,omitempty"`
	Description      string          `yaml:"description,omitempty" json:"description,omitempty"`
	Checklist        []ChecklistItem `yaml:"checklist,omitempty" json:"checklist,omitempty"`
	CreatedAt        time.Time       `yaml:"created_at" json:"createdAt"`
	UpdatedAt        time.Time       `yaml:"updated_at" json:"updatedAt"`

	Body string `yaml:"-" json:"body,omitempty"`
}

// Validate checks the required fields of a task before it is persisted.
func (t *Task) Validate() error {
	if t == nil {
		return fmt.Errorf("task was nil")
	}
	if t.ID == "" {
		return fmt.Errorf("task ID was empty")
	}
	if t.PlanID == "" {
		return fmt.Errorf("task %s plan ID was empty", t.ID)
	}
	switch t.Status {
	case TaskStatusBlocked, TaskStatusReady, TaskStatusInProgress,
		TaskStatusCompleted, TaskStatusFailed:
	default:
		return fmt.Errorf("invalid task status: %q", t.Status)
	}
	return nil
}

// Clone returns a copy safe for mutation by a claimant.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	ret := *t
	ret.DependsOn = append([]string(nil), t.DependsOn...)
	ret.Checklist = append([]ChecklistItem(nil), t.Checklist...)
	return &ret
}

const taskBodySeparator = "\n---\n"

// MarshalTask serialises a task into its on-disk form: YAML header block plus
// an optional free-form body.
func MarshalTask(t *Task) ([]byte, error) {
	if t == nil {
		return nil, fmt.Errorf("cannot marshal nil task")
	}
	header, err := yaml.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task header: %w", err)
	}
	var buf bytes.Buffer
	buf.Write(header)
	if t.Body != "" {
		buf.WriteString("---\n")
		buf.WriteString(t.Body)
		if !strings.HasSuffix(t.Body, "\n") {
			buf.WriteString("\n")
		}
	}
	return buf.Bytes(), nil
}

// UnmarshalTask parses the on-disk form back into a task, rejecting records
// whose header block fails schema validation.
func UnmarshalTask(data []byte) (*Task, error) {
	header := data
	var body string
	if idx := bytes.Index(data, []byte(taskBodySeparator)); idx != -1 {
		header = data[:idx+1]
		body = string(data[idx+len(taskBodySeparator):])
	}
	ret := &Task{}
	decoder := yaml.NewDecoder(bytes.NewReader(header))
	decoder.KnownFields(true)
	if err := decoder.Decode(ret); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task header: %w", err)
	}
	ret.Body = body
	if err := ret.Validate(); err != nil {
		return nil, err
	}
	return ret, nil
}
