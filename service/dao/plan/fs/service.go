package fs

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"gopkg.in/yaml.v3"

	model "github.com/viant/warden/model/plan"
	"github.com/viant/warden/service/dao"
	plandao "github.com/viant/warden/service/dao/plan"
)

const (
	taskExt = ".md"
	planExt = ".yaml"
)

// Service implements a filesystem-backed plan/task store. Task files move
// between status directories under basePath/tasks; plan headers live under
// basePath/plans.
type Service struct {
	basePath string
	fs       afs.Service
	mu       sync.Mutex
}

// Ensure Service implements plandao.Store
var _ plandao.Store = (*Service)(nil)

// New creates a filesystem plan store rooted at basePath.
func New(basePath string) (*Service, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}
	fsService := afs.New()
	ctx := context.Background()
	dirs := []string{path.Join(basePath, "plans")}
	for _, status := range plandao.TaskStatuses {
		dirs = append(dirs, path.Join(basePath, "tasks", string(status)))
	}
	for _, dir := range dirs {
		exists, _ := fsService.Exists(ctx, dir)
		if !exists {
			if err := fsService.Create(ctx, dir, file.DefaultDirOsMode, true); err != nil {
				return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
			}
		}
	}
	return &Service{basePath: basePath, fs: fsService}, nil
}

// SavePlan persists a plan header.
func (s *Service) SavePlan(ctx context.Context, p *model.Plan) error {
	if p == nil {
		return dao.ErrNilEntity
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %v", dao.ErrInvalidPayload, err)
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal plan %s: %w", p.ID, err)
	}
	filePath := s.planPath(p.ID)
	if err = s.fs.Upload(ctx, filePath, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("%w: failed to write plan %s: %v", dao.ErrPermissionDenied, p.ID, err)
	}
	return nil
}

// LoadPlan returns the plan with the supplied ID.
func (s *Service) LoadPlan(ctx context.Context, id string) (*model.Plan, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	filePath := s.planPath(id)
	exists, err := s.fs.Exists(ctx, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to check plan %s: %w", id, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: plan %s", dao.ErrNotFound, id)
	}
	data, err := s.fs.DownloadWithURL(ctx, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan %s: %w", id, err)
	}
	ret := &model.Plan{}
	if err = yaml.Unmarshal(data, ret); err != nil {
		return nil, fmt.Errorf("%w: plan %s: %v", dao.ErrMalformedRecord, id, err)
	}
	return ret, nil
}

// ListPlans returns every stored plan ordered by ID.
func (s *Service) ListPlans(ctx context.Context) ([]*model.Plan, error) {
	dir := path.Join(s.basePath, "plans")
	objects, err := s.fs.List(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	var plans []*model.Plan
	for _, object := range objects {
		if object.IsDir() || !strings.HasSuffix(object.Name(), planExt) {
			continue
		}
		data, err := s.fs.Download(ctx, object)
		if err != nil {
			log.Printf("warn: failed to read plan %s: %v", object.URL(), err)
			continue
		}
		aPlan := &model.Plan{}
		if err = yaml.Unmarshal(data, aPlan); err != nil {
			log.Printf("warn: skipping malformed plan %s: %v", object.URL(), err)
			continue
		}
		plans = append(plans, aPlan)
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].ID < plans[j].ID })
	return plans, nil
}

// CreateTask persists a new task under its initial status directory.
func (s *Service) CreateTask(ctx context.Context, t *model.Task) error {
	if t == nil {
		return dao.ErrNilEntity
	}
	if err := t.Validate(); err != nil {
		return fmt.Errorf("%w: %v", dao.ErrInvalidPayload, err)
	}
	data, err := model.MarshalTask(t)
	if err != nil {
		return fmt.Errorf("failed to marshal task %s: %w", t.ID, err)
	}
	filePath := s.taskPath(t.Status, t.ID)
	if exists, _ := s.fs.Exists(ctx, filePath); exists {
		return fmt.Errorf("task %s already exists", t.ID)
	}
	if err = s.fs.Upload(ctx, filePath, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("%w: failed to write task %s: %v", dao.ErrPermissionDenied, t.ID, err)
	}
	return nil
}

// LoadTask returns the task with the supplied ID, searching every status
// location.
func (s *Service) LoadTask(ctx context.Context, id string) (*model.Task, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	for _, status := range plandao.TaskStatuses {
		filePath := s.taskPath(status, id)
		exists, err := s.fs.Exists(ctx, filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to check task %s: %w", filePath, err)
		}
		if !exists {
			continue
		}
		return s.readTask(ctx, filePath)
	}
	return nil, fmt.Errorf("%w: task %s", dao.ErrNotFound, id)
}

// ListTasks returns every well-formed task of the supplied plan across all
// statuses, ordered by step index.
func (s *Service) ListTasks(ctx context.Context, planID string) ([]*model.Task, error) {
	var tasks []*model.Task
	for _, status := range plandao.TaskStatuses {
		dir := path.Join(s.basePath, "tasks", string(status))
		objects, err := s.fs.List(ctx, dir)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s tasks: %w", status, err)
		}
		for _, object := range objects {
			if object.IsDir() || !strings.HasSuffix(object.Name(), taskExt) {
				continue
			}
			task, err := s.readTask(ctx, object.URL())
			if err != nil {
				log.Printf("warn: skipping malformed task record %s: %v", object.URL(), err)
				continue
			}
			if planID != "" && task.PlanID != planID {
				continue
			}
			tasks = append(tasks, task)
		}
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].StepIndex < tasks[j].StepIndex })
	return tasks, nil
}

// ClaimTask atomically moves a task between status directories; the rename
// is the claim.
func (s *Service) ClaimTask(ctx context.Context, id string, from, to model.TaskStatus, mutate func(*model.Task)) (*model.Task, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	src := s.taskPath(from, id)
	task, err := s.readTask(ctx, src)
	if err != nil {
		if exists, _ := s.fs.Exists(ctx, src); !exists {
			return nil, fmt.Errorf("%w: task %s no longer in %s", dao.ErrConflict, id, from)
		}
		return nil, err
	}

	dst := s.taskPath(to, id)
	if err = s.fs.Move(ctx, src, dst); err != nil {
		return nil, fmt.Errorf("%w: task %s: %v", dao.ErrConflict, id, err)
	}

	claimed := task.Clone()
	claimed.Status = to
	if mutate != nil {
		mutate(claimed)
	}
	data, err := model.MarshalTask(claimed)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal claimed task %s: %w", id, err)
	}
	if err = s.fs.Upload(ctx, dst, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to rewrite claimed task %s: %w", id, err)
	}
	return claimed, nil
}

func (s *Service) readTask(ctx context.Context, url string) (*model.Task, error) {
	data, err := s.fs.DownloadWithURL(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to read task %s: %w", url, err)
	}
	task, err := model.UnmarshalTask(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", dao.ErrMalformedRecord, url, err)
	}
	return task, nil
}

func (s *Service) taskPath(status model.TaskStatus, id string) string {
	return path.Join(s.basePath, "tasks", string(status), id+taskExt)
}

func (s *Service) planPath(id string) string {
	return path.Join(s.basePath, "plans", id+planExt)
}
