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
	model "github.com/viant/warden/model/request"
	"github.com/viant/warden/service/dao"
	"github.com/viant/warden/service/dao/request"
)

// recordExt is the extension of persisted request files; the content is a
// YAML header block followed by a free-form markdown body, so records stay
// directly editable by a human.
const recordExt = ".md"

// Service implements a filesystem-backed request store. Each status owns a
// directory under basePath; a record file moves between directories as its
// status changes. The move is the transaction.
type Service struct {
	basePath string
	fs       afs.Service
	mu       sync.Mutex
}

// Ensure Service implements request.Store
var _ request.Store = (*Service)(nil)

// New creates a filesystem request store rooted at basePath, creating the
// per-status directories when missing.
func New(basePath string) (*Service, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}
	fsService := afs.New()
	ctx := context.Background()
	for _, status := range request.Statuses {
		dir := path.Join(basePath, string(status))
		exists, _ := fsService.Exists(ctx, dir)
		if !exists {
			if err := fsService.Create(ctx, dir, file.DefaultDirOsMode, true); err != nil {
				return nil, fmt.Errorf("failed to create status directory %s: %w", dir, err)
			}
		}
	}
	return &Service{basePath: basePath, fs: fsService}, nil
}

// Create persists a new record under its initial status directory.
func (s *Service) Create(ctx context.Context, r *model.ActionRequest) error {
	if err := s.validate(r); err != nil {
		return err
	}
	data, err := model.Marshal(r)
	if err != nil {
		return fmt.Errorf("%w: %v", dao.ErrInvalidPayload, err)
	}
	filePath := s.recordPath(r.Status, r.ID)
	if exists, _ := s.fs.Exists(ctx, filePath); exists {
		return fmt.Errorf("record %s already exists", r.ID)
	}
	if err = s.fs.Upload(ctx, filePath, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("%w: failed to write record %s: %v", dao.ErrPermissionDenied, r.ID, err)
	}
	return nil
}

// Load returns the record with the supplied ID, searching every status
// location.
func (s *Service) Load(ctx context.Context, id string) (*model.ActionRequest, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	for _, status := range request.Statuses {
		filePath := s.recordPath(status, id)
		exists, err := s.fs.Exists(ctx, filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to check record %s: %w", filePath, err)
		}
		if !exists {
			continue
		}
		return s.readRecord(ctx, filePath)
	}
	return nil, fmt.Errorf("%w: request %s", dao.ErrNotFound, id)
}

// ListByStatus returns every well-formed record under the supplied status,
// ordered by ID for deterministic ticks. Malformed records are logged and
// left untouched - never auto-deleted.
func (s *Service) ListByStatus(ctx context.Context, status model.Status) ([]*model.ActionRequest, error) {
	dir := path.Join(s.basePath, string(status))
	objects, err := s.fs.List(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s records: %w", status, err)
	}
	var records []*model.ActionRequest
	for _, object := range objects {
		if object.IsDir() || !strings.HasSuffix(object.Name(), recordExt) {
			continue
		}
		record, err := s.readRecord(ctx, object.URL())
		if err != nil {
			log.Printf("warn: skipping malformed request record %s: %v", object.URL(), err)
			continue
		}
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

// Claim atomically moves a record from one status directory to another and
// rewrites it with the mutated header. The rename is the claim: when two
// pollers race, only one move succeeds and the loser observes dao.ErrConflict.
func (s *Service) Claim(ctx context.Context, id string, from, to model.Status, mutate func(*model.ActionRequest)) (*model.ActionRequest, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	src := s.recordPath(from, id)
	record, err := s.readRecord(ctx, src)
	if err != nil {
		if exists, _ := s.fs.Exists(ctx, src); !exists {
			return nil, fmt.Errorf("%w: request %s no longer in %s", dao.ErrConflict, id, from)
		}
		return nil, err
	}

	dst := s.recordPath(to, id)
	if err = s.fs.Move(ctx, src, dst); err != nil {
		// Another claimant won the rename race.
		return nil, fmt.Errorf("%w: request %s: %v", dao.ErrConflict, id, err)
	}

	claimed := record.Clone()
	claimed.Status = to
	if mutate != nil {
		mutate(claimed)
	}
	data, err := model.Marshal(claimed)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal claimed record %s: %w", id, err)
	}
	if err = s.fs.Upload(ctx, dst, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to rewrite claimed record %s: %w", id, err)
	}
	return claimed, nil
}

// Remove deletes a record from the supplied status directory.
func (s *Service) Remove(ctx context.Context, location model.Status, id string) error {
	if id == "" {
		return dao.ErrInvalidID
	}
	filePath := s.recordPath(location, id)
	if exists, _ := s.fs.Exists(ctx, filePath); !exists {
		return fmt.Errorf("%w: request %s not in %s", dao.ErrNotFound, id, location)
	}
	if err := s.fs.Delete(ctx, filePath); err != nil {
		return fmt.Errorf("failed to delete record %s: %w", filePath, err)
	}
	return nil
}

// Update rewrites a record in place within the supplied status directory.
// The header status may legitimately differ from the location - that is
// exactly what a human decision looks like before the poller claims it.
func (s *Service) Update(ctx context.Context, location model.Status, r *model.ActionRequest) error {
	if err := s.validate(r); err != nil {
		return err
	}
	filePath := s.recordPath(location, r.ID)
	if exists, _ := s.fs.Exists(ctx, filePath); !exists {
		return fmt.Errorf("%w: request %s not in %s", dao.ErrNotFound, r.ID, location)
	}
	data, err := model.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal record %s: %w", r.ID, err)
	}
	if err = s.fs.Upload(ctx, filePath, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("%w: failed to update record %s: %v", dao.ErrPermissionDenied, r.ID, err)
	}
	return nil
}

func (s *Service) validate(r *model.ActionRequest) error {
	if r == nil {
		return dao.ErrNilEntity
	}
	if err := r.Validate(); err != nil {
		return fmt.Errorf("%w: %v", dao.ErrInvalidPayload, err)
	}
	if r.CreatedAt.IsZero() || r.TimeoutAt.IsZero() {
		return fmt.Errorf("%w: request %s is missing timestamps", dao.ErrInvalidPayload, r.ID)
	}
	return nil
}

func (s *Service) readRecord(ctx context.Context, url string) (*model.ActionRequest, error) {
	data, err := s.fs.DownloadWithURL(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to read record %s: %w", url, err)
	}
	record, err := model.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", dao.ErrMalformedRecord, url, err)
	}
	return record, nil
}

func (s *Service) recordPath(status model.Status, id string) string {
	return path.Join(s.basePath, string(status), id+recordExt)
}
