package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	model "github.com/viant/warden/model/request"
	"github.com/viant/warden/service/dao"
	"github.com/viant/warden/service/dao/request"
)

// entry pairs a record with its queue location. The location mirrors the
// status directory of the filesystem backend and may lag behind the header
// status when a human decision has been written but not yet claimed.
type entry struct {
	location model.Status
	record   *model.ActionRequest
}

// Service implements an in-memory request store with the same claim
// semantics as the filesystem backend; the compare-and-swap on the location
// stands in for the exclusive rename.
type Service struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// Ensure Service implements request.Store
var _ request.Store = (*Service)(nil)

// New creates an in-memory request store.
func New() *Service {
	return &Service{entries: make(map[string]*entry)}
}

// Create persists a new record under its initial status.
func (s *Service) Create(_ context.Context, r *model.ActionRequest) error {
	if r == nil {
		return dao.ErrNilEntity
	}
	if err := r.Validate(); err != nil {
		return fmt.Errorf("%w: %v", dao.ErrInvalidPayload, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[r.ID]; exists {
		return fmt.Errorf("record %s already exists", r.ID)
	}
	s.entries[r.ID] = &entry{location: r.Status, record: r.Clone()}
	return nil
}

// Load returns the record with the supplied ID.
func (s *Service) Load(_ context.Context, id string) (*model.ActionRequest, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: request %s", dao.ErrNotFound, id)
	}
	return e.record.Clone(), nil
}

// ListByStatus returns every record located under the supplied status,
// ordered by ID. Header statuses are returned as stored - they may already
// carry an unclaimed human decision.
func (s *Service) ListByStatus(_ context.Context, status model.Status) ([]*model.ActionRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var records []*model.ActionRequest
	for _, e := range s.entries {
		if e.location == status {
			records = append(records, e.record.Clone())
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

// Claim atomically moves a record from one location to another.
func (s *Service) Claim(_ context.Context, id string, from, to model.Status, mutate func(*model.ActionRequest)) (*model.ActionRequest, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok || e.location != from {
		return nil, fmt.Errorf("%w: request %s no longer in %s", dao.ErrConflict, id, from)
	}
	claimed := e.record.Clone()
	claimed.Status = to
	if mutate != nil {
		mutate(claimed)
	}
	s.entries[id] = &entry{location: to, record: claimed}
	return claimed.Clone(), nil
}

// Remove deletes a record from the supplied location.
func (s *Service) Remove(_ context.Context, location model.Status, id string) error {
	if id == "" {
		return dao.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok || e.location != location {
		return fmt.Errorf("%w: request %s not in %s", dao.ErrNotFound, id, location)
	}
	delete(s.entries, id)
	return nil
}

// Update rewrites a record in place within the supplied location.
func (s *Service) Update(_ context.Context, location model.Status, r *model.ActionRequest) error {
	if r == nil {
		return dao.ErrNilEntity
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[r.ID]
	if !ok || e.location != location {
		return fmt.Errorf("%w: request %s not in %s", dao.ErrNotFound, r.ID, location)
	}
	s.entries[r.ID] = &entry{location: location, record: r.Clone()}
	return nil
}
