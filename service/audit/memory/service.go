package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/viant/warden/internal/clock"
	model "github.com/viant/warden/model/audit"
	"github.com/viant/warden/service/audit"
)

// Service is an in-memory audit logger for tests and embedding.
type Service struct {
	mu      sync.Mutex
	records []*model.Record
	failure error
}

// Ensure Service implements audit.Service
var _ audit.Service = (*Service)(nil)

// New creates an in-memory audit logger.
func New() *Service {
	return &Service{}
}

// Record appends an entry.
func (s *Service) Record(_ context.Context, record *model.Record) error {
	if record == nil {
		return fmt.Errorf("cannot record nil audit entry")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return s.failure
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = clock.Now()
	}
	clone := *record
	s.records = append(s.records, &clone)
	return nil
}

// List returns the records of the supplied day in append order.
func (s *Service) List(_ context.Context, day time.Time) ([]*model.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	y, m, d := day.Date()
	var ret []*model.Record
	for _, record := range s.records {
		ry, rm, rd := record.Timestamp.Date()
		if ry == y && rm == m && rd == d {
			clone := *record
			ret = append(ret, &clone)
		}
	}
	return ret, nil
}

// All returns every record regardless of day.
func (s *Service) All() []*model.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	ret := make([]*model.Record, 0, len(s.records))
	for _, record := range s.records {
		clone := *record
		ret = append(ret, &clone)
	}
	return ret
}

// FailWith makes every subsequent append return err; used to exercise the
// audit-write-is-fatal path.
func (s *Service) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failure = err
}
