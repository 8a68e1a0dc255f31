package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"sync"
	"time"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
	"github.com/viant/warden/internal/clock"
	model "github.com/viant/warden/model/audit"
	"github.com/viant/warden/service/audit"
)

// Service implements a filesystem audit log: one JSON-lines file per day,
// append-only. File-scheme logs are written with O_APPEND so concurrent
// poller processes sharing the same storage never clobber each other's
// lines; other schemes fall back to a read-append-rewrite cycle serialised
// by a per-process mutex. Previously appended lines are never modified.
type Service struct {
	basePath string
	fs       afs.Service
	mu       sync.Mutex
}

// Ensure Service implements audit.Service
var _ audit.Service = (*Service)(nil)

// New creates a filesystem audit logger rooted at basePath.
func New(basePath string) (*Service, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}
	fsService := afs.New()
	ctx := context.Background()
	exists, _ := fsService.Exists(ctx, basePath)
	if !exists {
		if err := fsService.Create(ctx, basePath, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create audit directory: %w", err)
		}
	}
	return &Service{basePath: basePath, fs: fsService}, nil
}

// Record appends an entry to the current day's log.
func (s *Service) Record(ctx context.Context, record *model.Record) error {
	if record == nil {
		return fmt.Errorf("cannot record nil audit entry")
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = clock.Now()
	}
	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal audit record: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	logPath := s.dayPath(record.Timestamp)
	if url.Scheme(logPath, file.Scheme) == file.Scheme {
		return s.appendLocal(url.Path(logPath), line)
	}

	var existing []byte
	if exists, _ := s.fs.Exists(ctx, logPath); exists {
		if existing, err = s.fs.DownloadWithURL(ctx, logPath); err != nil {
			return fmt.Errorf("failed to read audit log %s: %w", logPath, err)
		}
	}
	var buf bytes.Buffer
	buf.Write(existing)
	buf.Write(line)
	if err = s.fs.Upload(ctx, logPath, file.DefaultFileOsMode, &buf); err != nil {
		return fmt.Errorf("failed to append audit record to %s: %w", logPath, err)
	}
	return nil
}

// appendLocal appends a single line with O_APPEND, which the kernel applies
// atomically for writes of this size, so concurrent appenders from separate
// processes interleave whole lines instead of overwriting one another.
func (s *Service) appendLocal(logPath string, line []byte) error {
	f, err := os.OpenFile(logPath, os.O_WRONLY|os.O_APPEND|os.O_CREATE, file.DefaultFileOsMode)
	if err != nil {
		return fmt.Errorf("failed to open audit log %s: %w", logPath, err)
	}
	defer f.Close()
	if _, err = f.Write(line); err != nil {
		return fmt.Errorf("failed to append audit record to %s: %w", logPath, err)
	}
	return nil
}

// List returns the records of the supplied day in append order.
func (s *Service) List(ctx context.Context, day time.Time) ([]*model.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	logPath := s.dayPath(day)
	exists, err := s.fs.Exists(ctx, logPath)
	if err != nil {
		return nil, fmt.Errorf("failed to check audit log %s: %w", logPath, err)
	}
	if !exists {
		return nil, nil
	}
	data, err := s.fs.DownloadWithURL(ctx, logPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read audit log %s: %w", logPath, err)
	}
	// split rather than scan - a single oversized detail must not make the
	// whole day unreadable
	var records []*model.Record
	for _, line := range bytes.Split(data, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		record := &model.Record{}
		if err := json.Unmarshal(line, record); err != nil {
			return nil, fmt.Errorf("malformed audit line in %s: %w", logPath, err)
		}
		records = append(records, record)
	}
	return records, nil
}

func (s *Service) dayPath(day time.Time) string {
	return path.Join(s.basePath, day.Format("2006-01-02")+".jsonl")
}
