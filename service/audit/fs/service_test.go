package fs

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	model "github.com/viant/warden/model/audit"
)

func newTestService(t *testing.T) *Service {
	baseDir, err := os.MkdirTemp("", "warden-audit")
	assert.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(baseDir) })
	service, err := New(baseDir)
	assert.NoError(t, err)
	return service
}

func TestService_AppendOrder(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()
	day := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	for i, to := range []string{"pending", "approved", "executing", "completed"} {
		record := &model.Record{
			Timestamp: day.Add(time.Duration(i) * time.Minute),
			EntityID:  "req-001",
			ToStatus:  to,
			Actor:     model.ActorScheduler,
		}
		assert.NoError(t, service.Record(ctx, record))
	}

	records, err := service.List(ctx, day)
	assert.NoError(t, err)
	assert.Len(t, records, 4)
	assert.Equal(t, "pending", records[0].ToStatus)
	assert.Equal(t, "completed", records[3].ToStatus)

	// earlier entries are untouched by later appends
	assert.True(t, records[0].Timestamp.Equal(day))
}

func TestService_PerDayFiles(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()
	monday := time.Date(2025, 3, 10, 23, 59, 0, 0, time.UTC)
	tuesday := time.Date(2025, 3, 11, 0, 1, 0, 0, time.UTC)

	assert.NoError(t, service.Record(ctx, &model.Record{Timestamp: monday, EntityID: "req-001", ToStatus: "pending", Actor: model.ActorCaller}))
	assert.NoError(t, service.Record(ctx, &model.Record{Timestamp: tuesday, EntityID: "req-001", ToStatus: "approved", Actor: model.ActorHuman}))

	mondayRecords, err := service.List(ctx, monday)
	assert.NoError(t, err)
	assert.Len(t, mondayRecords, 1)
	assert.Equal(t, "pending", mondayRecords[0].ToStatus)

	tuesdayRecords, err := service.List(ctx, tuesday)
	assert.NoError(t, err)
	assert.Len(t, tuesdayRecords, 1)
	assert.Equal(t, "approved", tuesdayRecords[0].ToStatus)

	// a day without entries lists empty, not an error
	empty, err := service.List(ctx, time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC))
	assert.NoError(t, err)
	assert.Empty(t, empty)
}

func TestService_RejectsNil(t *testing.T) {
	service := newTestService(t)
	assert.Error(t, service.Record(context.Background(), nil))
}

func TestService_ConcurrentWritersLoseNothing(t *testing.T) {
	baseDir, err := os.MkdirTemp("", "warden-audit")
	assert.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(baseDir) })

	// two services over the same directory stand in for two poller processes
	// committing transitions for different records at the same time
	first, err := New(baseDir)
	assert.NoError(t, err)
	second, err := New(baseDir)
	assert.NoError(t, err)

	ctx := context.Background()
	day := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	const perWriter = 25

	var wg sync.WaitGroup
	for index, writer := range []*Service{first, second} {
		wg.Add(1)
		go func(writer *Service, index int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				record := &model.Record{
					Timestamp: day,
					EntityID:  fmt.Sprintf("req-%d-%03d", index, i),
					ToStatus:  "approved",
					Actor:     model.ActorScheduler,
				}
				assert.NoError(t, writer.Record(ctx, record))
			}
		}(writer, index)
	}
	wg.Wait()

	records, err := first.List(ctx, day)
	assert.NoError(t, err)
	assert.Len(t, records, 2*perWriter)
}

func TestService_List_OversizedDetail(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()
	day := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	record := &model.Record{
		Timestamp: day,
		EntityID:  "req-001",
		ToStatus:  "failed",
		Actor:     model.ActorExecutor,
		Detail:    strings.Repeat("x", 256*1024),
	}
	assert.NoError(t, service.Record(ctx, record))
	assert.NoError(t, service.Record(ctx, &model.Record{
		Timestamp: day, EntityID: "req-002", ToStatus: "approved", Actor: model.ActorHuman,
	}))

	records, err := service.List(ctx, day)
	assert.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Len(t, records[0].Detail, 256*1024)
}
