package warden

import (
	"context"

	"github.com/viant/warden/service/scheduler"
)

// Runtime owns the poller loop of an engine service.
type Runtime struct {
	scheduler *scheduler.Service
}

// Start runs the polling loop until the context is cancelled, Shutdown is
// called, or a tick fails fatally.
func (r *Runtime) Start(ctx context.Context) error {
	return r.scheduler.Start(ctx)
}

// Tick runs a single poll cycle synchronously; tests drive the engine with
// it instead of the timer loop.
func (r *Runtime) Tick(ctx context.Context) error {
	return r.scheduler.Tick(ctx)
}

// Shutdown stops the polling loop.
func (r *Runtime) Shutdown() {
	r.scheduler.Shutdown()
}
