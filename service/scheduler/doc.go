// Package scheduler drives the engine on a fixed tick: it applies the
// approval state machine to every pending record, starts execution for
// records that entered the approved queue, and advances plan tasks as their
// dependencies resolve. Ticks are idempotent - running the same tick twice
// on unchanged input produces no additional side effects - and safe to run
// from several poller processes at once: every transition is an atomic
// claim, and a poller that loses the race treats the record as a no-op.
package scheduler
