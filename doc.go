// Package warden implements an approval-gated, dependency-ordered task
// execution engine. A proposed sensitive action becomes a durable record
// that waits for an authorized human decision (or expires), multi-step
// plans are sequenced by dependency order, failed external effects are
// retried with bounded backoff, and every state transition leaves an
// immutable audit trail.
//
// The only inter-process coordination medium is a shared file hierarchy:
// status-named directories act as queues and every state transition is an
// atomic claim - an exclusive move of the record file into the directory of
// its new status - so at-most-one execution holds without any transactional
// storage. A human editor participates by toggling the status header of a
// pending record file; the poller validates and honours the edit on its
// next tick.
package warden
