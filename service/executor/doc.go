// Package executor invokes the external collaborator registered for an
// action type, with bounded retries and exponential backoff. Only failures
// the collaborator explicitly classifies as transient are retried; every
// attempt is audited before the next one begins. The engine guarantees
// at-most-one initiation per approved record - it never guarantees
// exactly-once delivery to the external system.
package executor
