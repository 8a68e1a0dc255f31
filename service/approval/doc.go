// Package approval encodes the legal status transitions of an action
// request and derives, from an observed pending record and the wall clock,
// the next transition the poller must perform. The human editor is treated
// as an untrusted concurrent writer: every observed status value is checked
// against the legal successor set before it is honoured.
package approval
