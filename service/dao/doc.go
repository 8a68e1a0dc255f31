// Package dao holds the sentinel errors shared by every store backend. The
// concrete store contracts live in the entity sub-packages (request, plan):
// claim-based queues rather than generic CRUD, because a state transition
// here is an exclusive move between status locations, not an update.
package dao
