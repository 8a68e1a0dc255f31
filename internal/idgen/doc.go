// Package idgen centralises unique identifier generation so that tests can
// substitute deterministic IDs.
package idgen
