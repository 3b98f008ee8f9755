// Package batch classifies many posts in one run.
//
// A Runner holds an exclusive file lock for the duration of a run, assigns
// a run ID, and fans posts out to a bounded pool of workers. Each post is
// classified independently under its own request ID, its outcome persisted
// to the results store, and the per-run counts recorded when the pool
// drains. With Resume set, posts that already have a stored result are
// skipped.
package batch
