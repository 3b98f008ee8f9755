// Package store persists batch classification outcomes in SQLite.
//
// Each post keeps its latest result keyed by post ID, which lets a batch
// rerun skip posts that were already classified. Runs record per-batch
// counts for the results listing. The schema is applied from embedded,
// versioned migrations when the store is opened.
package store
