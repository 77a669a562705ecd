package store

// Package store is the durable record of collection jobs and their execution
// history.
//
// It keeps:
//   - Job definitions (mutable, single source of truth across restarts)
//   - Execution results (append-only history + a bounded in-memory ring)
//   - Periodic performance snapshots
//
// All mutating calls are serialized through one mutex so concurrent
// completions can't produce lost updates.
