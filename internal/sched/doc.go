// Package sched is the periodic collection control loop.
//
// # Overview
//
// One coordinating goroutine wakes on a fixed tick, asks the store for
// eligible jobs, orders them by priority (then earliest due), and dispatches
// up to the free concurrency budget. Each dispatch is gated by the per-source
// rate limiter; a denied job is simply retried on a later tick. Executions
// run in their own goroutines and report back through the metrics collector,
// which recomputes the job's success rate and next eligibility time.
//
// # Lifecycle
//
// A job cycles through idle -> eligible -> in-flight -> idle; none of these
// states is stored, they all derive from next_run, the enabled flag and the
// in-flight set. The scheduler itself is running, paused (no new dispatch,
// in-flight work finishes) or stopped (terminal; the store is closed after
// all in-flight work drains).
//
// # Failure semantics
//
// A failed execution is recorded and rescheduled exactly like a successful
// one. Collector panics are contained by the executor. The only fatal error
// in the whole subsystem is a store that fails to open at startup.
package sched
