// Package workpool implements a multi-worker Task executor backed by
// a bank of lock-free run-queues and a shared-count gate: many
// producers submit cheap units of work, a fixed set of workers drains
// them with minimal cross-queue contention.
package workpool
