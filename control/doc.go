// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics and debug introspection layer. Part of the collider
// concurrency and I/O-buffering core.
//
// Provides concurrent-safe state handling primitives including:
//   - Metrics telemetry contracts
//   - Debug hooks and probe registration
package control
