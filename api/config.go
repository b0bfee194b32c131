// File: api/config.go
// Author: momentics <momentics@gmail.com>
//
// Config carries the recognized options consumed by the work pool and
// the input/output queues. It is a static DTO: dynamic introspection
// goes through a *control.MetricsRegistry / *control.DebugProbes
// supplied at construction instead.

package api

// Config holds the options named in the core's public contract.
type Config struct {
	// UseDirectBuffers selects OS-backed (mmap) allocation for
	// DataBlocks over heap allocation.
	UseDirectBuffers bool

	// BlockSize is the default DataBlock capacity in bytes when a
	// component does not have a more specific override.
	BlockSize int

	// InputQueueBlockSize overrides BlockSize for InputQueue DataBlocks.
	// Zero means "use BlockSize".
	InputQueueBlockSize int

	// OutputQueueBlockSize overrides BlockSize for OutputQueue
	// DataBlocks. Zero means "use BlockSize".
	OutputQueueBlockSize int

	// Threads is the number of WorkPool worker goroutines.
	Threads int

	// ContentionFactor is the number of run-queues in the WorkPool's
	// queue bank. Zero means "use the default of 8".
	ContentionFactor int
}

// DefaultContentionFactor is used when Config.ContentionFactor is zero.
const DefaultContentionFactor = 8

// resolvedBlockSize picks the specific override if set, else the
// general BlockSize.
func resolvedBlockSize(specific, general int) int {
	if specific > 0 {
		return specific
	}
	return general
}

// InputBlockSize returns the effective DataBlock size for InputQueue.
func (c Config) InputBlockSize() int {
	return resolvedBlockSize(c.InputQueueBlockSize, c.BlockSize)
}

// OutputBlockSize returns the effective DataBlock size for OutputQueue.
func (c Config) OutputBlockSize() int {
	return resolvedBlockSize(c.OutputQueueBlockSize, c.BlockSize)
}

// ResolvedContentionFactor returns ContentionFactor or the default.
func (c Config) ResolvedContentionFactor() int {
	if c.ContentionFactor > 0 {
		return c.ContentionFactor
	}
	return DefaultContentionFactor
}
