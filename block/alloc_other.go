// File: block/alloc_other.go
// Author: momentics <momentics@gmail.com>
//
// Non-Linux platforms have no direct allocator in this module; callers
// requesting direct buffers silently fall back to the heap allocator,
// matching NewAllocator's contract.
//go:build !linux

package block

func newDirectAllocator() Allocator { return nil }
