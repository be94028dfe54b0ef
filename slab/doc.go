// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*

Package slab implements a slab allocator backing a memory-mapped database
file.

It provides a single, uniform, integer-addressed memory space spanning an
immutable region mapped from a file (or a user buffer, or nothing at all)
and a growing sequence of heap-allocated slabs holding mutable
allocations. Every allocation is identified by a Ref: a byte offset into
this space.

Ref space

	[0, baseline)        immutable, read-only, backed by the attached file/buffer
	[baseline, ∞)        mutable, backed by owned heap slabs

A Ref of 0 means "no ref". All refs and sizes are multiples of 8.

Lifecycle

An Allocator is constructed detached. Exactly one of AttachFile,
AttachBuffer or AttachEmpty moves it to attached state and returns the
top ref stored in the file/buffer header. Every attach leaves the
free-space state Invalid, so ResetFreeSpaceTracking must run once before
the first Alloc. From there Alloc, Free, Realloc and Translate serve the
caller until Detach. Between write transactions
the caller flushes pending writes and calls ResetFreeSpaceTracking to
recycle every slab as one large free chunk; if the underlying file grows,
Remap folds the new bytes into the immutable region.

Free-space bookkeeping can be lost — e.g. an out-of-memory failure while
growing the free list during Free — without losing the freed memory
itself. When that happens the Allocator enters the Invalid free-space
state and refuses further allocation until ResetFreeSpaceTracking runs.

This package never performs file I/O itself. AttachFile depends on the
Backend interface declared in this package; see package mmapfile for a
concrete, mmap-backed implementation.

*/
package slab
