// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slab

import "unsafe"

// DebugAssertions gates the precondition/invariant checks described as
// "debug-only" throughout spec.md (§4.D "In debug mode, ref must be
// well-formed", §9 "Diagnostics ... should compile out in release
// builds"). It defaults to false, matching a release build; the test
// binary for this package turns it on in TestMain.
var DebugAssertions = false

// DisableSyncToDisk is the single global knob spec.md §6 allows outside
// the Allocator's own options: when set, the sync after AttachFile's initial
// preallocation and PrepareForUpdate's sync-before-flip are both elided
// together, matching spec.md §9's "in no-sync mode both are elided
// together".
var DisableSyncToDisk = false

// simulateFreeListOOM is a test-only hook letting scenario 6 of spec.md
// §8 ("induce an OOM on the free-list push") be exercised deterministically,
// the same role newZeroed plays for simulating a failed slab growth.
var simulateFreeListOOM = false

// Allocator is the slab/ref allocator described by SPEC_FULL.md §2-4. The
// zero value is a valid, detached Allocator.
type Allocator struct {
	backend Backend
	logger  Logger

	mode       attachMode
	baseline   Ref
	data       []byte // the immutable region; nil when AttachEmpty or once AttachBuffer/File is not attached
	fileFormat byte
	serverSync bool
	streaming  bool

	slabs slabList
	fm    *freeList // mutable free chunks
	fr    *freeList // read-only free chunks
	state freeState
}

// NewAllocator returns a detached Allocator that logs lifecycle events to
// logger. A nil logger disables logging.
func NewAllocator(logger Logger) *Allocator {
	return &Allocator{
		logger: nopLogger(logger),
		fm:     newFreeList(),
		fr:     newFreeList(),
	}
}

func (a *Allocator) attached() bool { return a.mode != modeNone }

// Alloc allocates size bytes, serving first from the mutable free list
// (spec.md §4.C) and otherwise growing the slab list (spec.md §4.B).
func (a *Allocator) Alloc(size int64) (MemRef, error) {
	if !a.attached() {
		return MemRef{}, &NotAttachedError{Op: "Alloc"}
	}

	assertf(size > 0, "Alloc: size must be > 0, got %d", size)
	assertf(size%8 == 0, "Alloc: size must be a multiple of 8, got %d", size)

	if a.state == stateInvalid {
		return MemRef{}, &InvalidFreeSpaceError{}
	}
	a.state = stateDirty

	if ref, ok := a.fm.takeFirstFit(size); ok {
		return MemRef{Addr: a.mustTranslateSlice(ref, size), Ref: ref}, nil
	}

	ref, trailing, err := a.slabs.growFor(size)
	if err != nil {
		return MemRef{}, err
	}
	if trailing != nil {
		a.fm.insert(*trailing)
	}

	return MemRef{Addr: a.mustTranslateSlice(ref, size), Ref: ref}, nil
}

// Free deallocates the block at ref/addr, coalescing with free neighbors
// that share its slab (or, for read-only refs, its region) per spec.md
// §4.C. Apart from NotAttachedError on a detached Allocator, Free returns
// no error: a push failure during bookkeeping is swallowed and instead
// marks the free-space state Invalid, per spec.md §7.
func (a *Allocator) Free(ref Ref, addr []byte) error {
	if !a.attached() {
		return &NotAttachedError{Op: "Free"}
	}

	assertf(addressOf(a.mustTranslateSlice(ref, int64(len(addr)))) == addressOf(addr),
		"Free: addr does not match Translate(ref)")

	size := int64(len(addr))
	readOnly := ref < a.baseline
	list := a.fm
	if readOnly {
		list = a.fr
	}

	if a.state == stateInvalid {
		return nil // already known-lossy; nothing more to lose
	}

	if !readOnly {
		assertf(a.state == stateDirty, "Free: mutable free requires Dirty state")
	}

	var succ *chunk
	if a.mayMergeSuccessor(ref, size, readOnly) {
		if c, ok := list.find(ref + Ref(size)); ok {
			succ = &c
		}
	}

	if a.mayMergePredecessor(ref, readOnly) {
		if p, ok := list.findEnding(ref); ok {
			newSize := p.size + size
			if succ != nil {
				newSize += succ.size
				list.removeAt(succ.ref)
			}
			list.update(p.ref, chunk{ref: p.ref, size: newSize})
			return nil
		}
	}

	if succ != nil {
		list.update(succ.ref, chunk{ref: ref, size: size + succ.size})
		return nil
	}

	if simulateFreeListOOM {
		a.state = stateInvalid
		a.logger.Errorf("free: push of chunk ref=%d size=%d failed, free-space state is now Invalid", ref, size)
		return nil
	}

	list.insert(chunk{ref: ref, size: size})
	return nil
}

// mayMergeSuccessor reports whether the chunk ending at ref+size could be
// merged without crossing a slab boundary or the immutable/mutable
// divide.
func (a *Allocator) mayMergeSuccessor(ref Ref, size int64, readOnly bool) bool {
	succ := ref + Ref(size)
	if readOnly {
		return succ < a.baseline
	}

	i, ok := a.slabs.indexFor(ref)
	if !ok {
		return false
	}
	return succ < a.slabs.slabs[i].refEnd
}

// mayMergePredecessor reports whether a chunk ending at ref could be
// merged without crossing a slab boundary or the immutable/mutable
// divide.
func (a *Allocator) mayMergePredecessor(ref Ref, readOnly bool) bool {
	if readOnly {
		return ref > 0
	}

	i, ok := a.slabs.indexFor(ref)
	if !ok {
		// ref sits exactly at the growth frontier (just-allocated tail);
		// treat it as belonging to the last slab for boundary purposes.
		if len(a.slabs.slabs) == 0 {
			return false
		}
		i = len(a.slabs.slabs) - 1
	}
	return ref > a.slabs.start(i)
}

// Realloc always copies, per spec.md §4.D and §9's documented FIXME about
// in-place extension.
func (a *Allocator) Realloc(ref Ref, addr []byte, oldSize, newSize int64) (MemRef, error) {
	if !a.attached() {
		return MemRef{}, &NotAttachedError{Op: "Realloc"}
	}

	m, err := a.Alloc(newSize)
	if err != nil {
		return MemRef{}, err
	}

	n := oldSize
	if newSize < n {
		n = newSize
	}
	copy(m.Addr[:n], addr[:n])

	if err := a.Free(ref, addr); err != nil {
		return MemRef{}, err
	}

	return m, nil
}

// mustTranslateSlice maps ref to the backing byte slice of length size. Refs below
// the baseline address the immutable region; refs at or above it are
// binary-searched for in the slab list.
func (a *Allocator) mustTranslateSlice(ref Ref, size int64) []byte {
	b := a.Translate(ref)
	assertf(int64(len(b)) >= size, "Translate: ref %d has fewer than %d bytes available", ref, size)
	return b[:size]
}

// Translate returns the byte slice starting at ref and running to the end
// of its containing region (immutable data or slab). Callers slice it
// down to the size they need. Translating a ref at or above the baseline
// that lies in no slab is a debug assertion failure (spec.md §4.D); a ref
// that was freed, or never allocated, but still lies within a slab is not
// detected.
func (a *Allocator) Translate(ref Ref) []byte {
	if ref < a.baseline {
		return a.data[ref:]
	}

	i, ok := a.slabs.indexFor(ref)
	assertf(ok, "Translate: ref %d is not within any slab", ref)
	if !ok {
		return nil
	}

	off := int64(ref - a.slabs.start(i))
	return a.slabs.slabs[i].buf[off:]
}

// GetTotalSize returns the size of the whole ref space: the end of the
// last slab, or the baseline if no slab has been created yet.
func (a *Allocator) GetTotalSize() int64 {
	return int64(a.slabs.lastRefEnd())
}

// GetCommittedFileFormat returns the file format byte read from the
// header's selected slot at attach time.
func (a *Allocator) GetCommittedFileFormat() (byte, error) {
	if !a.attached() {
		return 0, &NotAttachedError{Op: "GetCommittedFileFormat"}
	}
	return a.fileFormat, nil
}

// GetFreeReadOnly returns every chunk in the read-only free list.
func (a *Allocator) GetFreeReadOnly() ([]FreeChunk, error) {
	if a.state == stateInvalid {
		return nil, &InvalidFreeSpaceError{}
	}
	return a.fr.snapshot(), nil
}

// addressOf returns the address of b's first byte, for the debug-only
// pointer-identity check in Free (spec.md §4.C: "asserts
// translate(ref) == addr").
func addressOf(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}
