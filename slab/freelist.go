// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slab

// chunk is one free-list entry: size bytes starting at ref, entirely
// within one slab or entirely within [0, baseline).
type chunk struct {
	ref  Ref
	size int64
}

// FreeChunk is the exported view of a chunk, returned by GetFreeReadOnly.
type FreeChunk struct {
	Ref  Ref
	Size int64
}

// freeList is an unordered multiset of chunks, indexed by ref for O(1)
// neighbor lookups during coalesce and O(1) removal via swap-with-last,
// mirroring the teacher's doubly-linked-list erase discipline without
// needing real linked-list pointers (spec.md §9: "a target language
// should use whatever random-access container affords this without
// reshuffling").
type freeList struct {
	chunks []chunk
	byRef  map[Ref]int // chunk.ref -> index, for successor lookups
	byEnd  map[Ref]int // chunk.ref+chunk.size -> index, for predecessor lookups
}

func newFreeList() *freeList {
	return &freeList{byRef: map[Ref]int{}, byEnd: map[Ref]int{}}
}

func (f *freeList) len() int { return len(f.chunks) }

func (f *freeList) reset() {
	f.chunks = f.chunks[:0]
	f.byRef = map[Ref]int{}
	f.byEnd = map[Ref]int{}
}

func (f *freeList) at(i int) chunk { return f.chunks[i] }

func (f *freeList) end(c chunk) Ref { return c.ref + Ref(c.size) }

// find returns the chunk starting at ref, if any.
func (f *freeList) find(ref Ref) (chunk, bool) {
	i, ok := f.byRef[ref]
	if !ok {
		return chunk{}, false
	}
	return f.chunks[i], true
}

// findEnding returns the chunk whose [ref, ref+size) ends exactly at end,
// if any — the predecessor of a chunk starting at end.
func (f *freeList) findEnding(end Ref) (chunk, bool) {
	i, ok := f.byEnd[end]
	if !ok {
		return chunk{}, false
	}
	return f.chunks[i], true
}

func (f *freeList) reindex(i int) {
	c := f.chunks[i]
	f.byRef[c.ref] = i
	f.byEnd[f.end(c)] = i
}

// insert appends a new chunk. The caller is responsible for ensuring no
// duplicate-coverage or illegal adjacency is introduced.
func (f *freeList) insert(c chunk) {
	f.chunks = append(f.chunks, c)
	f.reindex(len(f.chunks) - 1)
}

// removeAt deletes the chunk at ref via swap-with-last + pop.
func (f *freeList) removeAt(ref Ref) {
	i, ok := f.byRef[ref]
	if !ok {
		return
	}

	c := f.chunks[i]
	last := len(f.chunks) - 1
	f.chunks[i] = f.chunks[last]
	f.chunks = f.chunks[:last]
	delete(f.byRef, c.ref)
	delete(f.byEnd, f.end(c))
	if i < len(f.chunks) {
		f.reindex(i)
	}
}

// update replaces the chunk at oldRef, rewriting both indices if the ref
// or size (and therefore the end) changed.
func (f *freeList) update(oldRef Ref, c chunk) {
	i, ok := f.byRef[oldRef]
	if !ok {
		panic("slab: update of unknown free chunk")
	}

	old := f.chunks[i]
	f.chunks[i] = c
	if c.ref != old.ref {
		delete(f.byRef, old.ref)
	}
	if f.end(old) != f.end(c) {
		delete(f.byEnd, f.end(old))
	}
	f.reindex(i)
}

// scanFirstFit implements spec.md §4.C's allocation scan: iterate in
// reverse, first chunk whose size is >= needed. Returns false if none
// fits.
func (f *freeList) scanFirstFit(size int64) (chunk, bool) {
	for i := len(f.chunks) - 1; i >= 0; i-- {
		if f.chunks[i].size >= size {
			return f.chunks[i], true
		}
	}
	return chunk{}, false
}

// takeFirstFit removes or shrinks the first-fit chunk and returns the ref
// the caller should hand back as the allocation.
func (f *freeList) takeFirstFit(size int64) (Ref, bool) {
	c, ok := f.scanFirstFit(size)
	if !ok {
		return 0, false
	}

	if c.size == size {
		f.removeAt(c.ref)
		return c.ref, true
	}

	f.update(c.ref, chunk{ref: c.ref + Ref(size), size: c.size - size})
	return c.ref, true
}

// shiftAll adds delta to every chunk's ref, for Remap's rebase of the
// mutable free list after the baseline moves (spec.md §4.E).
func (f *freeList) shiftAll(delta Ref) {
	for i := range f.chunks {
		f.chunks[i].ref += delta
	}
	f.byRef = make(map[Ref]int, len(f.chunks))
	f.byEnd = make(map[Ref]int, len(f.chunks))
	for i := range f.chunks {
		f.reindex(i)
	}
}

// snapshot returns every chunk as the exported FreeChunk type, for
// GetFreeReadOnly and diagnostics.
func (f *freeList) snapshot() []FreeChunk {
	out := make([]FreeChunk, len(f.chunks))
	for i, c := range f.chunks {
		out[i] = FreeChunk{Ref: c.ref, Size: c.size}
	}
	return out
}
