// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slab

import (
	"sort"

	"github.com/cznic/mathutil"
)

// slabGrowthUnit is the rounding granularity for new slab sizes (spec.md
// §4.B step 1).
const slabGrowthUnit = 256

// slabList is an append-only, ref-ordered sequence of owned heap buffers.
// slabs[i].refEnd is strictly increasing; slabs[0] starts at the
// allocator's baseline, and slabs[i>0] starts at slabs[i-1].refEnd.
type slabList struct {
	baseline Ref
	slabs    []slab
}

func (l *slabList) reset(baseline Ref) {
	l.baseline = baseline
	l.slabs = l.slabs[:0]
}

// start returns the ref at which slab i begins.
func (l *slabList) start(i int) Ref {
	if i == 0 {
		return l.baseline
	}
	return l.slabs[i-1].refEnd
}

// span returns the byte length of slab i.
func (l *slabList) span(i int) int64 {
	return int64(l.slabs[i].refEnd - l.start(i))
}

func (l *slabList) lastRefEnd() Ref {
	if len(l.slabs) == 0 {
		return l.baseline
	}
	return l.slabs[len(l.slabs)-1].refEnd
}

// indexFor returns the index of the unique slab whose range [start,
// refEnd) contains ref, via an upper-bound binary search on refEnd.
func (l *slabList) indexFor(ref Ref) (int, bool) {
	i := sort.Search(len(l.slabs), func(i int) bool { return l.slabs[i].refEnd > ref })
	if i >= len(l.slabs) {
		return 0, false
	}
	if ref < l.start(i) {
		return 0, false
	}
	return i, true
}

// growFor grows the slab list to satisfy an allocation of size bytes that
// the free list could not serve, implementing spec.md §4.B's doubling
// policy. It returns the ref at which the fresh, size-byte region starts
// and, if the new slab's trailing remainder is non-empty, the free chunk
// that should be linked into the mutable free list.
func (l *slabList) growFor(size int64) (Ref, *chunk, error) {
	newSize := roundUp(size, slabGrowthUnit)

	var prevSize int64
	if n := len(l.slabs); n > 0 {
		prevSize = l.span(n - 1)
	}

	newSize = mathutil.MaxInt64(newSize, 2*prevSize)

	buf, err := newZeroed(newSize)
	if err != nil {
		return 0, nil, &OutOfMemoryError{Op: "slab growth", Size: newSize}
	}

	start := l.lastRefEnd()
	l.slabs = append(l.slabs, slab{buf: buf, refEnd: start + Ref(newSize)})

	if newSize > size {
		return start, &chunk{ref: start + Ref(size), size: newSize - size}, nil
	}
	return start, nil, nil
}

func roundUp(n, unit int64) int64 {
	return (n + unit - 1) / unit * unit
}

// newZeroed is the sole point at which the allocator grows the OS heap. It
// exists so tests can simulate an out-of-memory slab growth without
// actually exhausting memory.
var newZeroed = func(n int64) ([]byte, error) {
	return make([]byte, n), nil
}

// bytesAt returns the byte slice backing [ref, ref+size) within the slab
// at index i. Callers must have already located i via indexFor.
func (l *slabList) bytesAt(i int, ref Ref, size int64) []byte {
	off := int64(ref - l.start(i))
	return l.slabs[i].buf[off : off+size]
}
