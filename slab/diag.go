// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slab

import (
	"fmt"
	"io"
)

// IsAllFree reports whether every byte of mutable (slab) space is
// currently free, i.e. the sum of the mutable free list's chunk sizes
// equals the total size of all slabs. It does not require the free-space
// state to be Clean: a Dirty allocator that happens to have freed
// everything it allocated is still all-free.
func (a *Allocator) IsAllFree() bool {
	var total int64
	for i := range a.slabs.slabs {
		total += a.slabs.span(i)
	}

	var free int64
	for i := 0; i < a.fm.len(); i++ {
		free += a.fm.at(i).size
	}

	return free == total
}

// VerifyStats summarizes a successful Verify pass.
type VerifyStats struct {
	SlabCount        int
	TotalSlabBytes   int64
	FreeMutableBytes int64
	FreeReadOnlyBytes int64
}

// Verify walks the slab list and both free lists, checking every
// structural invariant spec.md §3/§4 describes: slab ranges are
// contiguous and strictly increasing; every free chunk has a positive,
// 8-byte-aligned size and an 8-byte-aligned ref; every mutable chunk lies
// entirely within one slab; every read-only chunk lies entirely within
// [0, baseline); and no two chunks in the same list overlap. It returns
// the first violation found, alongside stats describing what it did
// manage to walk.
//
// Verify is read-only: it never mutates the allocator, and is safe to run
// regardless of the free-space state (Invalid included — Verify simply
// reports what the lists currently hold).
func (a *Allocator) Verify() (VerifyStats, error) {
	var stats VerifyStats

	prevEnd := a.baseline
	for i := range a.slabs.slabs {
		start := a.slabs.start(i)
		end := a.slabs.slabs[i].refEnd
		if start != prevEnd {
			return stats, &DebugAssertionError{Msg: fmt.Sprintf("Verify: slab %d starts at %d, expected %d", i, start, prevEnd)}
		}
		if end <= start {
			return stats, &DebugAssertionError{Msg: fmt.Sprintf("Verify: slab %d has non-positive span [%d, %d)", i, start, end)}
		}
		stats.TotalSlabBytes += int64(end - start)
		prevEnd = end
	}
	stats.SlabCount = len(a.slabs.slabs)

	if err := verifyChunks(a.fm, a.baseline, a.slabs.lastRefEnd(), true, a); err != nil {
		return stats, err
	}
	if err := verifyChunks(a.fr, 0, a.baseline, false, a); err != nil {
		return stats, err
	}

	for i := 0; i < a.fm.len(); i++ {
		stats.FreeMutableBytes += a.fm.at(i).size
	}
	for i := 0; i < a.fr.len(); i++ {
		stats.FreeReadOnlyBytes += a.fr.at(i).size
	}

	return stats, nil
}

// verifyChunks checks alignment, bounds, and pairwise non-overlap for
// every chunk in list. mutable selects whether each chunk must additionally
// fall within a single slab, rather than merely within [lo, hi).
func verifyChunks(list *freeList, lo, hi Ref, mutable bool, a *Allocator) error {
	type span struct{ lo, hi Ref }
	var spans []span

	for i := 0; i < list.len(); i++ {
		c := list.at(i)
		if c.size <= 0 || c.size%8 != 0 {
			return &DebugAssertionError{Msg: fmt.Sprintf("Verify: chunk at ref %d has bad size %d", c.ref, c.size)}
		}
		if c.ref%8 != 0 {
			return &DebugAssertionError{Msg: fmt.Sprintf("Verify: chunk ref %d is not 8-byte aligned", c.ref)}
		}
		end := c.ref + Ref(c.size)
		if c.ref < lo || end > hi {
			return &DebugAssertionError{Msg: fmt.Sprintf("Verify: chunk [%d, %d) falls outside [%d, %d)", c.ref, end, lo, hi)}
		}
		if mutable {
			si, ok := a.slabs.indexFor(c.ref)
			if !ok || end > a.slabs.slabs[si].refEnd || c.ref < a.slabs.start(si) {
				return &DebugAssertionError{Msg: fmt.Sprintf("Verify: mutable chunk [%d, %d) crosses a slab boundary", c.ref, end)}
			}
		}

		for _, s := range spans {
			if c.ref < s.hi && s.lo < end {
				return &DebugAssertionError{Msg: fmt.Sprintf("Verify: chunk [%d, %d) overlaps [%d, %d)", c.ref, end, s.lo, s.hi)}
			}
		}
		spans = append(spans, span{c.ref, end})
	}

	return nil
}

// Print writes a human-readable report of the allocator's attachment
// state, slab list, and both free lists to w. It is diagnostic only: its
// output format is not part of this package's API and may change freely.
func (a *Allocator) Print(w io.Writer) {
	fmt.Fprintf(w, "mode=%s state=%s baseline=%d total_size=%d format=%d server_sync=%v streaming=%v\n",
		a.mode, a.state, a.baseline, a.GetTotalSize(), a.fileFormat, a.serverSync, a.streaming)

	fmt.Fprintf(w, "slabs (%d):\n", len(a.slabs.slabs))
	for i := range a.slabs.slabs {
		fmt.Fprintf(w, "  [%d] [%d, %d) %d bytes\n", i, a.slabs.start(i), a.slabs.slabs[i].refEnd, a.slabs.span(i))
	}

	fmt.Fprintf(w, "free mutable (%d):\n", a.fm.len())
	for i := 0; i < a.fm.len(); i++ {
		c := a.fm.at(i)
		fmt.Fprintf(w, "  [%d, %d) %d bytes\n", c.ref, c.ref+Ref(c.size), c.size)
	}

	fmt.Fprintf(w, "free read-only (%d):\n", a.fr.len())
	for i := 0; i < a.fr.len(); i++ {
		c := a.fr.at(i)
		fmt.Fprintf(w, "  [%d, %d) %d bytes\n", c.ref, c.ref+Ref(c.size), c.size)
	}
}
