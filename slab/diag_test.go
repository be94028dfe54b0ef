// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slab

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyCleanAllocatorHasNoComplaints(t *testing.T) {
	a := newAttachedEmpty(t)
	_, err := a.Alloc(64)
	require.NoError(t, err)
	_, err = a.Alloc(1000)
	require.NoError(t, err)

	stats, err := a.Verify()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.SlabCount)
	assert.Equal(t, a.GetTotalSize()-int64(a.baseline), stats.TotalSlabBytes)
}

func TestVerifyDetectsOverlappingChunks(t *testing.T) {
	a := newAttachedEmpty(t)
	_, err := a.Alloc(1000) // creates one big slab
	require.NoError(t, err)

	a.fm.insert(chunk{ref: a.baseline, size: 16})
	a.fm.insert(chunk{ref: a.baseline + 8, size: 16})

	_, err = a.Verify()
	assert.Error(t, err)
}

func TestVerifyDetectsChunkCrossingSlabBoundary(t *testing.T) {
	a := newAttachedEmpty(t)
	_, err := a.Alloc(8)
	require.NoError(t, err)
	_, err = a.Alloc(1000) // second slab
	require.NoError(t, err)

	end := a.slabs.slabs[0].refEnd
	a.fm.insert(chunk{ref: end - 8, size: 16}) // straddles slab 0/1

	_, err = a.Verify()
	assert.Error(t, err)
}

func TestIsAllFreeFalseWhenSomethingIsLive(t *testing.T) {
	a := newAttachedEmpty(t)
	_, err := a.Alloc(64)
	require.NoError(t, err)

	assert.False(t, a.IsAllFree())
}

func TestPrintProducesNonEmptyReport(t *testing.T) {
	a := newAttachedEmpty(t)
	_, err := a.Alloc(64)
	require.NoError(t, err)

	var buf bytes.Buffer
	a.Print(&buf)
	assert.NotEmpty(t, buf.String())
	assert.Contains(t, buf.String(), "slabs (")
}
