// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slab

// Ref is a byte offset into the unified ref space: refs below the
// baseline address the immutable region, refs at or above it address a
// slab. A Ref of 0 means "no ref". Every Ref returned by Alloc is a
// multiple of 8.
type Ref uint64

// MemRef pairs an allocation's ref with the byte slice backing it. The
// slice's length is exactly the size that was allocated.
type MemRef struct {
	Addr []byte
	Ref  Ref
}

// freeState is the free-space bookkeeping state described by spec.md §3.
type freeState int

const (
	stateClean freeState = iota
	stateDirty
	stateInvalid
)

func (s freeState) String() string {
	switch s {
	case stateClean:
		return "clean"
	case stateDirty:
		return "dirty"
	case stateInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// attachMode is one of the five attachment modes of spec.md §3/§4.E.
type attachMode int

const (
	modeNone attachMode = iota
	modeOwnedBuffer
	modeUsersBuffer
	modeSharedFile
	modeUnsharedFile
)

func (m attachMode) String() string {
	switch m {
	case modeNone:
		return "none"
	case modeOwnedBuffer:
		return "owned-buffer"
	case modeUsersBuffer:
		return "users-buffer"
	case modeSharedFile:
		return "shared-file"
	case modeUnsharedFile:
		return "unshared-file"
	default:
		return "unknown"
	}
}

// slab is one owned heap buffer, mapped to the ref range
// [list.start(i), refEnd).
type slab struct {
	buf    []byte
	refEnd Ref
}
