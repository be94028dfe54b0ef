// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slab

import "fmt"

// InvalidDatabaseReason enumerates the ways header/footer validation, or an
// attach-time policy check, can fail. The numeric values are stable and may
// be logged or compared, but are not part of the on-disk format.
type InvalidDatabaseReason int

const (
	ReasonBadSize InvalidDatabaseReason = iota
	ReasonBadMagic
	ReasonBadFormat
	ReasonBadHeader1 // streaming footer magic mismatch
	ReasonBadHeader2 // top ref not a multiple of 8
	ReasonBadHeader3 // top ref >= size
	ReasonReadOnlyEmptyFile
	ReasonServerSyncMismatch
	ReasonDecryptionFailed
)

func (r InvalidDatabaseReason) String() string {
	switch r {
	case ReasonBadSize:
		return "bad size"
	case ReasonBadMagic:
		return "bad magic"
	case ReasonBadFormat:
		return "bad format"
	case ReasonBadHeader1:
		return "bad header #1: streaming footer magic mismatch"
	case ReasonBadHeader2:
		return "bad header #2: top ref not a multiple of 8"
	case ReasonBadHeader3:
		return "bad header #3: top ref >= size"
	case ReasonReadOnlyEmptyFile:
		return "cannot open an empty file read-only"
	case ReasonServerSyncMismatch:
		return "server-sync mode mismatch"
	case ReasonDecryptionFailed:
		return "decryption failed"
	default:
		return "unknown reason"
	}
}

// InvalidDatabaseError reports that a file or buffer does not hold a
// well-formed header, or that an attach-time policy check failed.
type InvalidDatabaseError struct {
	Reason InvalidDatabaseReason
	Detail interface{}
}

func (e *InvalidDatabaseError) Error() string {
	if e.Detail != nil {
		return fmt.Sprintf("slab: invalid database: %s (%v)", e.Reason, e.Detail)
	}
	return fmt.Sprintf("slab: invalid database: %s", e.Reason)
}

// InvalidFreeSpaceError is returned by Alloc and GetFreeReadOnly when the
// free-space state is Invalid: either the Allocator was just attached and
// ResetFreeSpaceTracking has not run yet, or a previous Free could not
// record a freed chunk and the free list is now known to be incomplete.
// ResetFreeSpaceTracking clears it.
type InvalidFreeSpaceError struct{}

func (*InvalidFreeSpaceError) Error() string {
	return "slab: free-space tracking is invalid; call ResetFreeSpaceTracking"
}

// OutOfMemoryError reports that growing a slab, or growing a free list,
// failed.
type OutOfMemoryError struct {
	Op   string
	Size int64
}

func (e *OutOfMemoryError) Error() string {
	return fmt.Sprintf("slab: out of memory during %s (size %d)", e.Op, e.Size)
}

// DebugAssertionError reports a violated precondition or invariant.
// assertf panics with it only when DebugAssertions is true; Verify returns
// it regardless of that setting.
type DebugAssertionError struct {
	Msg string
}

func (e *DebugAssertionError) Error() string {
	return "slab: assertion failed: " + e.Msg
}

func assertf(cond bool, format string, args ...interface{}) {
	if DebugAssertions && !cond {
		panic(&DebugAssertionError{Msg: fmt.Sprintf(format, args...)})
	}
}

// NotAttachedError is returned by operations that require an attached
// Allocator.
type NotAttachedError struct{ Op string }

func (e *NotAttachedError) Error() string {
	return fmt.Sprintf("slab: %s: not attached", e.Op)
}

// AlreadyAttachedError is returned by an attach_* call on an Allocator
// that is already attached.
type AlreadyAttachedError struct{ Op string }

func (e *AlreadyAttachedError) Error() string {
	return fmt.Sprintf("slab: %s: already attached", e.Op)
}
