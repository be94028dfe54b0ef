// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slab

// AttachFileOptions configures AttachFile. It replaces the environment
// variables and flag combinations spec.md §4.E names as attach_file's
// parameters (path, shared, ro, no_create, skip_validate, key,
// server_sync).
type AttachFileOptions struct {
	ReadOnly       bool
	Shared         bool
	NoCreate       bool
	SkipValidate   bool
	ServerSyncMode bool

	// EncryptionKey is passed through to Backend.Open verbatim; slab
	// never interprets it (spec.md §1: encryption is an external
	// collaborator's concern).
	EncryptionKey []byte
}

// Backend is the file-I/O collaborator spec.md §1 carves out of the
// allocator's scope ("file I/O primitives (open, map, remap, sync,
// prealloc, encryption)"). AttachFile drives a Backend through exactly
// the sequence spec.md §4.E describes; it never calls os/syscall/unix
// itself. See package mmapfile for the production implementation.
type Backend interface {
	// Open opens (and, if necessary and permitted, creates) the backing
	// file. exists reports whether it already held data; size is its
	// size in bytes after any creation.
	Open(path string, opts AttachFileOptions) (exists bool, size int64, err error)

	// Map returns a read-only mapping of the first size bytes.
	Map(size int64) ([]byte, error)

	// MapHeaderRW returns a writable mapping of just the 24-byte header,
	// used only immediately after creating a new file.
	MapHeaderRW() ([]byte, error)

	// Remap grows the mapping to cover newSize bytes and reports whether
	// the mapping's base address changed.
	Remap(newSize int64) (moved bool, data []byte, err error)

	// Sync flushes any writable mapping and the file's metadata.
	Sync() error

	// Prealloc grows the file to size bytes without necessarily writing
	// zeros through the page cache.
	Prealloc(size int64) error

	// Close releases the mapping and the file handle.
	Close() error
}
