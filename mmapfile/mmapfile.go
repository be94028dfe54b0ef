// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mmapfile implements slab.Backend over a real file using
// golang.org/x/sys/unix, the way lldb/osfiler.go and
// lldb/simplefilefiler.go implement lldb.Filer over *os.File.
package mmapfile

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/huishuyun/slabdb/slab"
)

// File is a slab.Backend backed by a real file, mmapped read-only (or,
// briefly, writable for just the 24-byte header immediately after
// creation).
type File struct {
	f    *os.File
	data []byte // the current read-only mapping, or nil
	rw   bool    // true while data is the writable header mapping
}

// Open returns a fresh, unattached File. Call Open (the method) to
// actually open a path; this constructor exists only so callers have
// something to pass as the slab.Backend argument to AttachFile before the
// underlying file is known.
func Open() *File {
	return &File{}
}

// Open implements slab.Backend.
func (m *File) Open(path string, opts slab.AttachFileOptions) (exists bool, size int64, err error) {
	flags := os.O_RDWR
	if opts.ReadOnly {
		flags = os.O_RDONLY
	}

	_, statErr := os.Stat(path)
	existed := statErr == nil

	if !existed && !opts.ReadOnly && !opts.NoCreate {
		flags |= os.O_CREATE
	}

	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return false, 0, fmt.Errorf("mmapfile: open %s: %w", path, err)
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return false, 0, fmt.Errorf("mmapfile: stat %s: %w", path, err)
	}

	m.f = f
	return existed && fi.Size() > 0, fi.Size(), nil
}

// MapHeaderRW implements slab.Backend. It is only ever called once, right
// after Open reports a still-zero-length file, so it maps the
// header-sized region the caller is about to write and preallocate into
// being.
func (m *File) MapHeaderRW() ([]byte, error) {
	const headerSize = 24
	if err := unix.Ftruncate(int(m.f.Fd()), headerSize); err != nil {
		return nil, fmt.Errorf("mmapfile: truncate: %w", err)
	}

	data, err := unix.Mmap(int(m.f.Fd()), 0, headerSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmapfile: mmap header: %w", err)
	}

	m.data = data
	m.rw = true
	return data, nil
}

// Map implements slab.Backend.
func (m *File) Map(size int64) ([]byte, error) {
	if m.data != nil {
		unix.Munmap(m.data)
		m.data = nil
	}

	prot := unix.PROT_READ
	data, err := unix.Mmap(int(m.f.Fd()), 0, int(size), prot, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmapfile: mmap: %w", err)
	}

	m.data = data
	m.rw = false
	return data, nil
}

// Remap implements slab.Backend. Go's mmap offers no in-place growth, so
// Remap always unmaps and remaps; its return value is always true, which
// is itself useful information: callers relying on in-place semantics
// elsewhere in the ecosystem would need to know the base address can
// move.
func (m *File) Remap(newSize int64) (bool, []byte, error) {
	data, err := m.Map(newSize)
	if err != nil {
		return false, nil, err
	}
	return true, data, nil
}

// Sync implements slab.Backend.
func (m *File) Sync() error {
	if m.rw && len(m.data) > 0 {
		if err := unix.Msync(m.data, unix.MS_SYNC); err != nil {
			return fmt.Errorf("mmapfile: msync: %w", err)
		}
	}
	if err := unix.Fdatasync(int(m.f.Fd())); err != nil {
		return fmt.Errorf("mmapfile: fdatasync: %w", err)
	}
	return nil
}

// Prealloc implements slab.Backend using fallocate, falling back to
// ftruncate on filesystems that do not support it.
func (m *File) Prealloc(size int64) error {
	if err := unix.Fallocate(int(m.f.Fd()), 0, 0, size); err != nil {
		if err := unix.Ftruncate(int(m.f.Fd()), size); err != nil {
			return fmt.Errorf("mmapfile: prealloc %d: %w", size, err)
		}
	}
	return nil
}

// Close implements slab.Backend.
func (m *File) Close() error {
	if m.data != nil {
		if err := unix.Munmap(m.data); err != nil {
			return fmt.Errorf("mmapfile: munmap: %w", err)
		}
		m.data = nil
	}
	if m.f != nil {
		if err := m.f.Close(); err != nil {
			return fmt.Errorf("mmapfile: close: %w", err)
		}
		m.f = nil
	}
	return nil
}
