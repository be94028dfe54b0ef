// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slab

import (
	"os"
	"testing"
)

func TestMain(m *testing.M) {
	DebugAssertions = true
	os.Exit(m.Run())
}

// memBackend is an in-memory slab.Backend double, playing the role
// lldb.MemFiler plays for lldb.Filer: every attach_test.go and
// allocator_test.go scenario that needs a file-mode Allocator uses one of
// these instead of touching a real file.
type memBackend struct {
	buf      []byte
	rw       []byte
	existed  bool
	closed   bool
	opens    int
	syncs    int
	preallocs int
}

func newMemBackend(existed bool, initial []byte) *memBackend {
	return &memBackend{buf: initial, existed: existed}
}

func (m *memBackend) Open(path string, opts AttachFileOptions) (bool, int64, error) {
	m.opens++
	return m.existed, int64(len(m.buf)), nil
}

func (m *memBackend) MapHeaderRW() ([]byte, error) {
	if len(m.buf) < headerSize {
		m.buf = make([]byte, headerSize)
	}
	m.rw = m.buf[:headerSize]
	return m.rw, nil
}

func (m *memBackend) Map(size int64) ([]byte, error) {
	if int64(len(m.buf)) < size {
		grown := make([]byte, size)
		copy(grown, m.buf)
		m.buf = grown
	}
	return m.buf[:size], nil
}

func (m *memBackend) Remap(newSize int64) (bool, []byte, error) {
	data, err := m.Map(newSize)
	return true, data, err
}

func (m *memBackend) Sync() error {
	m.syncs++
	return nil
}

func (m *memBackend) Prealloc(size int64) error {
	m.preallocs++
	if int64(len(m.buf)) < size {
		grown := make([]byte, size)
		copy(grown, m.buf)
		m.buf = grown
	}
	return nil
}

func (m *memBackend) Close() error {
	m.closed = true
	return nil
}
