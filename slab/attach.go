// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slab

// AttachFile attaches the Allocator to a backing file, driving backend
// through spec.md §4.E's sequence: open (creating an empty, canonical file
// if permitted and the file did not already exist, with the server-sync
// bit written into its header as requested), map read-only, and validate.
// For an existing file the stored server-sync bit must match
// opts.ServerSyncMode. backend must not be nil; callers that want the
// production behavior pass an *mmapfile.File (or any other Backend).
//
// Nothing observable changes on the Allocator until every fallible step
// has succeeded; the final few lines are the commit point.
func (a *Allocator) AttachFile(path string, opts AttachFileOptions, backend Backend) (Ref, error) {
	if a.attached() {
		return 0, &AlreadyAttachedError{Op: "AttachFile"}
	}
	if backend == nil {
		panic("slab: AttachFile: backend must not be nil")
	}

	existed, size, err := backend.Open(path, opts)
	if err != nil {
		return 0, err
	}

	created := false
	if !existed {
		if opts.ReadOnly || opts.NoCreate {
			backend.Close()
			return 0, &InvalidDatabaseError{Reason: ReasonReadOnlyEmptyFile}
		}

		hdr, err := backend.MapHeaderRW()
		if err != nil {
			backend.Close()
			return 0, err
		}
		writeEmptyHeader(hdr, opts.ServerSyncMode)

		const initialFileSize = 4096
		if err := backend.Prealloc(initialFileSize); err != nil {
			backend.Close()
			return 0, err
		}
		if !DisableSyncToDisk {
			if err := backend.Sync(); err != nil {
				backend.Close()
				return 0, err
			}
		}

		size = initialFileSize
		created = true
	}

	data, err := backend.Map(size)
	if err != nil {
		backend.Close()
		return 0, err
	}

	var v validated
	if opts.SkipValidate {
		h := decodeHeader(data[:headerSize])
		sel := h.select_()
		v = validated{topRef: Ref(h.top[sel]), format: h.format[sel], select_: sel, serverSync: h.serverSync()}
	} else {
		v, err = validateBuffer(data, size, opts.Shared)
		if err != nil {
			backend.Close()
			return 0, err
		}
	}

	if !created && v.serverSync != opts.ServerSyncMode {
		backend.Close()
		return 0, &InvalidDatabaseError{Reason: ReasonServerSyncMismatch, Detail: v.serverSync}
	}

	// Commit point: no step below here can fail.
	a.backend = backend
	a.data = data
	a.baseline = Ref(size)
	a.fileFormat = v.format
	a.serverSync = v.serverSync
	a.streaming = v.streaming
	if opts.Shared {
		a.mode = modeSharedFile
	} else {
		a.mode = modeUnsharedFile
	}
	a.slabs.reset(a.baseline)
	a.fm.reset()
	a.fr.reset()
	a.state = stateInvalid

	a.logger.Infof("AttachFile %s: mode=%s size=%d top=%d created=%v", path, a.mode, size, v.topRef, created)
	return v.topRef, nil
}

// AttachBuffer attaches the Allocator to an in-memory buffer it does not
// own: data is validated exactly as a file's contents would be, but no I/O
// ever occurs. The caller retains ownership of data and must keep it alive
// for as long as the Allocator stays attached.
func (a *Allocator) AttachBuffer(data []byte) (Ref, error) {
	if a.attached() {
		return 0, &AlreadyAttachedError{Op: "AttachBuffer"}
	}

	v, err := validateBuffer(data, int64(len(data)), false)
	if err != nil {
		return 0, err
	}

	a.data = data
	a.baseline = Ref(len(data))
	a.fileFormat = v.format
	a.serverSync = v.serverSync
	a.streaming = v.streaming
	a.mode = modeUsersBuffer
	a.slabs.reset(a.baseline)
	a.fm.reset()
	a.fr.reset()
	a.state = stateInvalid

	a.logger.Infof("AttachBuffer: size=%d top=%d", len(data), v.topRef)
	return v.topRef, nil
}

// AttachEmpty attaches the Allocator to a brand-new, purely in-memory
// database with no immutable region at all: the baseline is the bare
// 24-byte header size and every ref ever handed out will come from a slab.
// There is nothing to validate and nothing to read back, so it cannot
// fail.
func (a *Allocator) AttachEmpty() (Ref, error) {
	if a.attached() {
		return 0, &AlreadyAttachedError{Op: "AttachEmpty"}
	}

	a.data = nil
	a.baseline = Ref(headerSize)
	a.fileFormat = LibraryFileFormat
	a.serverSync = false
	a.streaming = false
	a.mode = modeOwnedBuffer
	a.slabs.reset(a.baseline)
	a.fm.reset()
	a.fr.reset()
	a.state = stateInvalid

	a.logger.Infof("AttachEmpty: baseline=%d", a.baseline)
	return 0, nil
}

// Detach releases whatever the Allocator is attached to and returns it to
// the zero, detached state. Detaching an already-detached Allocator is a
// no-op.
func (a *Allocator) Detach() error {
	switch a.mode {
	case modeNone:
		return nil
	case modeSharedFile, modeUnsharedFile:
		if a.backend != nil {
			if err := a.backend.Close(); err != nil {
				return err
			}
		}
	case modeOwnedBuffer, modeUsersBuffer:
		// OwnedBuffer's only storage is its slabs, reclaimed below.
		// UsersBuffer's data belongs to the caller; just drop our
		// reference to it.
	}

	a.logger.Infof("Detach: mode=%s", a.mode)

	a.backend = nil
	a.data = nil
	a.mode = modeNone
	a.baseline = 0
	a.fileFormat = 0
	a.serverSync = false
	a.streaming = false
	a.slabs.reset(0)
	a.fm.reset()
	a.fr.reset()
	a.state = stateClean
	return nil
}

// Remap is valid only while attached to a file and only while the
// free-space state is Clean. It asks backend to grow the mapping to cover
// newFileSize bytes — which the caller must already have extended the
// underlying file to, typically right after flushing pending slab content
// into it — and then rebases the slab list and mutable free list to start
// just above the new baseline, per spec.md §4.E.
//
// Because Clean guarantees exactly one free chunk per slab, each spanning
// the whole slab, rebasing reduces to sliding every slab and every mutable
// chunk up by the same delta the baseline moved by: their relative
// offsets from one another, and their sizes, are unchanged.
func (a *Allocator) Remap(newFileSize int64) (bool, error) {
	if a.mode != modeSharedFile && a.mode != modeUnsharedFile {
		return false, &NotAttachedError{Op: "Remap"}
	}
	assertf(a.state == stateClean, "Remap: free-space state must be Clean, got %s", a.state)
	assertf(newFileSize >= int64(a.baseline), "Remap: new size %d is below baseline %d", newFileSize, a.baseline)
	assertf(newFileSize%8 == 0, "Remap: new size %d is not a multiple of 8", newFileSize)

	moved, data, err := a.backend.Remap(newFileSize)
	if err != nil {
		return false, err
	}

	delta := Ref(newFileSize) - a.baseline
	a.data = data
	a.baseline = Ref(newFileSize)

	a.slabs.baseline = a.baseline
	for i := range a.slabs.slabs {
		a.slabs.slabs[i].refEnd += delta
	}
	a.fm.shiftAll(delta)

	a.logger.Infof("Remap: new size=%d baseline delta=%d moved=%v", newFileSize, delta, moved)
	return moved, nil
}

// PrepareForUpdate converts a streaming-form file to the canonical
// dual-top-ref form, in place, the first time it is opened for writing. It
// is a programmer error to call it on a file that was not written in
// streaming form; in a debug build that is caught by an assertion, in a
// release build the footer-cookie check inside prepareForUpdate fails
// instead and an InvalidDatabaseError comes back.
func (a *Allocator) PrepareForUpdate() error {
	if !a.attached() {
		return &NotAttachedError{Op: "PrepareForUpdate"}
	}
	assertf(a.streaming, "PrepareForUpdate: file is already in canonical form")

	sync := func() error {
		if a.backend == nil {
			return nil
		}
		return a.backend.Sync()
	}

	if err := prepareForUpdate(a.data, int64(len(a.data)), sync); err != nil {
		return err
	}

	a.streaming = false
	a.fileFormat = LibraryFileFormat
	a.logger.Infof("PrepareForUpdate: streaming file converted to canonical form")
	return nil
}

// ResetFreeSpaceTracking discards the current free lists and rebuilds the
// mutable one from scratch, with exactly one chunk per slab spanning the
// whole slab, then sets the free-space state to Clean. It is the only way
// out of Invalid. Calling it while already Clean is a no-op, matching
// spec.md §4.E.
//
// The read-only free list is cleared too, and not rebuilt: spec.md's reset
// procedure only ever re-derives mutable chunks from the slab list, which
// has no notion of read-only free space.
func (a *Allocator) ResetFreeSpaceTracking() error {
	if !a.attached() {
		return &NotAttachedError{Op: "ResetFreeSpaceTracking"}
	}
	if a.state == stateClean {
		return nil
	}

	a.fm.reset()
	a.fr.reset()

	start := a.baseline
	for i := range a.slabs.slabs {
		span := a.slabs.span(i)
		if span > 0 {
			a.fm.insert(chunk{ref: start, size: span})
		}
		start = a.slabs.slabs[i].refEnd
	}

	a.state = stateClean
	a.logger.Infof("ResetFreeSpaceTracking: rebuilt %d chunk(s)", a.fm.len())
	return nil
}
