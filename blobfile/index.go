// Copyright 2026 The BlobDB Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

package blobfile

import (
	"encoding/binary"

	"github.com/blobdb/blobdb/internal/base"
)

// BlobIndex is the value the host engine stores in the LSM under the
// blob-index value kind: a pointer to one record in one blob file.
//
// Encoding: uvarint(file number) | uvarint(offset) | uvarint(size). The
// all-zero encoding is reserved as the deletion marker.
type BlobIndex struct {
	FileNum base.FileNum
	Handle  Handle
}

// IsDeletionMarker reports whether the index is the reserved deletion
// marker.
func (i BlobIndex) IsDeletionMarker() bool {
	return i.FileNum == 0 && i.Handle.Offset == 0 && i.Handle.Size == 0
}

// Encode appends the encoded index to dst and returns the result.
func (i BlobIndex) Encode(dst []byte) []byte {
	var buf [binary.MaxVarintLen64]byte
	dst = append(dst, buf[:binary.PutUvarint(buf[:], uint64(i.FileNum))]...)
	dst = append(dst, buf[:binary.PutUvarint(buf[:], i.Handle.Offset)]...)
	dst = append(dst, buf[:binary.PutUvarint(buf[:], i.Handle.Size)]...)
	return dst
}

// EncodeDeletionMarker appends the reserved deletion marker encoding to dst
// and returns the result.
func EncodeDeletionMarker(dst []byte) []byte {
	return BlobIndex{}.Encode(dst)
}

// decodeBlobIndex decodes an index from the front of b and returns the
// remaining bytes.
func decodeBlobIndex(b []byte) (BlobIndex, []byte, error) {
	var i BlobIndex
	fn, n := binary.Uvarint(b)
	if n <= 0 {
		return i, nil, base.CorruptionErrorf("blobdb: invalid blob index")
	}
	b = b[n:]
	off, n := binary.Uvarint(b)
	if n <= 0 {
		return i, nil, base.CorruptionErrorf("blobdb: invalid blob index")
	}
	b = b[n:]
	size, n := binary.Uvarint(b)
	if n <= 0 {
		return i, nil, base.CorruptionErrorf("blobdb: invalid blob index")
	}
	i.FileNum = base.FileNum(fn)
	i.Handle = Handle{Offset: off, Size: size}
	return i, b[n:], nil
}

// DecodeBlobIndex decodes a blob index. It fails if b contains trailing
// bytes.
func DecodeBlobIndex(b []byte) (BlobIndex, error) {
	i, rest, err := decodeBlobIndex(b)
	if err != nil {
		return i, err
	}
	if len(rest) != 0 {
		return i, base.CorruptionErrorf("blobdb: invalid blob index: %d trailing bytes", len(rest))
	}
	return i, nil
}

// MergeBlobIndex is a GC-produced merge operand: a BlobIndex for the
// rewritten location, extended with the pre-rewrite location so the merge
// operator can tell whether the rewrite still applies.
//
// Encoding: BlobIndex encoding | uvarint(source file number) |
// uvarint(source offset).
type MergeBlobIndex struct {
	BlobIndex
	SourceFileNum base.FileNum
	SourceOffset  uint64
}

// Encode appends the encoded operand to dst and returns the result.
func (i MergeBlobIndex) Encode(dst []byte) []byte {
	dst = i.BlobIndex.Encode(dst)
	var buf [binary.MaxVarintLen64]byte
	dst = append(dst, buf[:binary.PutUvarint(buf[:], uint64(i.SourceFileNum))]...)
	dst = append(dst, buf[:binary.PutUvarint(buf[:], i.SourceOffset)]...)
	return dst
}

// DecodeMergeBlobIndex decodes a merge operand. It fails if b contains
// trailing bytes.
func DecodeMergeBlobIndex(b []byte) (MergeBlobIndex, error) {
	var i MergeBlobIndex
	idx, rest, err := decodeBlobIndex(b)
	if err != nil {
		return i, err
	}
	fn, n := binary.Uvarint(rest)
	if n <= 0 {
		return i, base.CorruptionErrorf("blobdb: invalid merge blob index")
	}
	rest = rest[n:]
	off, n := binary.Uvarint(rest)
	if n <= 0 {
		return i, base.CorruptionErrorf("blobdb: invalid merge blob index")
	}
	if len(rest[n:]) != 0 {
		return i, base.CorruptionErrorf("blobdb: invalid merge blob index: %d trailing bytes", len(rest[n:]))
	}
	i.BlobIndex = idx
	i.SourceFileNum = base.FileNum(fn)
	i.SourceOffset = off
	return i, nil
}
