// Copyright 2026 The BlobDB Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

package blobfile

import (
	"github.com/blobdb/blobdb/internal/base"
)

// Iterator walks all records of a blob file in offset order. It drives its
// reads through a Prefetcher, so a full scan gets sequential read-ahead.
//
// Usage:
//
//	it := NewIterator(p)
//	defer it.Close()
//	for it.Next() {
//		_ = it.Record()
//	}
//	if err := it.Err(); err != nil { ... }
type Iterator struct {
	p   *Prefetcher
	off uint64
	end uint64

	handle Handle
	rec    Record
	bh     BufferHandle
	err    error
}

// NewIterator returns an iterator over all records read through p. The
// iterator assumes ownership of p: Close closes it.
func NewIterator(p *Prefetcher) *Iterator {
	r := p.Reader()
	return &Iterator{
		p:   p,
		off: r.recordsStart(),
		end: r.recordsEnd(),
	}
}

// Next advances to the next record. It returns false at the end of the file
// or on error.
func (it *Iterator) Next() bool {
	it.bh.Release()
	it.bh = BufferHandle{}
	if it.err != nil || it.off >= it.end {
		return false
	}

	r := it.p.Reader()
	n := uint64(maxRecordHeaderLength)
	if rem := it.end - it.off; rem < n {
		n = rem
	}
	headerBuf := make([]byte, n)
	if _, err := readFull(r.file, r.fileNum, headerBuf, int64(it.off)); err != nil {
		it.err = err
		return false
	}
	hdr, _, err := decodeRecordHeader(headerBuf)
	if err != nil {
		it.err = err
		return false
	}
	size := uint64(hdr.length) + hdr.keyLen + hdr.storedLen
	if it.off+size > it.end {
		it.err = base.CorruptionErrorf(
			"blobdb: record at offset %d overruns the record region of file %s", it.off, r.fileNum)
		return false
	}

	it.handle = Handle{Offset: it.off, Size: size}
	it.rec, it.bh, it.err = it.p.Get(it.handle)
	if it.err != nil {
		return false
	}
	it.off += size
	return true
}

// Record returns the current record. Its Key and Value are valid only until
// the next call to Next or Close.
func (it *Iterator) Record() Record { return it.rec }

// Handle returns the handle of the current record.
func (it *Iterator) Handle() Handle { return it.handle }

// Err returns the first error encountered by the iterator.
func (it *Iterator) Err() error { return it.err }

// Close releases the current record pin and closes the prefetcher.
func (it *Iterator) Close() {
	it.bh.Release()
	it.bh = BufferHandle{}
	if it.p != nil {
		it.p.Close()
		it.p = nil
	}
}
