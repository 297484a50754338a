// Copyright 2026 The BlobDB Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

package blobfile

import (
	"encoding/binary"
	"io"

	"github.com/blobdb/blobdb/internal/base"
	"github.com/blobdb/blobdb/internal/cache"
	"github.com/blobdb/blobdb/internal/compression"
	"github.com/blobdb/blobdb/vfs"
	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// cacheEntryOverhead approximates the fixed per-entry bookkeeping charged to
// the value cache on top of the buffer bytes.
const cacheEntryOverhead = 48

// Tickers groups the reader-path event counters. Any counter may be nil.
type Tickers struct {
	CacheHit  prometheus.Counter
	CacheMiss prometheus.Counter
}

func (t *Tickers) hit() {
	if t != nil && t.CacheHit != nil {
		t.CacheHit.Inc()
	}
}

func (t *Tickers) miss() {
	if t != nil && t.CacheMiss != nil {
		t.CacheMiss.Inc()
	}
}

// FileReaderOptions configures a FileReader.
type FileReaderOptions struct {
	// Cache is the shared value cache. It may be nil, in which case every Get
	// reads from disk.
	Cache *cache.Cache[[]byte]
	// Tickers receives cache hit/miss events. It may be nil.
	Tickers *Tickers
}

// BufferHandle pins the buffer backing a Record returned by a reader. The
// Record's Key and Value alias the pinned buffer and must not be used after
// Release.
type BufferHandle struct {
	h cache.Handle[[]byte]
}

// Release releases the pin. It is a no-op on the zero BufferHandle, which is
// returned when the record's buffer is not cache-resident.
func (b BufferHandle) Release() {
	if b.h.Valid() {
		b.h.Release()
	}
}

// FileReader reads records from a single blob file. A reader is immutable
// after Open and safe for concurrent use.
type FileReader struct {
	file     vfs.File
	fileNum  base.FileNum
	fileSize uint64
	header   Header
	footer   Footer

	valueCache  *cache.Cache[[]byte]
	cachePrefix []byte
	tickers     *Tickers

	dict          []byte
	decompressors [4]compression.Decompressor
}

// Open opens a blob file for reading. It validates the header and footer and
// materializes the uncompression dictionary if the file carries one.
//
// The reader takes ownership of file: Close closes it, and in error cases
// Open closes it before returning.
func Open(
	opts FileReaderOptions, file vfs.File, fileNum base.FileNum, fileSize uint64,
) (*FileReader, error) {
	r, err := open(opts, file, fileNum, fileSize)
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	return r, nil
}

func open(
	opts FileReaderOptions, file vfs.File, fileNum base.FileNum, fileSize uint64,
) (*FileReader, error) {
	if fileSize < FooterLength {
		return nil, base.CorruptionErrorf("blobdb: file %s is too short (%d bytes) to be a blob file",
			fileNum, fileSize)
	}

	r := &FileReader{
		file:       file,
		fileNum:    fileNum,
		fileSize:   fileSize,
		valueCache: opts.Cache,
		tickers:    opts.Tickers,
	}

	var headerBuf [HeaderMaxLength]byte
	if _, err := readFull(file, fileNum, headerBuf[:], 0); err != nil {
		return nil, err
	}
	if err := r.header.decode(headerBuf[:]); err != nil {
		return nil, err
	}

	var footerBuf [FooterLength]byte
	if _, err := readFull(file, fileNum, footerBuf[:], int64(fileSize-FooterLength)); err != nil {
		return nil, err
	}
	if err := r.footer.decode(footerBuf[:]); err != nil {
		return nil, err
	}

	if r.header.HasUncompressionDictionary() {
		h := r.footer.DictHandle
		if h.Size == 0 || h.Offset+h.Size > fileSize-FooterLength {
			return nil, base.CorruptionErrorf(
				"blobdb: file %s dictionary block handle [%d,%d) is out of bounds",
				fileNum, h.Offset, h.Offset+h.Size)
		}
		r.dict = make([]byte, h.Size)
		if _, err := readFull(file, fileNum, r.dict, int64(h.Offset)); err != nil {
			return nil, err
		}
	}

	for a := range r.decompressors {
		var dict []byte
		if compression.Algorithm(a) == compression.Zstd {
			dict = r.dict
		}
		d, err := compression.MakeDecompressor(compression.Algorithm(a), dict)
		if err != nil {
			r.closeDecompressors()
			return nil, err
		}
		r.decompressors[a] = d
	}

	if r.valueCache != nil {
		var buf [binary.MaxVarintLen64]byte
		r.cachePrefix = append([]byte(nil),
			buf[:binary.PutUvarint(buf[:], r.valueCache.NewID())]...)
	}
	return r, nil
}

// FileNum returns the file's number.
func (r *FileReader) FileNum() base.FileNum { return r.fileNum }

// Close closes the underlying file.
func (r *FileReader) Close() error {
	r.closeDecompressors()
	return r.file.Close()
}

func (r *FileReader) closeDecompressors() {
	for i, d := range r.decompressors {
		if d != nil {
			d.Close()
			r.decompressors[i] = nil
		}
	}
}

// recordsStart returns the offset of the first record.
func (r *FileReader) recordsStart() uint64 {
	return uint64(r.header.encodedLength())
}

// recordsEnd returns the offset one past the last record.
func (r *FileReader) recordsEnd() uint64 {
	if r.header.HasUncompressionDictionary() {
		return r.footer.DictHandle.Offset
	}
	return r.fileSize - FooterLength
}

func (r *FileReader) cacheKey(offset uint64) string {
	var buf [binary.MaxVarintLen64]byte
	k := make([]byte, 0, len(r.cachePrefix)+binary.MaxVarintLen64)
	k = append(k, r.cachePrefix...)
	k = append(k, buf[:binary.PutUvarint(buf[:], offset)]...)
	return string(k)
}

// Get reads and decodes the record identified by handle. The returned
// Record's Key and Value alias a buffer pinned by the returned BufferHandle;
// the caller must Release it when done.
func (r *FileReader) Get(handle Handle) (Record, BufferHandle, error) {
	var cacheKey string
	if r.valueCache != nil {
		cacheKey = r.cacheKey(handle.Offset)
		if ch, ok := r.valueCache.Lookup(cacheKey); ok {
			r.tickers.hit()
			rec, err := decodeCachedRecord(ch.Value())
			if err != nil {
				ch.Release()
				return Record{}, BufferHandle{}, err
			}
			return rec, BufferHandle{h: ch}, nil
		}
	}
	r.tickers.miss()

	buf, err := r.readRecord(handle)
	if err != nil {
		return Record{}, BufferHandle{}, err
	}

	if r.valueCache != nil {
		ch := r.valueCache.Insert(cacheKey, buf, int64(len(buf))+cacheEntryOverhead)
		rec, err := decodeCachedRecord(ch.Value())
		if err != nil {
			ch.Release()
			return Record{}, BufferHandle{}, err
		}
		return rec, BufferHandle{h: ch}, nil
	}
	rec, err := decodeCachedRecord(buf)
	if err != nil {
		return Record{}, BufferHandle{}, err
	}
	return rec, BufferHandle{}, nil
}

// readRecord reads the record at handle from disk, verifies it, and returns
// it re-encoded in the canonical pin-buffer layout.
func (r *FileReader) readRecord(handle Handle) ([]byte, error) {
	raw := make([]byte, handle.Size)
	if _, err := readFull(r.file, r.fileNum, raw, int64(handle.Offset)); err != nil {
		return nil, err
	}

	hdr, checksum, err := decodeRecordHeader(raw)
	if err != nil {
		return nil, err
	}
	if computed := crcValue(raw[4:]); checksum != computed {
		return nil, base.CorruptionErrorf(
			"blobdb: record checksum mismatch in file %s at offset %d: 0x%08x vs 0x%08x",
			r.fileNum, handle.Offset, checksum, computed)
	}
	if got := uint64(hdr.length) + hdr.keyLen + hdr.storedLen; got != handle.Size {
		return nil, base.CorruptionErrorf(
			"blobdb: record size mismatch in file %s at offset %d: %d vs handle size %d",
			r.fileNum, handle.Offset, got, handle.Size)
	}

	key := raw[hdr.length : uint64(hdr.length)+hdr.keyLen]
	stored := raw[uint64(hdr.length)+hdr.keyLen:]

	d := r.decompressors[hdr.codec]
	valueLen, err := d.DecompressedLen(stored)
	if err != nil {
		return nil, err
	}

	buf := encodeCachedRecordPrefix(make([]byte, 0, binary.MaxVarintLen64+len(key)+valueLen), len(key))
	buf = append(buf, key...)
	valueStart := len(buf)
	buf = append(buf, make([]byte, valueLen)...)
	if err := d.DecompressInto(buf[valueStart:], stored); err != nil {
		return nil, err
	}
	return buf, nil
}

// readFull reads exactly len(p) bytes at off. A short read is surfaced as
// corruption: handles always name byte ranges that a well-formed file
// contains.
func readFull(f vfs.File, fn base.FileNum, p []byte, off int64) (int, error) {
	n, err := f.ReadAt(p, off)
	if n == len(p) {
		return n, nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return n, base.CorruptionErrorf(
			"blobdb: short read from blob file %s at offset %d: %d of %d bytes", fn, off, n, len(p))
	}
	return n, errors.Wrapf(err, "blobdb: reading blob file %s", fn)
}
