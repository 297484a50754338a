// Copyright 2026 The BlobDB Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

// Package blobfile implements the on-disk blob file format: an append-only
// sequence of self-describing records, bracketed by a fixed header and
// footer, with an optional uncompression dictionary block.
//
// File layout:
//
//	+------- header (8 or 12 bytes) ------------------------------+
//	|   magic | version | flags (bit 0 = has dictionary)          |
//	+---------- record 0 ---------- ... ---------- record N-1 ----+
//	|   [optional uncompression dictionary block]                 |
//	+------- footer (32 bytes) -----------------------------------+
//	|   dict block handle (padded) | magic | crc32c               |
//	+--------------------------------------------------------------+
//
// Each record is crc32c (4B) | codec (1B) | uvarint key length |
// uvarint stored value length | key bytes | value bytes (possibly
// compressed). The crc covers everything after the crc field.
package blobfile

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/blobdb/blobdb/internal/base"
	"github.com/blobdb/blobdb/internal/compression"
)

// FileFormat identifies the format version of a blob file.
type FileFormat uint32

const (
	// FileFormatV1 is the original format. V1 headers carry no flags word,
	// so V1 files cannot have an uncompression dictionary.
	FileFormatV1 FileFormat = 1
	// FileFormatV2 adds the header flags word.
	FileFormatV2 FileFormat = 2
)

// String implements fmt.Stringer.
func (f FileFormat) String() string {
	switch f {
	case FileFormatV1:
		return "blobV1"
	case FileFormatV2:
		return "blobV2"
	default:
		return "unknown"
	}
}

const (
	headerMagic uint32 = 0xb10bdb01
	footerMagic        = "\xf7\xb1\x0b\xdb\xdb\x0b\xb1\xf7"

	headerV1Length = 8
	headerV2Length = 12
	// HeaderMaxLength bounds the encoded header length across formats.
	HeaderMaxLength = headerV2Length

	// FooterLength is the fixed encoded footer length.
	FooterLength = 32

	// flagHasUncompressionDictionary is set in the header flags word when the
	// file carries an uncompression dictionary block.
	flagHasUncompressionDictionary uint32 = 1 << 0

	// maxRecordHeaderLength bounds the encoded per-record header.
	maxRecordHeaderLength = 4 + 1 + 2*binary.MaxVarintLen64

	// minRecordHeaderLength is the smallest possible per-record header: crc,
	// codec, and two single-byte varints.
	minRecordHeaderLength = 4 + 1 + 2
)

var crcTable = crc32.MakeTable(crc32.Castagnoli)

func crcValue(b []byte) uint32 { return crc32.Checksum(b, crcTable) }

// Handle is a pointer to a record within a blob file: the record's offset and
// its full encoded size, header included.
type Handle struct {
	Offset uint64
	Size   uint64
}

// Record is a single key/value pair stored in a blob file. Keys are stored
// redundantly so records are self-describing.
type Record struct {
	Key   []byte
	Value []byte
}

// BlockHandle locates a byte range within a blob file. It is used for the
// dictionary block recorded in the footer.
type BlockHandle struct {
	Offset uint64
	Size   uint64
}

// Header is the decoded blob file header.
type Header struct {
	Format FileFormat
	Flags  uint32
}

// HasUncompressionDictionary reports whether the file carries an
// uncompression dictionary block.
func (h Header) HasUncompressionDictionary() bool {
	return h.Flags&flagHasUncompressionDictionary != 0
}

func (h Header) encodedLength() int {
	if h.Format >= FileFormatV2 {
		return headerV2Length
	}
	return headerV1Length
}

func (h Header) encode(b []byte) int {
	binary.LittleEndian.PutUint32(b[0:], headerMagic)
	binary.LittleEndian.PutUint32(b[4:], uint32(h.Format))
	if h.Format >= FileFormatV2 {
		binary.LittleEndian.PutUint32(b[8:], h.Flags)
		return headerV2Length
	}
	return headerV1Length
}

func (h *Header) decode(b []byte) error {
	if len(b) < headerV1Length {
		return base.CorruptionErrorf("blobdb: blob file header is too short: %d bytes", len(b))
	}
	if magic := binary.LittleEndian.Uint32(b[0:]); magic != headerMagic {
		return base.CorruptionErrorf("blobdb: invalid blob file magic 0x%08x", magic)
	}
	h.Format = FileFormat(binary.LittleEndian.Uint32(b[4:]))
	switch h.Format {
	case FileFormatV1:
		h.Flags = 0
	case FileFormatV2:
		if len(b) < headerV2Length {
			return base.CorruptionErrorf("blobdb: blob file header is too short: %d bytes", len(b))
		}
		h.Flags = binary.LittleEndian.Uint32(b[8:])
	default:
		return base.CorruptionErrorf("blobdb: unknown blob file format %d", uint32(h.Format))
	}
	return nil
}

// Footer is the decoded blob file footer.
type Footer struct {
	// DictHandle locates the uncompression dictionary block. It is zero when
	// the file has no dictionary.
	DictHandle BlockHandle
}

func (f Footer) encode(b []byte) {
	for i := range b[:FooterLength] {
		b[i] = 0
	}
	n := binary.PutUvarint(b[0:], f.DictHandle.Offset)
	binary.PutUvarint(b[n:], f.DictHandle.Size)
	copy(b[20:], footerMagic)
	binary.LittleEndian.PutUint32(b[28:], crcValue(b[:28]))
}

func (f *Footer) decode(b []byte) error {
	if len(b) != FooterLength {
		return base.CorruptionErrorf("blobdb: invalid blob file footer length %d", len(b))
	}
	if string(b[20:28]) != footerMagic {
		return base.CorruptionErrorf("blobdb: invalid blob file footer magic %x", b[20:28])
	}
	encodedChecksum := binary.LittleEndian.Uint32(b[28:])
	if computed := crcValue(b[:28]); encodedChecksum != computed {
		return base.CorruptionErrorf("blobdb: invalid blob file footer checksum 0x%08x, expected 0x%08x",
			encodedChecksum, computed)
	}
	var n, m int
	f.DictHandle.Offset, n = binary.Uvarint(b[0:20])
	if n <= 0 {
		return base.CorruptionErrorf("blobdb: invalid dictionary block handle")
	}
	f.DictHandle.Size, m = binary.Uvarint(b[n:20])
	if m <= 0 {
		return base.CorruptionErrorf("blobdb: invalid dictionary block handle")
	}
	return nil
}

// recordHeader is the decoded per-record header.
type recordHeader struct {
	codec     compression.Algorithm
	keyLen    uint64
	storedLen uint64
	// length is the encoded header length.
	length int
}

// decodeRecordHeader decodes a record header from the start of b. It does not
// verify the checksum (the checksum covers the record body, which may not be
// fully present in b).
func decodeRecordHeader(b []byte) (recordHeader, uint32, error) {
	var h recordHeader
	if len(b) < minRecordHeaderLength {
		return h, 0, base.CorruptionErrorf("blobdb: record header is too short: %d bytes", len(b))
	}
	checksum := binary.LittleEndian.Uint32(b[0:])
	h.codec = compression.Algorithm(b[4])
	if !h.codec.Valid() {
		return h, 0, base.CorruptionErrorf("blobdb: unknown record compression codec %d", b[4])
	}
	i := 5
	var n int
	h.keyLen, n = binary.Uvarint(b[i:])
	if n <= 0 {
		return h, 0, base.CorruptionErrorf("blobdb: invalid record key length")
	}
	i += n
	h.storedLen, n = binary.Uvarint(b[i:])
	if n <= 0 {
		return h, 0, base.CorruptionErrorf("blobdb: invalid record value length")
	}
	i += n
	h.length = i
	return h, checksum, nil
}

// encodeRecord appends a full record (header, key, stored value) to dst and
// returns the result.
func encodeRecord(dst []byte, codec compression.Algorithm, key, storedValue []byte) []byte {
	start := len(dst)
	dst = append(dst, 0, 0, 0, 0, byte(codec))
	var varintBuf [binary.MaxVarintLen64]byte
	dst = append(dst, varintBuf[:binary.PutUvarint(varintBuf[:], uint64(len(key)))]...)
	dst = append(dst, varintBuf[:binary.PutUvarint(varintBuf[:], uint64(len(storedValue)))]...)
	dst = append(dst, key...)
	dst = append(dst, storedValue...)
	binary.LittleEndian.PutUint32(dst[start:], crcValue(dst[start+4:]))
	return dst
}

// Canonical cache/pin buffer layout: uvarint key length | key | uncompressed
// value. Both the value cache and the uncached read path hand records to
// callers in this form.

func encodeCachedRecordPrefix(dst []byte, keyLen int) []byte {
	var varintBuf [binary.MaxVarintLen64]byte
	return append(dst, varintBuf[:binary.PutUvarint(varintBuf[:], uint64(keyLen))]...)
}

func decodeCachedRecord(b []byte) (Record, error) {
	keyLen, n := binary.Uvarint(b)
	if n <= 0 || uint64(len(b)-n) < keyLen {
		return Record{}, base.CorruptionErrorf("blobdb: invalid cached record encoding")
	}
	return Record{
		Key:   b[n : uint64(n)+keyLen],
		Value: b[uint64(n)+keyLen:],
	}, nil
}
