// Copyright 2026 The BlobDB Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

package blobfile

import (
	"testing"

	"github.com/blobdb/blobdb/internal/base"
	"github.com/blobdb/blobdb/internal/compression"
	"github.com/stretchr/testify/require"
)

func TestHeaderRoundtrip(t *testing.T) {
	for _, h := range []Header{
		{Format: FileFormatV1},
		{Format: FileFormatV2},
		{Format: FileFormatV2, Flags: flagHasUncompressionDictionary},
	} {
		var buf [HeaderMaxLength]byte
		n := h.encode(buf[:])
		var decoded Header
		require.NoError(t, decoded.decode(buf[:n]))
		require.Equal(t, h, decoded)
	}
}

func TestHeaderCorruption(t *testing.T) {
	var buf [HeaderMaxLength]byte
	n := Header{Format: FileFormatV2}.encode(buf[:])

	var h Header
	require.Error(t, h.decode(buf[:3]))

	bad := append([]byte(nil), buf[:n]...)
	bad[0] ^= 0xff
	err := h.decode(bad)
	require.True(t, base.IsCorruptionError(err))

	bad = append(bad[:0], buf[:n]...)
	bad[4] = 0x7f // unknown format
	err = h.decode(bad)
	require.True(t, base.IsCorruptionError(err))
}

func TestFooterRoundtrip(t *testing.T) {
	for _, f := range []Footer{
		{},
		{DictHandle: BlockHandle{Offset: 123456, Size: 789}},
	} {
		var buf [FooterLength]byte
		f.encode(buf[:])
		var decoded Footer
		require.NoError(t, decoded.decode(buf[:]))
		require.Equal(t, f, decoded)
	}
}

func TestFooterCorruption(t *testing.T) {
	var buf [FooterLength]byte
	Footer{DictHandle: BlockHandle{Offset: 10, Size: 20}}.encode(buf[:])

	var f Footer
	bad := append([]byte(nil), buf[:]...)
	bad[0] ^= 0xff // flips the dict handle under the checksum
	require.True(t, base.IsCorruptionError(f.decode(bad)))

	bad = append(bad[:0], buf[:]...)
	bad[21] ^= 0xff // magic
	require.True(t, base.IsCorruptionError(f.decode(bad)))

	require.Error(t, f.decode(buf[:FooterLength-1]))
}

func TestRecordRoundtrip(t *testing.T) {
	rec := encodeRecord(nil, compression.None, []byte("key"), []byte("value"))
	hdr, checksum, err := decodeRecordHeader(rec)
	require.NoError(t, err)
	require.Equal(t, crcValue(rec[4:]), checksum)
	require.Equal(t, compression.None, hdr.codec)
	require.Equal(t, uint64(3), hdr.keyLen)
	require.Equal(t, uint64(5), hdr.storedLen)
	require.Equal(t, uint64(len(rec)), uint64(hdr.length)+hdr.keyLen+hdr.storedLen)
	require.Equal(t, "key", string(rec[hdr.length:hdr.length+3]))
	require.Equal(t, "value", string(rec[hdr.length+3:]))
}

func TestRecordHeaderCorruption(t *testing.T) {
	rec := encodeRecord(nil, compression.Snappy, []byte("k"), []byte("v"))
	bad := append([]byte(nil), rec...)
	bad[4] = 0x7f // unknown codec
	_, _, err := decodeRecordHeader(bad)
	require.True(t, base.IsCorruptionError(err))

	_, _, err = decodeRecordHeader(rec[:5])
	require.True(t, base.IsCorruptionError(err))
}

func TestBlobIndexRoundtrip(t *testing.T) {
	index := BlobIndex{FileNum: 7, Handle: Handle{Offset: 100, Size: 1 << 20}}
	encoded := index.Encode(nil)
	decoded, err := DecodeBlobIndex(encoded)
	require.NoError(t, err)
	require.Equal(t, index, decoded)
	require.False(t, decoded.IsDeletionMarker())

	_, err = DecodeBlobIndex(append(encoded, 0))
	require.True(t, base.IsCorruptionError(err))
	_, err = DecodeBlobIndex(encoded[:1])
	require.True(t, base.IsCorruptionError(err))
}

func TestDeletionMarker(t *testing.T) {
	encoded := EncodeDeletionMarker(nil)
	require.Equal(t, []byte{0, 0, 0}, encoded)
	decoded, err := DecodeBlobIndex(encoded)
	require.NoError(t, err)
	require.True(t, decoded.IsDeletionMarker())
}

func TestMergeBlobIndexRoundtrip(t *testing.T) {
	index := MergeBlobIndex{
		BlobIndex:     BlobIndex{FileNum: 9, Handle: Handle{Offset: 64, Size: 128}},
		SourceFileNum: 3,
		SourceOffset:  200,
	}
	encoded := index.Encode(nil)
	decoded, err := DecodeMergeBlobIndex(encoded)
	require.NoError(t, err)
	require.Equal(t, index, decoded)

	// A bare blob index is not a valid merge operand.
	_, err = DecodeMergeBlobIndex(index.BlobIndex.Encode(nil))
	require.True(t, base.IsCorruptionError(err))
}

func TestCachedRecordEncoding(t *testing.T) {
	buf := encodeCachedRecordPrefix(nil, 3)
	buf = append(buf, "abc"...)
	buf = append(buf, "value-bytes"...)
	rec, err := decodeCachedRecord(buf)
	require.NoError(t, err)
	require.Equal(t, "abc", string(rec.Key))
	require.Equal(t, "value-bytes", string(rec.Value))

	_, err = decodeCachedRecord([]byte{250})
	require.Error(t, err)
}
