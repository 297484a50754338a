// Copyright 2026 The BlobDB Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

package compression

import (
	"encoding/binary"

	"github.com/blobdb/blobdb/internal/base"
	"github.com/klauspost/compress/zstd"
)

// Zstd payloads are prefixed with a varint encoding the length of the
// decompressed payload.

type zstdCompressor struct {
	enc *zstd.Encoder
}

var _ Compressor = (*zstdCompressor)(nil)

func makeZstdCompressor(dict []byte) (*zstdCompressor, error) {
	opts := []zstd.EOption{zstd.WithEncoderLevel(zstd.SpeedDefault)}
	if len(dict) > 0 {
		opts = append(opts, zstd.WithEncoderDict(dict))
	}
	enc, err := zstd.NewWriter(nil, opts...)
	if err != nil {
		return nil, err
	}
	return &zstdCompressor{enc: enc}, nil
}

func (z *zstdCompressor) Algorithm() Algorithm { return Zstd }

func (z *zstdCompressor) Compress(dst, src []byte) []byte {
	dst = append(dst[:0], make([]byte, binary.MaxVarintLen64)...)
	varIntLen := binary.PutUvarint(dst, uint64(len(src)))
	return z.enc.EncodeAll(src, dst[:varIntLen])
}

func (z *zstdCompressor) Close() {
	_ = z.enc.Close()
}

type zstdDecompressor struct {
	dec *zstd.Decoder
}

var _ Decompressor = (*zstdDecompressor)(nil)

func makeZstdDecompressor(dict []byte) (*zstdDecompressor, error) {
	opts := []zstd.DOption{zstd.WithDecoderConcurrency(1)}
	if len(dict) > 0 {
		opts = append(opts, zstd.WithDecoderDicts(dict))
	}
	dec, err := zstd.NewReader(nil, opts...)
	if err != nil {
		return nil, err
	}
	return &zstdDecompressor{dec: dec}, nil
}

func (z *zstdDecompressor) DecompressInto(dst, src []byte) error {
	_, prefixLen := binary.Uvarint(src)
	if prefixLen <= 0 {
		return base.CorruptionErrorf("blobdb: zstd payload has invalid length prefix")
	}
	result, err := z.dec.DecodeAll(src[prefixLen:], dst[:0])
	if err != nil {
		return base.MarkCorruptionError(err)
	}
	if len(result) != len(dst) || (len(result) > 0 && &result[0] != &dst[0]) {
		return base.CorruptionErrorf("blobdb: zstd decompressed into unexpected buffer")
	}
	return nil
}

func (z *zstdDecompressor) DecompressedLen(b []byte) (int, error) {
	decodedLen, varIntLen := binary.Uvarint(b)
	if varIntLen <= 0 {
		return 0, base.CorruptionErrorf("blobdb: zstd payload has invalid length prefix")
	}
	return int(decodedLen), nil
}

func (z *zstdDecompressor) Close() {
	z.dec.Close()
}
