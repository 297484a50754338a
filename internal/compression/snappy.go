// Copyright 2026 The BlobDB Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

package compression

import (
	"github.com/blobdb/blobdb/internal/base"
	"github.com/golang/snappy"
)

type snappyCompressor struct{}

var _ Compressor = snappyCompressor{}

func (snappyCompressor) Algorithm() Algorithm { return Snappy }

func (snappyCompressor) Compress(dst, src []byte) []byte {
	dst = dst[:cap(dst):cap(dst)]
	return snappy.Encode(dst, src)
}

func (snappyCompressor) Close() {}

type snappyDecompressor struct{}

var _ Decompressor = snappyDecompressor{}

func (snappyDecompressor) DecompressInto(dst, src []byte) error {
	result, err := snappy.Decode(dst, src)
	if err != nil {
		return base.MarkCorruptionError(err)
	}
	if len(result) != len(dst) || (len(result) > 0 && &result[0] != &dst[0]) {
		return base.CorruptionErrorf("blobdb: snappy decompressed into unexpected buffer")
	}
	return nil
}

func (snappyDecompressor) DecompressedLen(b []byte) (int, error) {
	n, err := snappy.DecodedLen(b)
	if err != nil {
		return 0, base.MarkCorruptionError(err)
	}
	return n, nil
}

func (snappyDecompressor) Close() {}
