// Copyright 2026 The BlobDB Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

package compression

import (
	"github.com/blobdb/blobdb/internal/base"
	"github.com/cockroachdb/errors"
	"github.com/minio/minlz"
)

type minlzCompressor struct{}

var _ Compressor = minlzCompressor{}

func (minlzCompressor) Algorithm() Algorithm { return MinLZ }

func (minlzCompressor) Compress(dst, src []byte) []byte {
	// MinLZ cannot encode blocks greater than 8MB. Fall back to Snappy in
	// those cases. Note that MinLZ can decode the Snappy compressed block.
	if len(src) > minlz.MaxBlockSize {
		return (snappyCompressor{}).Compress(dst, src)
	}
	compressed, err := minlz.Encode(dst[:cap(dst):cap(dst)], src, minlz.LevelBalanced)
	if err != nil {
		panic(errors.Wrap(err, "minlz compression"))
	}
	return compressed
}

func (minlzCompressor) Close() {}

type minlzDecompressor struct{}

var _ Decompressor = minlzDecompressor{}

func (minlzDecompressor) DecompressInto(dst, src []byte) error {
	result, err := minlz.Decode(dst, src)
	if err != nil {
		return base.MarkCorruptionError(err)
	}
	if len(result) != len(dst) || (len(result) > 0 && &result[0] != &dst[0]) {
		return base.CorruptionErrorf("blobdb: minlz decompressed into unexpected buffer")
	}
	return nil
}

func (minlzDecompressor) DecompressedLen(b []byte) (int, error) {
	n, err := minlz.DecodedLen(b)
	if err != nil {
		return 0, base.MarkCorruptionError(err)
	}
	return n, nil
}

func (minlzDecompressor) Close() {}
