// Copyright 2026 The BlobDB Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

package compression

import "github.com/blobdb/blobdb/internal/base"

type noopCompressor struct{}

var _ Compressor = noopCompressor{}

func (noopCompressor) Algorithm() Algorithm { return None }

func (noopCompressor) Compress(dst, src []byte) []byte {
	return append(dst[:0], src...)
}

func (noopCompressor) Close() {}

type noopDecompressor struct{}

var _ Decompressor = noopDecompressor{}

func (noopDecompressor) DecompressInto(dst, src []byte) error {
	if len(dst) != len(src) {
		return base.CorruptionErrorf("blobdb: uncompressed payload length mismatch: %d != %d",
			len(src), len(dst))
	}
	copy(dst, src)
	return nil
}

func (noopDecompressor) DecompressedLen(b []byte) (int, error) { return len(b), nil }

func (noopDecompressor) Close() {}
