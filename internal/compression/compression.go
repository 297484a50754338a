// Copyright 2026 The BlobDB Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

// Package compression provides the record compression codecs used by blob
// files.
package compression

import (
	"github.com/cockroachdb/errors"
)

// Algorithm identifies a compression codec. The value is stored in each blob
// record's header, so the constants must not be reordered.
type Algorithm uint8

const (
	// None leaves the payload uncompressed.
	None Algorithm = 0
	// Snappy compresses with the Snappy block format.
	Snappy Algorithm = 1
	// Zstd compresses with Zstandard. Zstd is the only algorithm that
	// supports compression dictionaries.
	Zstd Algorithm = 2
	// MinLZ compresses with the MinLZ block format.
	MinLZ Algorithm = 3

	numAlgorithms = 4
)

// String implements fmt.Stringer.
func (a Algorithm) String() string {
	switch a {
	case None:
		return "none"
	case Snappy:
		return "snappy"
	case Zstd:
		return "zstd"
	case MinLZ:
		return "minlz"
	default:
		return "unknown"
	}
}

// Valid returns true if a names a known algorithm.
func (a Algorithm) Valid() bool { return a < numAlgorithms }

// Compressor compresses payloads with one algorithm.
type Compressor interface {
	// Algorithm returns the algorithm this compressor implements.
	Algorithm() Algorithm

	// Compress appends the compressed form of src to dst (which is typically
	// an empty slice backed by preallocated capacity) and returns the result.
	Compress(dst, src []byte) []byte

	// Close must be called when the compressor is no longer needed.
	Close()
}

// Decompressor decompresses payloads compressed with one algorithm.
type Decompressor interface {
	// DecompressInto decompresses src into dst. dst must be exactly the
	// decompressed length, as reported by DecompressedLen.
	DecompressInto(dst, src []byte) error

	// DecompressedLen returns the length of the decompressed payload.
	DecompressedLen(b []byte) (int, error)

	// Close must be called when the decompressor is no longer needed.
	Close()
}

// MakeCompressor returns a Compressor for the given algorithm. dict is used
// only by Zstd; passing a dictionary with any other algorithm is an error.
func MakeCompressor(a Algorithm, dict []byte) (Compressor, error) {
	if len(dict) > 0 && a != Zstd {
		return nil, errors.Newf("compression: %s does not support dictionaries", a)
	}
	switch a {
	case None:
		return noopCompressor{}, nil
	case Snappy:
		return snappyCompressor{}, nil
	case Zstd:
		return makeZstdCompressor(dict)
	case MinLZ:
		return minlzCompressor{}, nil
	default:
		return nil, errors.Newf("compression: unknown algorithm %d", errors.Safe(a))
	}
}

// MakeDecompressor returns a Decompressor for the given algorithm. dict is
// used only by Zstd and is ignored by the other algorithms.
func MakeDecompressor(a Algorithm, dict []byte) (Decompressor, error) {
	switch a {
	case None:
		return noopDecompressor{}, nil
	case Snappy:
		return snappyDecompressor{}, nil
	case Zstd:
		return makeZstdDecompressor(dict)
	case MinLZ:
		return minlzDecompressor{}, nil
	default:
		return nil, errors.Newf("compression: unknown algorithm %d", errors.Safe(a))
	}
}
