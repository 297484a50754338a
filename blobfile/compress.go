// Copyright 2026 The BlobDB Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

package blobfile

import (
	"github.com/blobdb/blobdb/internal/compression"
)

// Compression is the per-file record compression codec.
type Compression = compression.Algorithm

// Exported codec constants.
const (
	NoCompression     = compression.None
	SnappyCompression = compression.Snappy
	ZstdCompression   = compression.Zstd
	MinLZCompression  = compression.MinLZ
)
