// Copyright 2026 The BlobDB Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

package blobdb

import (
	"github.com/blobdb/blobdb/blobfile"
	"github.com/blobdb/blobdb/internal/base"
	"github.com/blobdb/blobdb/vfs"
)

// Options holds the database-wide configuration of the blob layer.
type Options struct {
	// Dirname is the directory holding the blob files.
	Dirname string

	// FS is the filesystem the blob files live on. Defaults to vfs.Default.
	FS vfs.FS

	// Logger receives informational messages. Defaults to
	// base.DefaultLogger.
	Logger base.Logger

	// Metrics receives event tickers. Defaults to a fresh, unregistered
	// Metrics; pass a registered one to export.
	Metrics *Metrics

	// MaxOpenBlobFiles bounds the number of blob file readers kept open.
	// Defaults to 1024.
	MaxOpenBlobFiles int

	// BlobCacheSize is the byte budget of the shared decoded-value cache.
	// Zero disables the value cache.
	BlobCacheSize int64

	// TargetByteDeletionRate paces obsolete blob file deletion
	// (bytes/second). Zero disables pacing.
	TargetByteDeletionRate int
}

// EnsureDefaults fills in unset fields and returns the receiver for
// chaining.
func (o *Options) EnsureDefaults() *Options {
	if o.FS == nil {
		o.FS = vfs.Default
	}
	if o.Logger == nil {
		o.Logger = base.DefaultLogger{}
	}
	if o.Metrics == nil {
		o.Metrics = NewMetrics()
	}
	if o.MaxOpenBlobFiles <= 0 {
		o.MaxOpenBlobFiles = 1024
	}
	return o
}

// CFOptions holds the per-column-family configuration of the blob layer.
type CFOptions struct {
	// BlobFileCompression is the codec applied to blob record values.
	// Defaults to Snappy.
	BlobFileCompression blobfile.Compression

	// MinGCBatchSize is the minimum total input size worth a GC round.
	// Defaults to 16MB.
	MinGCBatchSize uint64

	// MaxGCBatchSize caps the total input size of one GC round. Defaults to
	// 1GB.
	MaxGCBatchSize uint64

	// BlobFileTargetSize is the intended size of one blob file, and caps a
	// GC round's estimated output. Defaults to 256MB.
	BlobFileTargetSize uint64

	// BlobFileDiscardableRatio is the discardable fraction at or above which
	// a file is a GC candidate when picking. Defaults to 0.5.
	BlobFileDiscardableRatio float64

	// MergeSmallFileThreshold is the size below which a file scores 1.0
	// regardless of its discardable fraction; the picker also treats files
	// at or below it as GC candidates. Defaults to 8MB.
	MergeSmallFileThreshold uint64

	// GCBytesPerSec paces a GC rewrite by the input record bytes it reads
	// (bytes/second). Zero disables pacing.
	GCBytesPerSec int
}

// EnsureDefaults fills in unset fields and returns the receiver for
// chaining.
func (o *CFOptions) EnsureDefaults() *CFOptions {
	if o.BlobFileCompression == blobfile.NoCompression {
		o.BlobFileCompression = blobfile.SnappyCompression
	}
	if o.MinGCBatchSize == 0 {
		o.MinGCBatchSize = 16 << 20
	}
	if o.MaxGCBatchSize == 0 {
		o.MaxGCBatchSize = 1 << 30
	}
	if o.BlobFileTargetSize == 0 {
		o.BlobFileTargetSize = 256 << 20
	}
	if o.BlobFileDiscardableRatio == 0 {
		o.BlobFileDiscardableRatio = 0.5
	}
	if o.MergeSmallFileThreshold == 0 {
		o.MergeSmallFileThreshold = 8 << 20
	}
	return o
}
