// Copyright 2026 The BlobDB Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

// Package blobdb implements key–value separation for an LSM engine. Large
// values are redirected out of the LSM into append-only blob files; the LSM
// stores short blob indexes pointing at them.
//
// The read plane resolves a blob index through BlobStorage (the per-column-
// family file registry), the shared BlobFileCache (open readers plus a
// decoded-value cache), and blobfile.FileReader.
//
// The background plane picks rewrite candidates by discardable-bytes score
// (GCPicker), rewrites them (GCJob), reconciles relocations with concurrent
// foreground writes (BlobIndexMergeOperator), and defers physical deletion
// until no live snapshot can reference a file (ObsoleteFileDeleter).
package blobdb

import (
	"github.com/blobdb/blobdb/blobfile"
	"github.com/blobdb/blobdb/internal/base"
)

// FileNum exports the base.FileNum type.
type FileNum = base.FileNum

// SeqNum exports the base.SeqNum type.
type SeqNum = base.SeqNum

// ValueKind exports the base.ValueKind type.
type ValueKind = base.ValueKind

// Exported base.ValueKind constants.
const (
	ValueKindValue     = base.ValueKindValue
	ValueKindBlobIndex = base.ValueKindBlobIndex
)

// BlobIndex exports the blobfile.BlobIndex type.
type BlobIndex = blobfile.BlobIndex

// MergeBlobIndex exports the blobfile.MergeBlobIndex type.
type MergeBlobIndex = blobfile.MergeBlobIndex

// IsCorruptionError returns true if the given error indicates corruption: a
// short or malformed blob file, a failed checksum, or a dangling blob index.
func IsCorruptionError(err error) bool {
	return base.IsCorruptionError(err)
}
