// Copyright 2026 The BlobDB Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

package blobdb

import (
	"github.com/blobdb/blobdb/blobfile"
	"github.com/blobdb/blobdb/internal/base"
)

// Engine is the seam between the blob layer and the host LSM engine. The
// blob layer never writes LSM state directly: GC relocations flow through
// WriteMergeIndex and are reconciled by the BlobIndexMergeOperator when the
// engine applies them.
type Engine interface {
	// LatestSequence returns the engine's current sequence number.
	LatestSequence() base.SeqNum

	// OldestSnapshotSequence returns the sequence of the oldest live
	// snapshot, or LatestSequence()+1 when no snapshot is live.
	OldestSnapshotSequence() base.SeqNum

	// NewBlobFileNum allocates a fresh blob file number.
	NewBlobFileNum() base.FileNum

	// GetBlobIndex returns the blob index currently stored under key. ok is
	// false when the key is absent, deleted, or stored inline.
	GetBlobIndex(key []byte) (index blobfile.BlobIndex, ok bool, err error)

	// WriteMergeIndex hands a GC relocation for key to the engine, to be
	// applied as a merge of the encoded operand.
	WriteMergeIndex(key []byte, index blobfile.MergeBlobIndex) error

	// ReportBackgroundError surfaces an error that background work must not
	// fail on; the engine escalates it to the administrator.
	ReportBackgroundError(err error)
}
