// Copyright 2026 The BlobDB Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

package blobdb

import (
	"github.com/blobdb/blobdb/internal/base"
)

// BlobGC is one GC round's worth of input files.
type BlobGC struct {
	// Inputs are the files to rewrite, all in FileStateNormal when picked.
	Inputs []*BlobFileMeta
	// MaybeContinueNextTime hints that enough eligible input remained
	// beyond this batch to warrant another round right after it.
	MaybeContinueNextTime bool
}

// InputSize returns the total size of the round's input files.
func (gc *BlobGC) InputSize() uint64 {
	var total uint64
	for _, meta := range gc.Inputs {
		total += meta.FileSize()
	}
	return total
}

// GCPicker selects the blob files to rewrite in one GC round.
type GCPicker interface {
	// PickBlobGC returns the next round's inputs, or nil when nothing is
	// worth rewriting.
	PickBlobGC(storage *BlobStorage) *BlobGC
}

// BasicGCPicker walks the storage's score vector in descending score order,
// batching files until the round is full, then looks ahead to decide whether
// a follow-up round is already warranted.
type BasicGCPicker struct {
	cfOptions CFOptions
	logger    base.Logger
}

var _ GCPicker = (*BasicGCPicker)(nil)

// NewBasicGCPicker returns a BasicGCPicker.
func NewBasicGCPicker(opts *Options, cfOptions CFOptions) *BasicGCPicker {
	opts.EnsureDefaults()
	cfOptions.EnsureDefaults()
	return &BasicGCPicker{cfOptions: cfOptions, logger: opts.Logger}
}

// PickBlobGC implements GCPicker. It tolerates a stale score vector: files
// that have vanished or changed state since ComputeGCScore are skipped.
func (p *BasicGCPicker) PickBlobGC(storage *BlobStorage) *BlobGC {
	var inputs []*BlobFileMeta
	var batchSize, estimateOutputSize uint64
	var nextGCSize uint64
	stopPicking := false
	maybeContinueNextTime := false

	for _, gcScore := range storage.GCScoreSnapshot() {
		meta, ok := storage.FindFile(gcScore.FileNum)
		if !ok || meta.State() == FileStateBeingGC {
			// Skip files that vanished or are already being rewritten.
			continue
		}
		if meta.State() != FileStateNormal {
			continue
		}
		eligible := meta.FileSize() <= p.cfOptions.MergeSmallFileThreshold ||
			meta.GCMark() ||
			meta.DiscardableRatio() >= p.cfOptions.BlobFileDiscardableRatio
		if !stopPicking {
			if !eligible {
				// Scores are sorted descending: once a file is not worth
				// rewriting, neither is anything after it.
				break
			}
			inputs = append(inputs, meta)
			batchSize += meta.FileSize()
			estimateOutputSize += meta.FileSize() - meta.DiscardableSize()
			if batchSize >= p.cfOptions.MaxGCBatchSize ||
				estimateOutputSize >= p.cfOptions.BlobFileTargetSize {
				// The round is full. Keep scanning to decide whether another
				// round should follow immediately.
				stopPicking = true
			}
		} else {
			if eligible {
				nextGCSize += meta.FileSize()
				if nextGCSize > p.cfOptions.MinGCBatchSize {
					maybeContinueNextTime = true
					p.logger.Infof("blobdb: more than %d bytes eligible for gc after this round", nextGCSize)
					break
				}
			} else {
				// Scores are sorted descending, so no later file is eligible
				// either.
				break
			}
		}
	}

	if len(inputs) == 0 || batchSize < p.cfOptions.MinGCBatchSize {
		return nil
	}
	return &BlobGC{Inputs: inputs, MaybeContinueNextTime: maybeContinueNextTime}
}
