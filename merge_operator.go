// Copyright 2026 The BlobDB Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

package blobdb

import (
	"github.com/blobdb/blobdb/blobfile"
	"github.com/blobdb/blobdb/internal/base"
)

// MergeInput is the host engine's view of one key's pending merge: an
// optional base value plus the ordered merge operands (older to newer)
// accumulated since the base.
type MergeInput struct {
	Key []byte
	// HasExistingValue is false when the key has no base value (it was
	// deleted, or never written, below the operands).
	HasExistingValue bool
	// ExistingValueKind is the base value's kind. Only meaningful when
	// HasExistingValue.
	ExistingValueKind base.ValueKind
	// ExistingValue is the base value's raw bytes: either an inline value or
	// an encoded blob index, per ExistingValueKind.
	ExistingValue []byte
	// Operands are encoded MergeBlobIndex operands, oldest first.
	Operands [][]byte
}

// MergeOutput is the merge result handed back to the host engine.
type MergeOutput struct {
	ValueKind base.ValueKind
	// Value is the surviving value: the base unchanged, or a freshly encoded
	// blob index. When it is the base, it aliases MergeInput.ExistingValue.
	Value []byte
}

// BlobIndexMergeOperator reconciles GC rewrites with concurrent foreground
// writes. GC emits a MergeBlobIndex operand when it relocates one version of
// a key; the operator applies the relocation only if that version is still
// the authoritative one.
//
// Merge rules, with [X] a put, (X') a GC rewrite of X:
//
//	keep base:  [Y][Z] ... [X](Y')(Z') => [X]
//	same put:   [Y] ... [X](Y')(X')   => [X']   (operand's source matches base)
//	chain:      [X](X')(X'')          => [X'']  (operand's source matches the
//	                                             previously accepted rewrite)
//	deletion:   [delete](X')(Y')      => deletion marker
//
// An inline base value always wins unchanged: a foreground put of a short
// value supersedes any pending GC operand.
type BlobIndexMergeOperator struct{}

// Name returns the operator's registration name. The host engine persists
// it, so it must never change.
func (BlobIndexMergeOperator) Name() string { return "blobdb.BlobIndexMergeOperator" }

// FullMerge merges the base value with the pending operands. It returns
// false when the base fails to decode, or when an operand fails to decode
// under a live blob-index base (operands are not decoded for an inline,
// missing or deletion-marker base); the engine then treats the merge as
// failed and surfaces a background error.
func (BlobIndexMergeOperator) FullMerge(in MergeInput) (MergeOutput, bool) {
	if in.HasExistingValue && in.ExistingValueKind == base.ValueKindValue {
		return MergeOutput{ValueKind: base.ValueKindValue, Value: in.ExistingValue}, true
	}

	var existing blobfile.BlobIndex
	existingValid := false
	if in.HasExistingValue {
		var err error
		existing, err = blobfile.DecodeBlobIndex(in.ExistingValue)
		if err != nil {
			return MergeOutput{}, false
		}
		existingValid = !existing.IsDeletionMarker()
	}
	if !existingValid {
		// The key was deleted below the operands; every rewrite targets a
		// dead version.
		return MergeOutput{
			ValueKind: base.ValueKindBlobIndex,
			Value:     blobfile.EncodeDeletionMarker(nil),
		}, true
	}

	var merged blobfile.MergeBlobIndex
	for _, operand := range in.Operands {
		index, err := blobfile.DecodeMergeBlobIndex(operand)
		if err != nil {
			return MergeOutput{}, false
		}
		if existingValid {
			// A rewrite sourced from the base index makes the base stale.
			if index.SourceFileNum == existing.FileNum &&
				index.SourceOffset == existing.Handle.Offset {
				existingValid = false
				merged = index
			}
		} else if index.SourceFileNum == merged.FileNum &&
			index.SourceOffset == merged.Handle.Offset {
			// A rewrite of the previously accepted rewrite.
			merged = index
		}
	}

	if existingValid {
		return MergeOutput{ValueKind: base.ValueKindBlobIndex, Value: in.ExistingValue}, true
	}
	return MergeOutput{
		ValueKind: base.ValueKindBlobIndex,
		Value:     merged.BlobIndex.Encode(nil),
	}, true
}

// PartialMerge is unsupported: operands cannot be collapsed without knowing
// the base value.
func (BlobIndexMergeOperator) PartialMerge(key []byte, operands [][]byte) ([]byte, bool) {
	return nil, false
}
