// Copyright 2026 The BlobDB Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

package blobdb

import (
	"sync/atomic"

	"github.com/blobdb/blobdb/internal/base"
	"github.com/cockroachdb/errors"
)

// FileState is the lifecycle state of a blob file.
type FileState uint8

const (
	// FileStateInit is the state of a file whose producer has not finished.
	FileStateInit FileState = iota
	// FileStateNormal is a live, fully written file.
	FileStateNormal
	// FileStateBeingGC is a file currently being rewritten by GC.
	FileStateBeingGC
	// FileStateObsolete is a file no longer referenced by any future
	// operation, awaiting physical deletion.
	FileStateObsolete
)

// String implements fmt.Stringer.
func (s FileState) String() string {
	switch s {
	case FileStateInit:
		return "init"
	case FileStateNormal:
		return "normal"
	case FileStateBeingGC:
		return "being-gc"
	case FileStateObsolete:
		return "obsolete"
	default:
		return "unknown"
	}
}

// FileEvent drives blob file state transitions.
type FileEvent uint8

const (
	// FileEventAddCompleted fires when a flush or compaction finishes
	// producing the file.
	FileEventAddCompleted FileEvent = iota
	// FileEventGCBegin fires when a GC round picks the file as input.
	FileEventGCBegin
	// FileEventGCCompleted fires when a GC round releases the file without
	// obsoleting it.
	FileEventGCCompleted
	// FileEventDelete fires when the file stops being referenced by any
	// future operation.
	FileEventDelete
)

// BlobFileMeta is the in-memory record of one blob file. It is shared by the
// registry and transient consumers (GC rounds, prefetchers); consumers must
// tolerate the file going obsolete underneath them.
type BlobFileMeta struct {
	fileNum  base.FileNum
	fileSize uint64

	state           atomic.Uint32
	discardableSize atomic.Uint64
	gcMark          atomic.Bool
}

// NewBlobFileMeta returns a meta in FileStateInit.
func NewBlobFileMeta(fn base.FileNum, fileSize uint64) *BlobFileMeta {
	return &BlobFileMeta{fileNum: fn, fileSize: fileSize}
}

// FileNum returns the file's number.
func (m *BlobFileMeta) FileNum() base.FileNum { return m.fileNum }

// FileSize returns the file's size in bytes.
func (m *BlobFileMeta) FileSize() uint64 { return m.fileSize }

// State returns the file's current state.
func (m *BlobFileMeta) State() FileState { return FileState(m.state.Load()) }

// IsObsolete reports whether the file has been marked obsolete.
func (m *BlobFileMeta) IsObsolete() bool { return m.State() == FileStateObsolete }

// DiscardableSize returns the bytes whose referencing LSM entries have been
// overwritten or deleted.
func (m *BlobFileMeta) DiscardableSize() uint64 { return m.discardableSize.Load() }

// DiscardableRatio returns DiscardableSize / FileSize.
func (m *BlobFileMeta) DiscardableRatio() float64 {
	if m.fileSize == 0 {
		return 0
	}
	return float64(m.DiscardableSize()) / float64(m.fileSize)
}

// AddDiscardableSize accounts delta additional discardable bytes, clamping
// at the file size.
func (m *BlobFileMeta) AddDiscardableSize(delta uint64) {
	for {
		cur := m.discardableSize.Load()
		next := cur + delta
		if next > m.fileSize {
			next = m.fileSize
		}
		if m.discardableSize.CompareAndSwap(cur, next) {
			return
		}
	}
}

// GCMark reports whether the file has been explicitly marked for GC.
func (m *BlobFileMeta) GCMark() bool { return m.gcMark.Load() }

// SetGCMark explicitly marks the file for GC.
func (m *BlobFileMeta) SetGCMark() { m.gcMark.Store(true) }

// StateTransit applies event to the file's state machine. It returns an
// error when the event is not legal in the current state; the state is then
// unchanged.
func (m *BlobFileMeta) StateTransit(event FileEvent) error {
	for {
		cur := FileState(m.state.Load())
		var next FileState
		switch event {
		case FileEventAddCompleted:
			if cur != FileStateInit {
				return errors.AssertionFailedf(
					"blobdb: file %s: add-completed in state %s", m.fileNum, cur)
			}
			next = FileStateNormal
		case FileEventGCBegin:
			if cur != FileStateNormal {
				return errors.Newf("blobdb: file %s: gc-begin in state %s", m.fileNum, cur)
			}
			next = FileStateBeingGC
		case FileEventGCCompleted:
			if cur != FileStateBeingGC {
				return errors.Newf("blobdb: file %s: gc-completed in state %s", m.fileNum, cur)
			}
			next = FileStateNormal
		case FileEventDelete:
			if cur == FileStateObsolete {
				return nil
			}
			next = FileStateObsolete
		default:
			return errors.AssertionFailedf("blobdb: unknown file event %d", event)
		}
		if m.state.CompareAndSwap(uint32(cur), uint32(next)) {
			return nil
		}
	}
}
