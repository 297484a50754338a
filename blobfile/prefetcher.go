// Copyright 2026 The BlobDB Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

package blobfile

import (
	"github.com/blobdb/blobdb/vfs"
)

// maxReadaheadSize caps the prefetcher's read-ahead window.
const maxReadaheadSize = 256 << 10 // 256 KB

// Prefetcher wraps a FileReader with adaptive sequential read-ahead. A
// strictly forward-sequential stream of Gets grows the read-ahead window,
// doubling from the first request size up to maxReadaheadSize; any
// non-sequential Get resets the window.
//
// A Prefetcher is owned by exactly one user and is not safe for concurrent
// use.
type Prefetcher struct {
	reader *FileReader
	// closer releases whatever pins the reader (typically a reader-cache
	// handle). It may be nil.
	closer func()
	// prefetchFn issues the OS read-ahead hint.
	prefetchFn func(offset, size uint64)

	lastOffset     uint64
	readaheadSize  uint64
	readaheadLimit uint64
}

// MakePrefetcher returns a Prefetcher over reader. closer, if non-nil, is
// invoked by Close after the prefetcher is done with the reader.
func MakePrefetcher(reader *FileReader, closer func()) *Prefetcher {
	p := &Prefetcher{reader: reader, closer: closer}
	p.prefetchFn = func(offset, size uint64) {
		_ = vfs.Prefetch(reader.file, offset, size)
	}
	return p
}

// Reader returns the wrapped reader.
func (p *Prefetcher) Reader() *FileReader { return p.reader }

// Get reads the record identified by handle, updating the read-ahead state.
func (p *Prefetcher) Get(handle Handle) (Record, BufferHandle, error) {
	if handle.Offset == p.lastOffset {
		p.lastOffset = handle.Offset + handle.Size
		if handle.Offset+handle.Size > p.readaheadLimit {
			p.readaheadSize = max(handle.Size, p.readaheadSize)
			p.prefetchFn(handle.Offset, p.readaheadSize)
			p.readaheadLimit = handle.Offset + p.readaheadSize
			p.readaheadSize = min(uint64(maxReadaheadSize), p.readaheadSize*2)
		}
	} else {
		p.lastOffset = handle.Offset + handle.Size
		p.readaheadSize = 0
		p.readaheadLimit = 0
	}
	return p.reader.Get(handle)
}

// Close releases the prefetcher's pin on the reader.
func (p *Prefetcher) Close() {
	if p.closer != nil {
		p.closer()
		p.closer = nil
	}
	p.reader = nil
}
