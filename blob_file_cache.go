// Copyright 2026 The BlobDB Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

package blobdb

import (
	"encoding/binary"

	"github.com/blobdb/blobdb/blobfile"
	"github.com/blobdb/blobdb/internal/base"
	"github.com/blobdb/blobdb/internal/cache"
	"github.com/blobdb/blobdb/vfs"
)

// BlobFileCache multiplexes two concerns over charge-based LRUs: a cache of
// open blob file readers keyed by file number, and a shared cache of decoded
// record buffers keyed by (file unique prefix, offset).
//
// Readers open lazily; evicting a reader closes its file. The value cache is
// shared across all readers and column families.
type BlobFileCache struct {
	fs      vfs.FS
	dirname string
	logger  base.Logger
	readers *cache.Cache[*blobfile.FileReader]
	values  *cache.Cache[[]byte]
	tickers *blobfile.Tickers
}

// NewBlobFileCache returns a BlobFileCache configured from opts.
func NewBlobFileCache(opts *Options) *BlobFileCache {
	opts.EnsureDefaults()
	c := &BlobFileCache{
		fs:      opts.FS,
		dirname: opts.Dirname,
		logger:  opts.Logger,
		tickers: opts.Metrics.tickers(),
	}
	c.readers = cache.New(int64(opts.MaxOpenBlobFiles), 0,
		func(r *blobfile.FileReader) {
			if err := r.Close(); err != nil {
				c.logger.Errorf("blobdb: closing blob file %s: %v", r.FileNum(), err)
			}
		})
	if opts.BlobCacheSize > 0 {
		c.values = cache.New[[]byte](opts.BlobCacheSize, 0, nil)
	}
	return c
}

// Get reads the record identified by handle from the given file.
func (c *BlobFileCache) Get(
	fileNum base.FileNum, fileSize uint64, handle blobfile.Handle,
) (blobfile.Record, blobfile.BufferHandle, error) {
	rh, err := c.findReader(fileNum, fileSize)
	if err != nil {
		return blobfile.Record{}, blobfile.BufferHandle{}, err
	}
	defer rh.Release()
	return rh.Value().Get(handle)
}

// NewPrefetcher returns a Prefetcher over the given file. The prefetcher
// pins the file's reader until Close.
func (c *BlobFileCache) NewPrefetcher(
	fileNum base.FileNum, fileSize uint64,
) (*blobfile.Prefetcher, error) {
	rh, err := c.findReader(fileNum, fileSize)
	if err != nil {
		return nil, err
	}
	return blobfile.MakePrefetcher(rh.Value(), rh.Release), nil
}

// Evict drops the file's open reader, if any. Cached values for the file age
// out of the value cache on their own; their keys are unique to the evicted
// reader and will never be looked up again.
func (c *BlobFileCache) Evict(fileNum base.FileNum) {
	c.readers.Evict(readerCacheKey(fileNum))
}

// Close releases both caches. There must be no outstanding prefetchers or
// record pins.
func (c *BlobFileCache) Close() {
	c.readers.Close()
	if c.values != nil {
		c.values.Close()
	}
}

// ReaderMetrics returns the reader cache's counters.
func (c *BlobFileCache) ReaderMetrics() cache.Metrics { return c.readers.Metrics() }

// ValueMetrics returns the value cache's counters. It returns zeros when the
// value cache is disabled.
func (c *BlobFileCache) ValueMetrics() cache.Metrics {
	if c.values == nil {
		return cache.Metrics{}
	}
	return c.values.Metrics()
}

func readerCacheKey(fn base.FileNum) string {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(fn))
	return string(buf[:])
}

func (c *BlobFileCache) findReader(
	fileNum base.FileNum, fileSize uint64,
) (cache.Handle[*blobfile.FileReader], error) {
	key := readerCacheKey(fileNum)
	if h, ok := c.readers.Lookup(key); ok {
		return h, nil
	}
	f, err := c.fs.Open(base.BlobFilePath(c.dirname, fileNum))
	if err != nil {
		return cache.Handle[*blobfile.FileReader]{}, err
	}
	r, err := blobfile.Open(
		blobfile.FileReaderOptions{Cache: c.values, Tickers: c.tickers},
		f, fileNum, fileSize)
	if err != nil {
		return cache.Handle[*blobfile.FileReader]{}, err
	}
	// Two racing opens both insert; the replaced reader is closed once its
	// handles are released.
	return c.readers.Insert(key, r, 1), nil
}
