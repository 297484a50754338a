// Copyright 2026 The BlobDB Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

package blobdb

import (
	"time"

	"github.com/blobdb/blobdb/internal/base"
	"github.com/blobdb/blobdb/vfs"
	"github.com/cockroachdb/tokenbucket"
)

// ObsoleteFileDeleter physically deletes obsolete blob files, pacing unlinks
// by byte size when TargetByteDeletionRate is set. Deletion is best-effort:
// a failed unlink is retried on the next sweep.
type ObsoleteFileDeleter struct {
	opts    *Options
	paced   bool
	limiter tokenbucket.TokenBucket

	// retry holds paths whose unlink failed on a previous sweep.
	retry []string
}

// NewObsoleteFileDeleter returns a deleter configured from opts.
func NewObsoleteFileDeleter(opts *Options) *ObsoleteFileDeleter {
	opts.EnsureDefaults()
	d := &ObsoleteFileDeleter{opts: opts}
	if r := opts.TargetByteDeletionRate; r > 0 {
		d.paced = true
		d.limiter.Init(tokenbucket.TokensPerSecond(r), tokenbucket.Tokens(r))
	}
	return d
}

// DeleteObsoleteFiles collects each storage's deletable obsolete files
// (those invisible to the oldest live snapshot), unlinks them, and returns
// the number of files deleted.
func (d *ObsoleteFileDeleter) DeleteObsoleteFiles(
	oldestLiveSeq base.SeqNum, storages ...*BlobStorage,
) int {
	paths := d.retry
	d.retry = nil
	for _, s := range storages {
		paths = append(paths, s.GetObsoleteFiles(oldestLiveSeq)...)
	}

	deleted := 0
	for _, path := range paths {
		var size uint64
		if info, err := d.opts.FS.Stat(path); err == nil {
			size = uint64(info.Size())
		} else if vfs.IsNotExist(err) {
			continue
		}
		d.pace(size)
		if err := d.opts.FS.Remove(path); err != nil {
			if vfs.IsNotExist(err) {
				continue
			}
			d.opts.Logger.Errorf("blobdb: deleting obsolete blob file %s: %v", path, err)
			d.retry = append(d.retry, path)
			continue
		}
		deleted++
		d.opts.Metrics.ObsoleteFilesDeleted.Inc()
	}
	return deleted
}

func (d *ObsoleteFileDeleter) pace(n uint64) {
	if !d.paced || n == 0 {
		return
	}
	for {
		ok, wait := d.limiter.TryToFulfill(tokenbucket.Tokens(n))
		if ok {
			return
		}
		time.Sleep(wait)
	}
}
