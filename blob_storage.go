// Copyright 2026 The BlobDB Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

package blobdb

import (
	"slices"
	"sync"

	"github.com/blobdb/blobdb/blobfile"
	"github.com/blobdb/blobdb/internal/base"
	"github.com/cockroachdb/swiss"
)

// GCScore is a blob file's rewrite priority. Scores are in [0,1]: a file
// smaller than MergeSmallFileThreshold scores 1.0, otherwise the score is
// its discardable ratio.
type GCScore struct {
	FileNum base.FileNum
	Score   float64
}

type obsoleteFileEntry struct {
	fileNum     base.FileNum
	obsoleteSeq base.SeqNum
}

// BlobStorage is one column family's registry of blob files: live file
// metadata, the obsolete list, and the GC score vector. All mutation is
// guarded by a single readers–writer lock; the blob file cache has its own
// synchronization and is never called with the write lock held on paths that
// can recurse.
type BlobStorage struct {
	cfID      uint32
	cfOptions CFOptions
	dirname   string
	logger    base.Logger
	fileCache *BlobFileCache
	stats     *InternalStats

	mu struct {
		sync.RWMutex
		files         swiss.Map[base.FileNum, *BlobFileMeta]
		obsoleteFiles []obsoleteFileEntry
		gcScore       []GCScore
	}
}

// NewBlobStorage returns a BlobStorage for one column family. fileCache is
// shared across column families; stats may be nil.
func NewBlobStorage(
	opts *Options, cfOptions CFOptions, cfID uint32, fileCache *BlobFileCache, stats *InternalStats,
) *BlobStorage {
	opts.EnsureDefaults()
	cfOptions.EnsureDefaults()
	s := &BlobStorage{
		cfID:      cfID,
		cfOptions: cfOptions,
		dirname:   opts.Dirname,
		logger:    opts.Logger,
		fileCache: fileCache,
		stats:     stats,
	}
	s.mu.files.Init(16)
	return s
}

// CFID returns the column family id.
func (s *BlobStorage) CFID() uint32 { return s.cfID }

// AddBlobFile registers a new blob file.
func (s *BlobStorage) AddBlobFile(meta *BlobFileMeta) {
	s.mu.Lock()
	s.mu.files.Put(meta.FileNum(), meta)
	s.mu.Unlock()
	s.stats.add(propNumLiveBlobFile, 1)
	s.stats.add(propLiveBlobFileSize, int64(meta.FileSize()))
	s.stats.add(propLiveBlobSize, int64(meta.FileSize()-meta.DiscardableSize()))
}

// FindFile returns the metadata registered under fileNum. Callers hold a
// non-owning reference: the file may be erased from the registry at any
// time, so holders must re-check state rather than assume liveness.
func (s *BlobStorage) FindFile(fileNum base.FileNum) (*BlobFileMeta, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mu.files.Get(fileNum)
}

// Get resolves index to its record. A file missing from the registry is
// corruption: the LSM holds a dangling blob index.
func (s *BlobStorage) Get(index blobfile.BlobIndex) (blobfile.Record, blobfile.BufferHandle, error) {
	meta, ok := s.FindFile(index.FileNum)
	if !ok {
		return blobfile.Record{}, blobfile.BufferHandle{},
			base.CorruptionErrorf("blobdb: missing blob file %s", index.FileNum)
	}
	return s.fileCache.Get(meta.FileNum(), meta.FileSize(), index.Handle)
}

// NewPrefetcher returns a Prefetcher over the given file.
func (s *BlobStorage) NewPrefetcher(fileNum base.FileNum) (*blobfile.Prefetcher, error) {
	meta, ok := s.FindFile(fileNum)
	if !ok {
		return nil, base.CorruptionErrorf("blobdb: missing blob file %s", fileNum)
	}
	return s.fileCache.NewPrefetcher(meta.FileNum(), meta.FileSize())
}

// UpdateDiscardableSize accounts delta additional discardable bytes against
// fileNum. It is a no-op when the file is no longer registered.
func (s *BlobStorage) UpdateDiscardableSize(fileNum base.FileNum, delta uint64) {
	meta, ok := s.FindFile(fileNum)
	if !ok {
		return
	}
	before := meta.DiscardableSize()
	meta.AddDiscardableSize(delta)
	s.stats.sub(propLiveBlobSize, int64(meta.DiscardableSize()-before))
}

// MarkFileObsolete records that no future operation will reference the file.
// The file stays readable (and on disk) until every snapshot taken at or
// before obsoleteSeq has been released.
func (s *BlobStorage) MarkFileObsolete(meta *BlobFileMeta, obsoleteSeq base.SeqNum) {
	s.mu.Lock()
	s.mu.obsoleteFiles = append(s.mu.obsoleteFiles,
		obsoleteFileEntry{fileNum: meta.FileNum(), obsoleteSeq: obsoleteSeq})
	_ = meta.StateTransit(FileEventDelete)
	s.mu.Unlock()
	s.stats.sub(propNumLiveBlobFile, 1)
	s.stats.add(propNumObsoleteBlobFile, 1)
	s.stats.sub(propLiveBlobFileSize, int64(meta.FileSize()))
	s.stats.add(propObsoleteBlobFileSize, int64(meta.FileSize()))
	s.stats.sub(propLiveBlobSize, int64(meta.FileSize()-meta.DiscardableSize()))
}

// GetObsoleteFiles erases every obsolete file that is invisible to all live
// snapshots (obsolete-at sequence older than oldestLiveSeq), evicts it from
// the file cache, and returns the paths to physically delete.
func (s *BlobStorage) GetObsoleteFiles(oldestLiveSeq base.SeqNum) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var paths []string
	kept := s.mu.obsoleteFiles[:0]
	for _, entry := range s.mu.obsoleteFiles {
		// The file is deletable only once the oldest live snapshot is newer
		// than the sequence at which the file became obsolete.
		if oldestLiveSeq <= entry.obsoleteSeq {
			kept = append(kept, entry)
			continue
		}
		if meta, ok := s.mu.files.Get(entry.fileNum); ok {
			s.mu.files.Delete(entry.fileNum)
			s.stats.sub(propNumObsoleteBlobFile, 1)
			s.stats.sub(propObsoleteBlobFileSize, int64(meta.FileSize()))
		}
		s.fileCache.Evict(entry.fileNum)
		s.logger.Infof("blobdb: obsolete blob file %s (obsolete at %s) not visible to oldest snapshot %s, deleting",
			entry.fileNum, entry.obsoleteSeq, oldestLiveSeq)
		paths = append(paths, base.BlobFilePath(s.dirname, entry.fileNum))
	}
	s.mu.obsoleteFiles = kept
	return paths
}

// ComputeGCScore rebuilds the GC score vector over the non-obsolete files,
// highest score first.
func (s *BlobStorage) ComputeGCScore() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mu.gcScore = s.mu.gcScore[:0]
	s.mu.files.All(func(fn base.FileNum, meta *BlobFileMeta) bool {
		if meta.IsObsolete() {
			return true
		}
		score := GCScore{FileNum: fn}
		if meta.FileSize() < s.cfOptions.MergeSmallFileThreshold {
			score.Score = 1.0
		} else {
			score.Score = meta.DiscardableRatio()
		}
		s.mu.gcScore = append(s.mu.gcScore, score)
		return true
	})
	slices.SortFunc(s.mu.gcScore, func(a, b GCScore) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		case a.FileNum < b.FileNum:
			return -1
		case a.FileNum > b.FileNum:
			return 1
		default:
			return 0
		}
	})
}

// GCScoreSnapshot returns a copy of the last computed score vector.
func (s *BlobStorage) GCScoreSnapshot() []GCScore {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.mu.gcScore)
}

// ExportBlobFiles copies the registry into ret for observability.
func (s *BlobStorage) ExportBlobFiles(ret map[base.FileNum]*BlobFileMeta) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.mu.files.All(func(fn base.FileNum, meta *BlobFileMeta) bool {
		ret[fn] = meta
		return true
	})
}

// NumBlobFiles returns the number of registered files, obsolete included.
func (s *BlobStorage) NumBlobFiles() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mu.files.Len()
}

// GetIntProperty returns the named per-CF integer property.
func (s *BlobStorage) GetIntProperty(name string) (uint64, bool) {
	if s.stats == nil {
		return 0, false
	}
	return s.stats.GetIntProperty(name)
}
