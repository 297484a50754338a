// Copyright 2026 The BlobDB Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

package blobdb

import (
	"bytes"
	"testing"

	"github.com/blobdb/blobdb/blobfile"
	"github.com/blobdb/blobdb/internal/base"
	"github.com/blobdb/blobdb/vfs"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T, fs vfs.FS) *BlobStorage {
	t.Helper()
	opts := (&Options{FS: fs, Logger: base.NoopLogger{}, BlobCacheSize: 1 << 20}).EnsureDefaults()
	cache := NewBlobFileCache(opts)
	t.Cleanup(cache.Close)
	return NewBlobStorage(opts, CFOptions{}, 0, cache, NewInternalStats(0))
}

func addTestFile(
	t *testing.T, s *BlobStorage, fn base.FileNum, fileSize uint64,
) *BlobFileMeta {
	t.Helper()
	meta := NewBlobFileMeta(fn, fileSize)
	require.NoError(t, meta.StateTransit(FileEventAddCompleted))
	s.AddBlobFile(meta)
	return meta
}

func TestBlobStorageGet(t *testing.T) {
	fs := vfs.NewMem()
	records := []blobfile.Record{
		{Key: []byte("a"), Value: bytes.Repeat([]byte("x"), 1000)},
		{Key: []byte("b"), Value: bytes.Repeat([]byte("y"), 2000)},
	}
	handles, fileSize := writeBlobFile(t, fs, 7, records)

	s := newTestStorage(t, fs)
	addTestFile(t, s, 7, fileSize)

	for i, h := range handles {
		rec, bh, err := s.Get(blobfile.BlobIndex{FileNum: 7, Handle: h})
		require.NoError(t, err)
		require.Equal(t, records[i].Key, rec.Key)
		require.Equal(t, records[i].Value, rec.Value)
		bh.Release()
	}

	// A file missing from the registry is a dangling index: corruption.
	_, _, err := s.Get(blobfile.BlobIndex{FileNum: 8, Handle: handles[0]})
	require.True(t, base.IsCorruptionError(err))
	_, err = s.NewPrefetcher(8)
	require.True(t, base.IsCorruptionError(err))
}

func TestBlobStorageFindFile(t *testing.T) {
	s := newTestStorage(t, vfs.NewMem())
	meta := addTestFile(t, s, 1, 100)

	got, ok := s.FindFile(1)
	require.True(t, ok)
	require.Same(t, meta, got)

	_, ok = s.FindFile(2)
	require.False(t, ok)
}

func TestBlobStorageObsoleteRetention(t *testing.T) {
	fs := vfs.NewMem()
	records := []blobfile.Record{{Key: []byte("k"), Value: []byte("v")}}
	handles, fileSize := writeBlobFile(t, fs, 7, records)

	s := newTestStorage(t, fs)
	meta := addTestFile(t, s, 7, fileSize)

	s.MarkFileObsolete(meta, 1000)
	require.Equal(t, FileStateObsolete, meta.State())

	// The file remains registered and readable while a snapshot at or below
	// the obsolete-at sequence may still be live.
	require.Empty(t, s.GetObsoleteFiles(999))
	rec, bh, err := s.Get(blobfile.BlobIndex{FileNum: 7, Handle: handles[0]})
	require.NoError(t, err)
	require.Equal(t, "v", string(rec.Value))
	bh.Release()

	paths := s.GetObsoleteFiles(1001)
	require.Equal(t, []string{base.BlobFilePath("", 7)}, paths)
	_, ok := s.FindFile(7)
	require.False(t, ok)
	_, _, err = s.Get(blobfile.BlobIndex{FileNum: 7, Handle: handles[0]})
	require.True(t, base.IsCorruptionError(err))

	// A second sweep returns nothing.
	require.Empty(t, s.GetObsoleteFiles(1001))
}

func TestBlobStorageProperties(t *testing.T) {
	s := newTestStorage(t, vfs.NewMem())
	m1 := addTestFile(t, s, 1, 1000)
	addTestFile(t, s, 2, 2000)

	prop := func(name string) uint64 {
		v, ok := s.GetIntProperty(name)
		require.True(t, ok)
		return v
	}
	require.Equal(t, uint64(2), prop(PropertyNumLiveBlobFile))
	require.Equal(t, uint64(3000), prop(PropertyLiveBlobFileSize))
	require.Equal(t, uint64(3000), prop(PropertyLiveBlobSize))
	require.Equal(t, uint64(0), prop(PropertyNumObsoleteBlobFile))

	s.UpdateDiscardableSize(1, 400)
	require.Equal(t, uint64(400), m1.DiscardableSize())
	require.Equal(t, uint64(2600), prop(PropertyLiveBlobSize))

	// Discardable size clamps at the file size.
	s.UpdateDiscardableSize(1, 10000)
	require.Equal(t, uint64(1000), m1.DiscardableSize())
	require.Equal(t, float64(1), m1.DiscardableRatio())

	s.MarkFileObsolete(m1, 10)
	require.Equal(t, uint64(1), prop(PropertyNumLiveBlobFile))
	require.Equal(t, uint64(1), prop(PropertyNumObsoleteBlobFile))
	require.Equal(t, uint64(2000), prop(PropertyLiveBlobFileSize))
	require.Equal(t, uint64(1000), prop(PropertyObsoleteBlobFileSize))

	s.GetObsoleteFiles(11)
	require.Equal(t, uint64(0), prop(PropertyNumObsoleteBlobFile))
	require.Equal(t, uint64(0), prop(PropertyObsoleteBlobFileSize))

	_, ok := s.GetIntProperty("blobdb.no-such-property")
	require.False(t, ok)
}

func TestBlobStorageComputeGCScore(t *testing.T) {
	s := newTestStorage(t, vfs.NewMem())
	// Default MergeSmallFileThreshold is 8MB: file 1 is small and scores
	// 1.0; the others score their discardable ratio.
	addTestFile(t, s, 1, 1000)
	m2 := addTestFile(t, s, 2, 16<<20)
	m3 := addTestFile(t, s, 3, 16<<20)
	m4 := addTestFile(t, s, 4, 16<<20)
	m2.AddDiscardableSize(4 << 20)  // 0.25
	m3.AddDiscardableSize(12 << 20) // 0.75
	s.MarkFileObsolete(m4, 1)       // excluded

	s.ComputeGCScore()
	scores := s.GCScoreSnapshot()
	require.Len(t, scores, 3)
	require.Equal(t, base.FileNum(1), scores[0].FileNum)
	require.Equal(t, float64(1), scores[0].Score)
	require.Equal(t, base.FileNum(3), scores[1].FileNum)
	require.Equal(t, 0.75, scores[1].Score)
	require.Equal(t, base.FileNum(2), scores[2].FileNum)
	require.Equal(t, 0.25, scores[2].Score)
}

func TestBlobStorageExport(t *testing.T) {
	s := newTestStorage(t, vfs.NewMem())
	addTestFile(t, s, 1, 100)
	addTestFile(t, s, 2, 200)

	ret := make(map[base.FileNum]*BlobFileMeta)
	s.ExportBlobFiles(ret)
	require.Len(t, ret, 2)
	require.Equal(t, uint64(100), ret[1].FileSize())
	require.Equal(t, uint64(200), ret[2].FileSize())
	require.Equal(t, 2, s.NumBlobFiles())
}

func TestBlobFileMetaStateMachine(t *testing.T) {
	m := NewBlobFileMeta(1, 100)
	require.Equal(t, FileStateInit, m.State())

	// GC cannot touch a file before its producer finishes.
	require.Error(t, m.StateTransit(FileEventGCBegin))

	require.NoError(t, m.StateTransit(FileEventAddCompleted))
	require.Equal(t, FileStateNormal, m.State())
	require.Error(t, m.StateTransit(FileEventAddCompleted))

	require.NoError(t, m.StateTransit(FileEventGCBegin))
	require.Equal(t, FileStateBeingGC, m.State())
	require.Error(t, m.StateTransit(FileEventGCBegin))

	require.NoError(t, m.StateTransit(FileEventGCCompleted))
	require.Equal(t, FileStateNormal, m.State())

	require.NoError(t, m.StateTransit(FileEventDelete))
	require.Equal(t, FileStateObsolete, m.State())
	require.True(t, m.IsObsolete())
	// Delete is idempotent.
	require.NoError(t, m.StateTransit(FileEventDelete))
}
