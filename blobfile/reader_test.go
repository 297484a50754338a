// Copyright 2026 The BlobDB Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

package blobfile

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/blobdb/blobdb/internal/base"
	"github.com/blobdb/blobdb/internal/cache"
	"github.com/blobdb/blobdb/internal/compression"
	"github.com/blobdb/blobdb/vfs"
	"github.com/klauspost/compress/zstd"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

// buildBlobFile writes records to a fresh file on fs and returns the handles
// and the file size.
func buildBlobFile(
	t *testing.T, fs vfs.FS, fn base.FileNum, opts FileWriterOptions, records []Record,
) ([]Handle, uint64) {
	t.Helper()
	f, err := fs.Create(base.BlobFilePath("", fn))
	require.NoError(t, err)
	w, err := NewFileWriter(fn, f, opts)
	require.NoError(t, err)
	handles := make([]Handle, len(records))
	for i, rec := range records {
		handles[i], err = w.AddRecord(rec.Key, rec.Value)
		require.NoError(t, err)
	}
	stats, err := w.Close()
	require.NoError(t, err)
	require.Equal(t, uint64(len(records)), stats.RecordCount)
	return handles, stats.FileLen
}

func openBlobFile(
	t *testing.T, fs vfs.FS, fn base.FileNum, fileSize uint64, opts FileReaderOptions,
) *FileReader {
	t.Helper()
	f, err := fs.Open(base.BlobFilePath("", fn))
	require.NoError(t, err)
	r, err := Open(opts, f, fn, fileSize)
	require.NoError(t, err)
	return r
}

func testRecords(n int) []Record {
	records := make([]Record, n)
	for i := range records {
		records[i] = Record{
			Key:   []byte(fmt.Sprintf("key-%04d", i)),
			Value: bytes.Repeat([]byte(fmt.Sprintf("value-%04d-", i)), 50),
		}
	}
	return records
}

func TestReaderRoundtrip(t *testing.T) {
	for _, codec := range []Compression{
		NoCompression, SnappyCompression, ZstdCompression, MinLZCompression,
	} {
		t.Run(codec.String(), func(t *testing.T) {
			fs := vfs.NewMem()
			records := testRecords(100)
			handles, fileSize := buildBlobFile(t, fs, 1,
				FileWriterOptions{Compression: codec}, records)

			r := openBlobFile(t, fs, 1, fileSize, FileReaderOptions{})
			defer r.Close()
			for i, h := range handles {
				rec, bh, err := r.Get(h)
				require.NoError(t, err)
				require.Equal(t, records[i].Key, rec.Key)
				require.Equal(t, records[i].Value, rec.Value)
				bh.Release()
			}
		})
	}
}

func TestReaderRoundtripWithDictionary(t *testing.T) {
	samples := make([][]byte, 1000)
	for i := range samples {
		samples[i] = []byte(fmt.Sprintf("sample payload %d with shared structure and boilerplate", i))
	}
	dict, err := zstd.BuildDict(zstd.BuildDictOptions{
		ID:       1234,
		Contents: samples,
		History:  bytes.Join(samples[:100], nil),
		Offsets:  [3]int{1, 4, 8},
	})
	require.NoError(t, err)

	fs := vfs.NewMem()
	records := testRecords(50)
	handles, fileSize := buildBlobFile(t, fs, 1, FileWriterOptions{
		Compression: ZstdCompression,
		Dictionary:  dict,
	}, records)

	r := openBlobFile(t, fs, 1, fileSize, FileReaderOptions{})
	defer r.Close()
	require.True(t, r.header.HasUncompressionDictionary())
	for i, h := range handles {
		rec, bh, err := r.Get(h)
		require.NoError(t, err)
		require.Equal(t, records[i].Value, rec.Value)
		bh.Release()
	}
}

func TestReaderValueCache(t *testing.T) {
	fs := vfs.NewMem()
	records := testRecords(10)
	handles, fileSize := buildBlobFile(t, fs, 1, FileWriterOptions{}, records)

	c := cache.New[[]byte](1<<20, 1, nil)
	defer c.Close()
	tickers := &Tickers{
		CacheHit:  prometheus.NewCounter(prometheus.CounterOpts{Name: "hit"}),
		CacheMiss: prometheus.NewCounter(prometheus.CounterOpts{Name: "miss"}),
	}
	r := openBlobFile(t, fs, 1, fileSize, FileReaderOptions{Cache: c, Tickers: tickers})
	defer r.Close()

	rec1, bh1, err := r.Get(handles[3])
	require.NoError(t, err)
	require.Equal(t, float64(0), testutil.ToFloat64(tickers.CacheHit))
	require.Equal(t, float64(1), testutil.ToFloat64(tickers.CacheMiss))

	rec2, bh2, err := r.Get(handles[3])
	require.NoError(t, err)
	require.Equal(t, float64(1), testutil.ToFloat64(tickers.CacheHit))
	require.Equal(t, float64(1), testutil.ToFloat64(tickers.CacheMiss))

	require.Equal(t, rec1.Value, rec2.Value)
	// Both reads are backed by the same cached buffer.
	require.Same(t, &rec1.Value[0], &rec2.Value[0])
	bh1.Release()
	bh2.Release()
}

func TestReaderCorruption(t *testing.T) {
	fs := vfs.NewMem()
	records := testRecords(3)
	handles, fileSize := buildBlobFile(t, fs, 1, FileWriterOptions{}, records)

	t.Run("too-short", func(t *testing.T) {
		f, err := fs.Open(base.BlobFilePath("", 1))
		require.NoError(t, err)
		_, err = Open(FileReaderOptions{}, f, 1, FooterLength-1)
		require.True(t, base.IsCorruptionError(err))
	})

	t.Run("short-read", func(t *testing.T) {
		r := openBlobFile(t, fs, 1, fileSize, FileReaderOptions{})
		defer r.Close()
		_, _, err := r.Get(Handle{Offset: fileSize - 10, Size: 100})
		require.True(t, base.IsCorruptionError(err))
	})

	t.Run("bad-checksum", func(t *testing.T) {
		// Flip a byte inside record 1's body on a copy of the file.
		f, err := fs.Open(base.BlobFilePath("", 1))
		require.NoError(t, err)
		data := make([]byte, fileSize)
		_, err = f.ReadAt(data, 0)
		require.NoError(t, err)
		require.NoError(t, f.Close())
		data[handles[1].Offset+handles[1].Size-1] ^= 0xff
		f2, err := fs.Create("corrupt.blob")
		require.NoError(t, err)
		_, err = f2.Write(data)
		require.NoError(t, err)
		require.NoError(t, f2.Close())

		f3, err := fs.Open("corrupt.blob")
		require.NoError(t, err)
		r, err := Open(FileReaderOptions{}, f3, 2, fileSize)
		require.NoError(t, err)
		defer r.Close()
		_, _, err = r.Get(handles[1])
		require.True(t, base.IsCorruptionError(err))
		// Other records still read fine.
		rec, bh, err := r.Get(handles[0])
		require.NoError(t, err)
		require.Equal(t, records[0].Value, rec.Value)
		bh.Release()
	})

	t.Run("size-mismatch", func(t *testing.T) {
		r := openBlobFile(t, fs, 1, fileSize, FileReaderOptions{})
		defer r.Close()
		// A handle that starts at a record boundary but spans into the next
		// record fails verification.
		_, _, err := r.Get(Handle{Offset: handles[0].Offset, Size: handles[0].Size + handles[1].Size})
		require.True(t, base.IsCorruptionError(err))
	})
}

func TestIterator(t *testing.T) {
	for _, codec := range []Compression{NoCompression, SnappyCompression} {
		t.Run(codec.String(), func(t *testing.T) {
			fs := vfs.NewMem()
			records := testRecords(25)
			handles, fileSize := buildBlobFile(t, fs, 1,
				FileWriterOptions{Compression: codec}, records)

			r := openBlobFile(t, fs, 1, fileSize, FileReaderOptions{})
			it := NewIterator(MakePrefetcher(r, func() { _ = r.Close() }))
			defer it.Close()
			i := 0
			for it.Next() {
				require.Equal(t, records[i].Key, it.Record().Key)
				require.Equal(t, records[i].Value, it.Record().Value)
				require.Equal(t, handles[i], it.Handle())
				i++
			}
			require.NoError(t, it.Err())
			require.Equal(t, len(records), i)
		})
	}
}

func TestIteratorEmptyFile(t *testing.T) {
	fs := vfs.NewMem()
	_, fileSize := buildBlobFile(t, fs, 1, FileWriterOptions{}, nil)
	r := openBlobFile(t, fs, 1, fileSize, FileReaderOptions{})
	it := NewIterator(MakePrefetcher(r, func() { _ = r.Close() }))
	defer it.Close()
	require.False(t, it.Next())
	require.NoError(t, it.Err())
}

func TestWriterStoresIncompressibleRaw(t *testing.T) {
	fs := vfs.NewMem()
	// A one-byte value cannot shrink under any codec; the record must carry
	// the raw bytes with the no-compression codec.
	records := []Record{{Key: []byte("k"), Value: []byte("x")}}
	handles, fileSize := buildBlobFile(t, fs, 1,
		FileWriterOptions{Compression: SnappyCompression}, records)

	r := openBlobFile(t, fs, 1, fileSize, FileReaderOptions{})
	defer r.Close()
	raw := make([]byte, handles[0].Size)
	_, err := readFull(r.file, 1, raw, int64(handles[0].Offset))
	require.NoError(t, err)
	hdr, _, err := decodeRecordHeader(raw)
	require.NoError(t, err)
	require.Equal(t, compression.None, hdr.codec)

	rec, bh, err := r.Get(handles[0])
	require.NoError(t, err)
	require.Equal(t, "x", string(rec.Value))
	bh.Release()
}
