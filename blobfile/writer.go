// Copyright 2026 The BlobDB Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

package blobfile

import (
	"github.com/blobdb/blobdb/internal/base"
	"github.com/blobdb/blobdb/internal/compression"
	"github.com/blobdb/blobdb/vfs"
	"github.com/cockroachdb/errors"
)

var errWriterClosed = errors.New("blobdb: blob file writer closed")

// FileWriterOptions configures a FileWriter.
type FileWriterOptions struct {
	// Compression selects the codec applied to record values. Defaults to
	// Snappy.
	Compression compression.Algorithm
	// Dictionary is an optional compression dictionary. Setting it requires
	// Compression == Zstd; the dictionary is written to the file so readers
	// can decompress.
	Dictionary []byte
}

func (o *FileWriterOptions) ensureDefaults() {
	if o.Compression == compression.None && o.Dictionary == nil {
		o.Compression = compression.Snappy
	}
}

// FileWriterStats aggregates statistics about a written blob file.
type FileWriterStats struct {
	RecordCount            uint64
	UncompressedValueBytes uint64
	FileLen                uint64
}

// FileWriter writes a blob file record by record. Records are appended in
// Add order; the dictionary block (if any) and the footer are written by
// Close.
type FileWriter struct {
	fileNum    base.FileNum
	file       vfs.File
	err        error
	off        uint64
	codec      compression.Algorithm
	compressor compression.Compressor
	dict       []byte
	scratch    []byte
	stats      FileWriterStats
}

// NewFileWriter creates a FileWriter writing to file. The writer takes
// ownership of file; Close syncs and closes it.
func NewFileWriter(fn base.FileNum, file vfs.File, opts FileWriterOptions) (*FileWriter, error) {
	opts.ensureDefaults()
	if len(opts.Dictionary) > 0 && opts.Compression != compression.Zstd {
		return nil, errors.Newf("blobdb: compression dictionary requires zstd, got %s", opts.Compression)
	}
	c, err := compression.MakeCompressor(opts.Compression, opts.Dictionary)
	if err != nil {
		return nil, err
	}
	w := &FileWriter{
		fileNum:    fn,
		file:       file,
		codec:      opts.Compression,
		compressor: c,
		dict:       opts.Dictionary,
	}
	h := Header{Format: FileFormatV2}
	if len(w.dict) > 0 {
		h.Flags |= flagHasUncompressionDictionary
	}
	var buf [HeaderMaxLength]byte
	n := h.encode(buf[:])
	if _, err := file.Write(buf[:n]); err != nil {
		w.compressor.Close()
		return nil, errors.Wrapf(err, "blobdb: writing blob file %s", fn)
	}
	w.off = uint64(n)
	return w, nil
}

// AddRecord appends a record and returns a handle to it. The value is stored
// compressed only when compression actually shrinks it; the record header
// names the codec used.
func (w *FileWriter) AddRecord(key, value []byte) (Handle, error) {
	if w.err != nil {
		return Handle{}, w.err
	}
	codec := compression.None
	stored := value
	if w.codec != compression.None {
		w.scratch = w.compressor.Compress(w.scratch[:0], value)
		if len(w.scratch) < len(value) {
			codec = w.codec
			stored = w.scratch
		}
	}
	rec := encodeRecord(nil, codec, key, stored)
	if _, err := w.file.Write(rec); err != nil {
		w.err = errors.Wrapf(err, "blobdb: writing blob file %s", w.fileNum)
		return Handle{}, w.err
	}
	h := Handle{Offset: w.off, Size: uint64(len(rec))}
	w.off += uint64(len(rec))
	w.stats.RecordCount++
	w.stats.UncompressedValueBytes += uint64(len(value))
	return h, nil
}

// EstimatedSize returns the file size if the writer were closed now.
func (w *FileWriter) EstimatedSize() uint64 {
	return w.off + uint64(len(w.dict)) + FooterLength
}

// Close writes the dictionary block (if any) and the footer, syncs, and
// closes the file.
func (w *FileWriter) Close() (FileWriterStats, error) {
	if w.err != nil {
		if errors.Is(w.err, errWriterClosed) {
			return FileWriterStats{}, w.err
		}
		err := w.err
		w.abort()
		return FileWriterStats{}, err
	}

	var footer Footer
	if len(w.dict) > 0 {
		if _, err := w.file.Write(w.dict); err != nil {
			w.abort()
			return FileWriterStats{}, errors.Wrapf(err, "blobdb: writing blob file %s", w.fileNum)
		}
		footer.DictHandle = BlockHandle{Offset: w.off, Size: uint64(len(w.dict))}
		w.off += uint64(len(w.dict))
	}

	var buf [FooterLength]byte
	footer.encode(buf[:])
	if _, err := w.file.Write(buf[:]); err != nil {
		w.abort()
		return FileWriterStats{}, errors.Wrapf(err, "blobdb: writing blob file %s", w.fileNum)
	}
	w.off += FooterLength

	if err := w.file.Sync(); err != nil {
		w.abort()
		return FileWriterStats{}, errors.Wrapf(err, "blobdb: syncing blob file %s", w.fileNum)
	}
	if err := w.file.Close(); err != nil {
		w.file = nil
		w.err = errWriterClosed
		w.compressor.Close()
		return FileWriterStats{}, errors.Wrapf(err, "blobdb: closing blob file %s", w.fileNum)
	}
	w.file = nil
	w.err = errWriterClosed
	w.compressor.Close()
	w.stats.FileLen = w.off
	return w.stats, nil
}

func (w *FileWriter) abort() {
	if w.file != nil {
		_ = w.file.Close()
		w.file = nil
	}
	w.compressor.Close()
	w.err = errWriterClosed
}
