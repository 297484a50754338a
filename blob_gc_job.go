// Copyright 2026 The BlobDB Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

package blobdb

import (
	"time"

	"github.com/blobdb/blobdb/blobfile"
	"github.com/blobdb/blobdb/internal/base"
	"github.com/cockroachdb/crlib/crtime"
	"github.com/cockroachdb/tokenbucket"
)

// GCJob rewrites one GC round's input files. Live records are copied into
// fresh output files; for each copied record the job emits a MergeBlobIndex
// operand through the engine. Records whose referencing LSM entry has moved
// on are dropped. Inputs are marked obsolete at the engine's latest sequence
// once the round commits.
//
// The job never mutates LSM state directly: if a foreground writer races a
// relocation, the merge operator discards the stale operand.
type GCJob struct {
	gc        *BlobGC
	storage   *BlobStorage
	engine    Engine
	opts      *Options
	cfOptions CFOptions
	metrics   *Metrics

	paced   bool
	limiter tokenbucket.TokenBucket

	// Current output file state.
	outFileNum base.FileNum
	outWriter  *blobfile.FileWriter
	// pending accumulates relocations for the current output file. They are
	// handed to the engine only after the output is synced and registered,
	// so a reader applying the merge can always resolve the new index.
	pending []pendingRelocation

	outputs []*BlobFileMeta

	bytesRead    uint64
	bytesWritten uint64
	discarded    uint64
}

type pendingRelocation struct {
	key   []byte
	index blobfile.MergeBlobIndex
}

// NewGCJob returns a job for one picked GC round.
func NewGCJob(
	gc *BlobGC, storage *BlobStorage, engine Engine, opts *Options, cfOptions CFOptions,
) *GCJob {
	opts.EnsureDefaults()
	cfOptions.EnsureDefaults()
	j := &GCJob{
		gc:        gc,
		storage:   storage,
		engine:    engine,
		opts:      opts,
		cfOptions: cfOptions,
		metrics:   opts.Metrics,
	}
	if r := cfOptions.GCBytesPerSec; r > 0 {
		j.paced = true
		j.limiter.Init(tokenbucket.TokensPerSecond(r), tokenbucket.Tokens(r))
	}
	return j
}

// Outputs returns the metadata of the files the job wrote. Valid after Run
// returns nil.
func (j *GCJob) Outputs() []*BlobFileMeta { return j.outputs }

// Run executes the round. On success the inputs are obsolete and the
// outputs registered; on error the inputs are returned to FileStateNormal
// and the output file still being written when a record fails is removed.
// Outputs finished before the error stay registered, and their relocations
// have already been handed to the engine.
func (j *GCJob) Run() error {
	start := crtime.NowMono()

	inputs := j.gc.Inputs[:0]
	for _, meta := range j.gc.Inputs {
		if err := meta.StateTransit(FileEventGCBegin); err != nil {
			// The file raced away (another round, or obsolescence) since
			// picking. Leave it out of this round.
			j.opts.Logger.Infof("blobdb: skipping gc input %s: %v", meta.FileNum(), err)
			continue
		}
		inputs = append(inputs, meta)
	}
	if len(inputs) == 0 {
		return nil
	}

	err := j.rewrite(inputs)
	if err != nil {
		for _, meta := range inputs {
			_ = meta.StateTransit(FileEventGCCompleted)
		}
		j.engine.ReportBackgroundError(err)
		return err
	}

	obsoleteSeq := j.engine.LatestSequence()
	for _, meta := range inputs {
		j.storage.MarkFileObsolete(meta, obsoleteSeq)
	}
	j.storage.ComputeGCScore()

	j.metrics.GCBytesRead.Add(float64(j.bytesRead))
	j.metrics.GCBytesWritten.Add(float64(j.bytesWritten))
	j.metrics.GCBytesDiscarded.Add(float64(j.discarded))
	j.opts.Logger.Infof(
		"blobdb: gc rewrote %d input files into %d output files in %s (%d bytes read, %d written, %d discarded)",
		len(inputs), len(j.outputs), start.Elapsed(), j.bytesRead, j.bytesWritten, j.discarded)
	return nil
}

func (j *GCJob) rewrite(inputs []*BlobFileMeta) error {
	for _, meta := range inputs {
		if err := j.rewriteFile(meta); err != nil {
			j.abandonOutput()
			return err
		}
	}
	return j.finishOutput()
}

func (j *GCJob) rewriteFile(meta *BlobFileMeta) error {
	p, err := j.storage.NewPrefetcher(meta.FileNum())
	if err != nil {
		return err
	}
	it := blobfile.NewIterator(p)
	defer it.Close()

	for it.Next() {
		rec, handle := it.Record(), it.Handle()
		j.pace(handle.Size)
		j.bytesRead += handle.Size

		live, err := j.recordIsLive(rec.Key, meta.FileNum(), handle.Offset)
		if err != nil {
			return err
		}
		if !live {
			j.discarded += handle.Size
			continue
		}

		w, err := j.writer()
		if err != nil {
			return err
		}
		outHandle, err := w.AddRecord(rec.Key, rec.Value)
		if err != nil {
			return err
		}
		j.bytesWritten += outHandle.Size
		j.pending = append(j.pending, pendingRelocation{
			key: append([]byte(nil), rec.Key...),
			index: blobfile.MergeBlobIndex{
				BlobIndex: blobfile.BlobIndex{
					FileNum: j.outFileNum,
					Handle:  outHandle,
				},
				SourceFileNum: meta.FileNum(),
				SourceOffset:  handle.Offset,
			},
		})

		if w.EstimatedSize() >= j.cfOptions.BlobFileTargetSize {
			if err := j.finishOutput(); err != nil {
				return err
			}
		}
	}
	return it.Err()
}

// recordIsLive reports whether the LSM still points at (fileNum, offset) for
// key. Anything else — the key is gone, inline, or indexed elsewhere — means
// this record's bytes are garbage.
func (j *GCJob) recordIsLive(key []byte, fileNum base.FileNum, offset uint64) (bool, error) {
	index, ok, err := j.engine.GetBlobIndex(key)
	if err != nil {
		return false, err
	}
	return ok && index.FileNum == fileNum && index.Handle.Offset == offset, nil
}

// writer returns the current output writer, opening a fresh output file if
// needed.
func (j *GCJob) writer() (*blobfile.FileWriter, error) {
	if j.outWriter != nil {
		return j.outWriter, nil
	}
	fn := j.engine.NewBlobFileNum()
	f, err := j.opts.FS.Create(base.BlobFilePath(j.opts.Dirname, fn))
	if err != nil {
		return nil, err
	}
	w, err := blobfile.NewFileWriter(fn, f, blobfile.FileWriterOptions{
		Compression: j.cfOptions.BlobFileCompression,
	})
	if err != nil {
		return nil, err
	}
	j.outFileNum = fn
	j.outWriter = w
	return w, nil
}

// finishOutput closes and registers the current output file, then emits the
// relocations buffered against it.
func (j *GCJob) finishOutput() error {
	if j.outWriter == nil {
		return nil
	}
	stats, err := j.outWriter.Close()
	j.outWriter = nil
	if err != nil {
		return err
	}

	meta := NewBlobFileMeta(j.outFileNum, stats.FileLen)
	if err := meta.StateTransit(FileEventAddCompleted); err != nil {
		return err
	}
	j.storage.AddBlobFile(meta)
	j.outputs = append(j.outputs, meta)

	for _, rel := range j.pending {
		if err := j.engine.WriteMergeIndex(rel.key, rel.index); err != nil {
			return err
		}
	}
	j.pending = j.pending[:0]
	return nil
}

// abandonOutput drops the current output writer after an error and removes
// its partial file; no relocation referencing it was handed to the engine.
func (j *GCJob) abandonOutput() {
	if j.outWriter == nil {
		return
	}
	_, _ = j.outWriter.Close()
	j.outWriter = nil
	j.pending = j.pending[:0]
	_ = j.opts.FS.Remove(base.BlobFilePath(j.opts.Dirname, j.outFileNum))
}

func (j *GCJob) pace(n uint64) {
	if !j.paced {
		return
	}
	for {
		ok, d := j.limiter.TryToFulfill(tokenbucket.Tokens(n))
		if ok {
			return
		}
		time.Sleep(d)
	}
}
