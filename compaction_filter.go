// Copyright 2026 The BlobDB Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

package blobdb

import (
	"github.com/blobdb/blobdb/blobfile"
	"github.com/blobdb/blobdb/internal/base"
)

// Decision is a compaction filter's verdict on one entry.
type Decision int8

const (
	// DecisionKeep keeps the entry unchanged.
	DecisionKeep Decision = iota
	// DecisionRemove drops the entry.
	DecisionRemove
	// DecisionChangeValue replaces the entry's value with the filter's new
	// value.
	DecisionChangeValue
	// DecisionRemoveAndSkipUntil drops the entry and every following entry
	// up to (exclusive) the filter's skip-until key.
	DecisionRemoveAndSkipUntil
)

// CompactionFilter lets users drop or rewrite entries during compaction.
// Implementations see the logical value of every entry: blob-indexed values
// are resolved to their record before the filter runs.
type CompactionFilter interface {
	// Name identifies the filter.
	Name() string

	// Filter judges one entry. newValue is consulted only for
	// DecisionChangeValue; skipUntil only for DecisionRemoveAndSkipUntil.
	Filter(level int, key []byte, valueKind base.ValueKind, value []byte) (
		decision Decision, newValue []byte, skipUntil []byte)
}

// CompactionFilterFactory creates one CompactionFilter per compaction.
type CompactionFilterFactory interface {
	// Name identifies the factory.
	Name() string

	// CreateCompactionFilter returns a filter for one compaction in the
	// given column family.
	CreateCompactionFilter(cfID uint32) CompactionFilter
}

// BlobCompactionFilter adapts a user CompactionFilter to blob-indexed
// values: it resolves each blob index to its logical value before invoking
// the user filter, and enforces that blob-index entries are never rewritten
// as inline values.
type BlobCompactionFilter struct {
	name              string
	storage           *BlobStorage
	userFilter        CompactionFilter
	onBackgroundError func(error)
}

var _ CompactionFilter = (*BlobCompactionFilter)(nil)

// NewBlobCompactionFilter wraps userFilter. storage may be nil when the
// column family has no blob storage; blob-index entries are then kept
// untouched. onBackgroundError, if non-nil, receives errors that compaction
// itself must not fail on.
func NewBlobCompactionFilter(
	storage *BlobStorage, userFilter CompactionFilter, onBackgroundError func(error),
) *BlobCompactionFilter {
	return &BlobCompactionFilter{
		// The adapter owns its display name; it is built once here.
		name:              "blobdb.BlobCompactionFilter." + userFilter.Name(),
		storage:           storage,
		userFilter:        userFilter,
		onBackgroundError: onBackgroundError,
	}
}

// Name implements CompactionFilter.
func (f *BlobCompactionFilter) Name() string { return f.name }

// Filter implements CompactionFilter.
func (f *BlobCompactionFilter) Filter(
	level int, key []byte, valueKind base.ValueKind, value []byte,
) (Decision, []byte, []byte) {
	if valueKind != base.ValueKindBlobIndex {
		return f.userFilter.Filter(level, key, valueKind, value)
	}

	index, err := blobfile.DecodeBlobIndex(value)
	if err != nil {
		// Unable to decode the blob index. Keep the entry and let the
		// administrator know.
		f.reportBackgroundError(err)
		return DecisionKeep, nil, nil
	}
	if index.IsDeletionMarker() {
		return DecisionKeep, nil, nil
	}
	if f.storage == nil {
		// The column family has no blob storage; treat the value as unknown.
		return DecisionKeep, nil, nil
	}

	record, bh, err := f.storage.Get(index)
	if err != nil {
		if base.IsCorruptionError(err) {
			// A stale or dangling index. Keep it.
			return DecisionKeep, nil, nil
		}
		f.reportBackgroundError(err)
		return DecisionKeep, nil, nil
	}
	defer bh.Release()

	decision, newValue, skipUntil := f.userFilter.Filter(
		level, key, base.ValueKindValue, record.Value)
	if decision == DecisionChangeValue {
		// The entry's stored kind is still blob-index; swapping in an inline
		// value here would corrupt it.
		f.reportBackgroundError(base.NotSupportedErrorf(
			"blobdb: compaction filter %s attempted to change the value of a blob-indexed entry",
			f.userFilter.Name()))
		return DecisionKeep, nil, nil
	}
	return decision, newValue, skipUntil
}

func (f *BlobCompactionFilter) reportBackgroundError(err error) {
	if f.onBackgroundError != nil {
		f.onBackgroundError(err)
	}
}

// BlobCompactionFilterFactory wraps a user filter or filter factory,
// producing BlobCompactionFilters bound to the column family's blob
// storage.
type BlobCompactionFilterFactory struct {
	name              string
	userFilter        CompactionFilter
	userFactory       CompactionFilterFactory
	storageFor        func(cfID uint32) *BlobStorage
	onBackgroundError func(error)
}

var _ CompactionFilterFactory = (*BlobCompactionFilterFactory)(nil)

// NewBlobCompactionFilterFactory wraps either a single user filter (shared
// by all compactions) or a user factory; exactly one of the two must be
// non-nil. storageFor resolves a column family to its blob storage and may
// return nil for column families without one.
func NewBlobCompactionFilterFactory(
	userFilter CompactionFilter,
	userFactory CompactionFilterFactory,
	storageFor func(cfID uint32) *BlobStorage,
	onBackgroundError func(error),
) *BlobCompactionFilterFactory {
	name := "blobdb.BlobCompactionFilterFactory."
	switch {
	case userFilter != nil:
		name += userFilter.Name()
	case userFactory != nil:
		name += userFactory.Name()
	default:
		name += "unknown"
	}
	return &BlobCompactionFilterFactory{
		name:              name,
		userFilter:        userFilter,
		userFactory:       userFactory,
		storageFor:        storageFor,
		onBackgroundError: onBackgroundError,
	}
}

// Name implements CompactionFilterFactory.
func (f *BlobCompactionFilterFactory) Name() string { return f.name }

// CreateCompactionFilter implements CompactionFilterFactory.
func (f *BlobCompactionFilterFactory) CreateCompactionFilter(cfID uint32) CompactionFilter {
	var storage *BlobStorage
	if f.storageFor != nil {
		storage = f.storageFor(cfID)
	}
	userFilter := f.userFilter
	if userFilter == nil {
		userFilter = f.userFactory.CreateCompactionFilter(cfID)
	}
	return NewBlobCompactionFilter(storage, userFilter, f.onBackgroundError)
}
