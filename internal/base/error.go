// Copyright 2026 The BlobDB Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

package base

import (
	"github.com/cockroachdb/errors"
)

// ErrNotFound means that a lookup did not find the requested key or file.
var ErrNotFound = errors.New("blobdb: not found")

// ErrCorruption is a marker to indicate that data in a blob file or a blob
// index isn't in the expected format.
var ErrCorruption = errors.New("blobdb: corruption")

// ErrNotSupported is a marker for operations that callers may legally attempt
// but that this layer refuses to carry out.
var ErrNotSupported = errors.New("blobdb: not supported")

// CorruptionErrorf formats an error with the given format and arguments and
// marks it as an ErrCorruption.
func CorruptionErrorf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrCorruption)
}

// MarkCorruptionError marks the given error as a corruption error.
func MarkCorruptionError(err error) error {
	if errors.Is(err, ErrCorruption) {
		return err
	}
	return errors.Mark(err, ErrCorruption)
}

// IsCorruptionError returns true if the given error indicates corruption.
func IsCorruptionError(err error) bool {
	return errors.Is(err, ErrCorruption)
}

// NotSupportedErrorf formats an error with the given format and arguments and
// marks it as an ErrNotSupported.
func NotSupportedErrorf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrNotSupported)
}

// IsNotSupportedError returns true if the given error indicates an
// unsupported operation.
func IsNotSupportedError(err error) bool {
	return errors.Is(err, ErrNotSupported)
}
