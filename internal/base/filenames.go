// Copyright 2026 The BlobDB Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

package base

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cockroachdb/redact"
)

// FileNum identifies a blob file. File numbers are allocated by the host
// engine and are unique within a database.
type FileNum uint64

// String returns a string representation of the file number.
func (fn FileNum) String() string { return fmt.Sprintf("%06d", uint64(fn)) }

// SafeFormat implements redact.SafeFormatter.
func (fn FileNum) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("%06d", redact.SafeUint(fn))
}

// BlobFilePath returns the path of the blob file with the given file number
// inside dirname.
func BlobFilePath(dirname string, fn FileNum) string {
	return filepath.Join(dirname, fmt.Sprintf("%06d.blob", uint64(fn)))
}

// ParseBlobFilePath parses the file number out of a blob file path. It
// returns false if the path does not name a blob file.
func ParseBlobFilePath(path string) (FileNum, bool) {
	base := filepath.Base(path)
	name, ok := strings.CutSuffix(base, ".blob")
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseUint(name, 10, 64)
	if err != nil {
		return 0, false
	}
	return FileNum(n), true
}
