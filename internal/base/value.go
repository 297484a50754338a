// Copyright 2026 The BlobDB Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

package base

// ValueKind describes how the host engine stores the value of a key: either
// inline, or as a blob index pointing into a blob file.
type ValueKind uint8

const (
	// ValueKindValue is a plain inline value.
	ValueKindValue ValueKind = iota
	// ValueKindBlobIndex is an encoded blob index (see blobfile.BlobIndex).
	ValueKindBlobIndex
)

// String implements fmt.Stringer.
func (k ValueKind) String() string {
	switch k {
	case ValueKindValue:
		return "value"
	case ValueKindBlobIndex:
		return "blob-index"
	default:
		return "unknown"
	}
}
