// Copyright 2026 The BlobDB Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

package base

import (
	"fmt"

	"github.com/cockroachdb/redact"
)

// SeqNum is an LSM sequence number. Sequence numbers are assigned by the host
// engine; this layer only compares them.
type SeqNum uint64

// SeqNumMax is the largest valid sequence number.
const SeqNumMax = SeqNum(1<<56 - 1)

// String returns a string representation of the sequence number.
func (s SeqNum) String() string { return fmt.Sprintf("%d", uint64(s)) }

// SafeFormat implements redact.SafeFormatter.
func (s SeqNum) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("%d", redact.SafeUint(s))
}
