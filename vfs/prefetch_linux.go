// Copyright 2026 The BlobDB Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

//go:build linux

package vfs

import (
	"golang.org/x/sys/unix"
)

// Prefetch signals the OS (on supported platforms) to fetch the next size
// bytes in file after offset into cache. Any subsequent reads in that range
// will not issue disk IO.
func Prefetch(file File, offset uint64, size uint64) error {
	type fd interface {
		Fd() uintptr
	}
	if f, ok := file.(fd); ok {
		return unix.Fadvise(int(f.Fd()), int64(offset), int64(size), unix.FADV_WILLNEED)
	}
	return nil
}
