// Copyright 2026 The BlobDB Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

//go:build !linux

package vfs

// Prefetch signals the OS (on supported platforms) to fetch the next size
// bytes in file after offset into cache. It is a no-op on this platform.
func Prefetch(file File, offset uint64, size uint64) error {
	return nil
}
