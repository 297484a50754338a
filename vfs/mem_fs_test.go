// Copyright 2026 The BlobDB Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

package vfs

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemFSBasics(t *testing.T) {
	fs := NewMem()

	f, err := fs.Create("dir/a")
	require.NoError(t, err)
	_, err = f.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, f.Sync())
	require.NoError(t, f.Close())

	info, err := fs.Stat("dir/a")
	require.NoError(t, err)
	require.Equal(t, int64(5), info.Size())

	r, err := fs.Open("dir/a")
	require.NoError(t, err)
	buf := make([]byte, 3)
	n, err := r.ReadAt(buf, 2)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, "llo", string(buf))

	// Reads past the end return io.EOF.
	_, err = r.ReadAt(buf, 4)
	require.Equal(t, io.EOF, err)
	require.NoError(t, r.Close())

	names, err := fs.List("dir")
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, names)

	require.NoError(t, fs.Remove("dir/a"))
	_, err = fs.Open("dir/a")
	require.True(t, IsNotExist(err))
	require.Error(t, fs.Remove("dir/a"))
}
