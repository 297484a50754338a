// Copyright 2026 The BlobDB Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

package vfs

import (
	"io"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/errors/oserror"
)

// MemFS is an in-memory FS implementation. It is safe for concurrent use by
// multiple goroutines. Directories are implicit: any path component prefix of
// an existing file is treated as a directory.
type MemFS struct {
	mu    sync.Mutex
	files map[string]*memFileData
}

var _ FS = (*MemFS)(nil)

// NewMem returns a new in-memory FS.
func NewMem() *MemFS {
	return &MemFS{files: make(map[string]*memFileData)}
}

// memFileData is the shared state of all open handles on one file.
type memFileData struct {
	name string

	mu   sync.Mutex
	data []byte
}

func (fs *MemFS) normalize(name string) string {
	return path.Clean(strings.ReplaceAll(name, string(os.PathSeparator), "/"))
}

// Create implements FS.Create.
func (fs *MemFS) Create(name string) (File, error) {
	name = fs.normalize(name)
	fs.mu.Lock()
	defer fs.mu.Unlock()
	d := &memFileData{name: name}
	fs.files[name] = d
	return &memFile{d: d, write: true}, nil
}

// Open implements FS.Open.
func (fs *MemFS) Open(name string) (File, error) {
	name = fs.normalize(name)
	fs.mu.Lock()
	defer fs.mu.Unlock()
	d, ok := fs.files[name]
	if !ok {
		return nil, errors.Mark(errors.Newf("open %s", name), oserror.ErrNotExist)
	}
	return &memFile{d: d}, nil
}

// Remove implements FS.Remove.
func (fs *MemFS) Remove(name string) error {
	name = fs.normalize(name)
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if _, ok := fs.files[name]; !ok {
		return errors.Mark(errors.Newf("remove %s", name), oserror.ErrNotExist)
	}
	delete(fs.files, name)
	return nil
}

// MkdirAll implements FS.MkdirAll. Directories are implicit in MemFS, so this
// is a no-op.
func (fs *MemFS) MkdirAll(dir string, perm os.FileMode) error { return nil }

// List implements FS.List.
func (fs *MemFS) List(dir string) ([]string, error) {
	dir = fs.normalize(dir)
	fs.mu.Lock()
	defer fs.mu.Unlock()
	names := make(map[string]struct{})
	prefix := dir + "/"
	if dir == "." || dir == "/" {
		prefix = ""
	}
	for name := range fs.files {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		rest := name[len(prefix):]
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			rest = rest[:i]
		}
		names[rest] = struct{}{}
	}
	ret := make([]string, 0, len(names))
	for name := range names {
		ret = append(ret, name)
	}
	sort.Strings(ret)
	return ret, nil
}

// Stat implements FS.Stat.
func (fs *MemFS) Stat(name string) (os.FileInfo, error) {
	name = fs.normalize(name)
	fs.mu.Lock()
	defer fs.mu.Unlock()
	d, ok := fs.files[name]
	if !ok {
		return nil, errors.Mark(errors.Newf("stat %s", name), oserror.ErrNotExist)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return &memFileInfo{name: path.Base(name), size: int64(len(d.data))}, nil
}

// PathJoin implements FS.PathJoin.
func (fs *MemFS) PathJoin(elem ...string) string { return path.Join(elem...) }

// memFile is a single open handle on a MemFS file.
type memFile struct {
	d     *memFileData
	write bool
}

var _ File = (*memFile)(nil)

func (f *memFile) Close() error { return nil }

func (f *memFile) ReadAt(p []byte, off int64) (int, error) {
	f.d.mu.Lock()
	defer f.d.mu.Unlock()
	if off >= int64(len(f.d.data)) {
		return 0, io.EOF
	}
	n := copy(p, f.d.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (f *memFile) Write(p []byte) (int, error) {
	if !f.write {
		return 0, errors.New("vfs: file was not created for writing")
	}
	f.d.mu.Lock()
	defer f.d.mu.Unlock()
	f.d.data = append(f.d.data, p...)
	return len(p), nil
}

func (f *memFile) Stat() (os.FileInfo, error) {
	f.d.mu.Lock()
	defer f.d.mu.Unlock()
	return &memFileInfo{name: path.Base(f.d.name), size: int64(len(f.d.data))}, nil
}

func (f *memFile) Sync() error { return nil }

// memFileInfo implements os.FileInfo for a MemFS file.
type memFileInfo struct {
	name string
	size int64
}

func (i *memFileInfo) Name() string       { return i.name }
func (i *memFileInfo) Size() int64        { return i.size }
func (i *memFileInfo) Mode() os.FileMode  { return 0644 }
func (i *memFileInfo) ModTime() time.Time { return time.Time{} }
func (i *memFileInfo) IsDir() bool        { return false }
func (i *memFileInfo) Sys() interface{}   { return nil }
