package reorg_test

import (
	"errors"
	"io/fs"
	"path/filepath"
	"sync"

	"reshard/internal/reorg"
)

var errInjected = errors.New("injected failure")

// faultFS wraps the OS filesystem, counts calls, and fails the operations
// whose target base name is listed for that operation.
type faultFS struct {
	reorg.OSFileSystem

	mu         sync.Mutex
	calls      map[string]int
	failMkdir  map[string]bool
	failRename map[string]bool
	failRemove map[string]bool
}

func newFaultFS() *faultFS {
	return &faultFS{
		calls:      map[string]int{},
		failMkdir:  map[string]bool{},
		failRename: map[string]bool{},
		failRemove: map[string]bool{},
	}
}

func (f *faultFS) count(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
}

func (f *faultFS) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *faultFS) Mutations() int {
	return f.Calls("mkdir") + f.Calls("rename") + f.Calls("remove")
}

func (f *faultFS) MkdirAll(path string, perm fs.FileMode) error {
	f.count("mkdir")
	if f.failMkdir[filepath.Base(path)] {
		return errInjected
	}
	return f.OSFileSystem.MkdirAll(path, perm)
}

func (f *faultFS) Rename(oldpath, newpath string) error {
	f.count("rename")
	if f.failRename[filepath.Base(oldpath)] {
		return errInjected
	}
	return f.OSFileSystem.Rename(oldpath, newpath)
}

func (f *faultFS) Remove(path string) error {
	f.count("remove")
	if f.failRemove[filepath.Base(path)] {
		return errInjected
	}
	return f.OSFileSystem.Remove(path)
}

func (f *faultFS) ReadDir(path string) ([]fs.DirEntry, error) {
	f.count("readdir")
	return f.OSFileSystem.ReadDir(path)
}
