package reorg

import (
	"io/fs"
	"os"

	"reshard/internal/fileutil"
)

// FileSystem is the set of mutating and probing calls a run makes. Tests
// substitute implementations that fail on demand.
type FileSystem interface {
	MkdirAll(path string, perm fs.FileMode) error
	Rename(oldpath, newpath string) error
	Remove(path string) error
	ReadDir(path string) ([]fs.DirEntry, error)
	Lstat(path string) (fs.FileInfo, error)
}

// OSFileSystem performs real filesystem operations.
type OSFileSystem struct{}

func (OSFileSystem) MkdirAll(path string, perm fs.FileMode) error { return os.MkdirAll(path, perm) }

// Rename falls back to a verified copy when the target is on another filesystem.
func (OSFileSystem) Rename(oldpath, newpath string) error { return fileutil.Move(oldpath, newpath) }

func (OSFileSystem) Remove(path string) error { return os.Remove(path) }

func (OSFileSystem) ReadDir(path string) ([]fs.DirEntry, error) { return os.ReadDir(path) }

func (OSFileSystem) Lstat(path string) (fs.FileInfo, error) { return os.Lstat(path) }
