package shard

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// SegmentLen is the number of filename characters consumed per directory level.
const SegmentLen = 2

// ErrInvalidDepth indicates a depth below one.
var ErrInvalidDepth = errors.New("depth must be a positive integer")

// Spec describes how deep files are nested.
type Spec struct {
	Depth int
}

// New returns a validated Spec.
func New(depth int) (Spec, error) {
	spec := Spec{Depth: depth}
	if err := spec.Validate(); err != nil {
		return Spec{}, err
	}
	return spec, nil
}

// Validate reports whether s can classify files.
func (s Spec) Validate() error {
	if s.Depth < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidDepth, s.Depth)
	}
	return nil
}

// MinNameLen returns the shortest filename, in characters, s can classify.
func (s Spec) MinNameLen() int {
	return SegmentLen * s.Depth
}

// String renders the depth the way log lines refer to it ("4-deep").
func (s Spec) String() string {
	return fmt.Sprintf("%d-deep", s.Depth)
}

// Segments returns the expected directory segments for filename. The second
// return value is false when the name is too short for the requested depth.
// Lengths count characters, not bytes, and case is preserved.
func Segments(filename string, depth int) ([]string, bool) {
	if depth < 1 || utf8.RuneCountInString(filename) < SegmentLen*depth {
		return nil, false
	}
	segments := make([]string, depth)
	rest := filename
	for i := range depth {
		end := 0
		for range SegmentLen {
			_, size := utf8.DecodeRuneInString(rest[end:])
			end += size
		}
		segments[i] = rest[:end]
		rest = rest[end:]
	}
	return segments, true
}

// Segments is the Spec-bound form of the package-level Segments.
func (s Spec) Segments(filename string) ([]string, bool) {
	return Segments(filename, s.Depth)
}

// RelDir joins segments with the platform separator. An empty slice yields ".".
func RelDir(segments []string) string {
	if len(segments) == 0 {
		return "."
	}
	return filepath.Join(segments...)
}

// SplitRelDir breaks a directory path relative to the root into segments.
// The root itself ("" or ".") has no segments.
func SplitRelDir(rel string) []string {
	rel = filepath.Clean(rel)
	if rel == "." || rel == string(filepath.Separator) {
		return nil
	}
	return strings.Split(filepath.ToSlash(rel), "/")
}

// SameDir compares two segment chains ignoring case.
func SameDir(current, expected []string) bool {
	if len(current) != len(expected) {
		return false
	}
	fold := cases.Fold()
	for i := range current {
		if fold.String(current[i]) != fold.String(expected[i]) {
			return false
		}
	}
	return true
}

// HasPrefix reports whether dir lies at or below prefix, ignoring case.
func HasPrefix(dir, prefix []string) bool {
	if len(dir) < len(prefix) {
		return false
	}
	return SameDir(dir[:len(prefix)], prefix)
}
