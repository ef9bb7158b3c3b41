package shard

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidMode indicates a mode that is neither a preset nor a positive integer.
var ErrInvalidMode = errors.New("invalid depth mode")

// Preset names a depth convention used by an archive tool.
type Preset struct {
	Depth int
	Names []string
}

var presets = []Preset{
	{Depth: 2, Names: []string{"rvx", "romvaultx", "romroot"}},
	{Depth: 4, Names: []string{"romba", "depot"}},
}

// Presets returns the named depth conventions.
func Presets() []Preset {
	out := make([]Preset, len(presets))
	for i, p := range presets {
		out[i] = Preset{Depth: p.Depth, Names: append([]string(nil), p.Names...)}
	}
	return out
}

// ParseMode resolves a preset name or positive integer literal into a depth.
func ParseMode(mode string) (int, error) {
	normalized := strings.ToLower(strings.TrimSpace(mode))
	if normalized == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidMode)
	}
	for _, p := range presets {
		for _, name := range p.Names {
			if normalized == name {
				return p.Depth, nil
			}
		}
	}
	depth, err := strconv.Atoi(normalized)
	if err != nil || depth < 1 {
		return 0, fmt.Errorf("%w: %s is not a valid depth", ErrInvalidMode, mode)
	}
	return depth, nil
}

// ParseSpec is ParseMode followed by New.
func ParseSpec(mode string) (Spec, error) {
	depth, err := ParseMode(mode)
	if err != nil {
		return Spec{}, err
	}
	return New(depth)
}
