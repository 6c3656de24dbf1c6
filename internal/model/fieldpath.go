// Package model defines the typed schema annotations that describe a
// privacy-request-reachable dataset: fields, collections, datasets, and
// the policies/requests that act on them.
package model

import "strings"

// FieldPath identifies a possibly-nested leaf inside a flat Collection by
// an ordered sequence of name levels. Two FieldPaths are equal iff their
// level sequences are equal.
type FieldPath struct {
	levels []string
}

// NewFieldPath builds a FieldPath from one or more name levels.
func NewFieldPath(levels ...string) FieldPath {
	cp := make([]string, len(levels))
	copy(cp, levels)
	return FieldPath{levels: cp}
}

// ParseFieldPath splits a dotted string path into a FieldPath.
func ParseFieldPath(stringPath string) FieldPath {
	return NewFieldPath(strings.Split(stringPath, ".")...)
}

// Levels returns the ordered name levels of the path.
func (p FieldPath) Levels() []string {
	out := make([]string, len(p.levels))
	copy(out, p.levels)
	return out
}

// LastLevel returns the final level name, or "" for an empty path.
// SQL query-config formatting only ever projects on this last level;
// nested column projection is explicitly not supported.
func (p FieldPath) LastLevel() string {
	if len(p.levels) == 0 {
		return ""
	}
	return p.levels[len(p.levels)-1]
}

// StringPath joins the levels with dots.
func (p FieldPath) StringPath() string {
	return strings.Join(p.levels, ".")
}

// Equal reports whether two FieldPaths have the same level sequence.
func (p FieldPath) Equal(other FieldPath) bool {
	if len(p.levels) != len(other.levels) {
		return false
	}
	for i, l := range p.levels {
		if l != other.levels[i] {
			return false
		}
	}
	return true
}

// IsZero reports whether the path has no levels.
func (p FieldPath) IsZero() bool {
	return len(p.levels) == 0
}
