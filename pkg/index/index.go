// Package index prunes the regions that can possibly contain a point before
// the exact polygon test runs. Two implementations are provided: a uniform
// grid sized from the entries themselves and an R-tree.
package index

import (
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/1F47E/geo-region-index/pkg/models"
)

// Kind selects the index implementation.
type Kind string

const (
	KindGrid  Kind = "grid"
	KindRTree Kind = "rtree"
)

// ErrUnknownKind is returned by ParseKind for unsupported names.
var ErrUnknownKind = eris.New("index: unknown kind")

// ParseKind parses an index kind. An empty string selects the grid.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindGrid, "":
		return KindGrid, nil
	case KindRTree:
		return KindRTree, nil
	default:
		return "", eris.Wrapf(ErrUnknownKind, "%q", s)
	}
}

// Entry is one indexed region: its code and bounding box.
type Entry struct {
	Code   string
	Bounds models.BoundingBox
}

// Index returns the codes whose bounding box contains a point.
// Implementations are immutable after construction and safe for concurrent
// use.
type Index interface {
	// Candidates returns the matching codes in ascending order, or nil.
	// Box edges are inclusive.
	Candidates(lat, lon float64) []string
	// Len returns the number of indexed entries.
	Len() int
}

// New builds an index of the given kind over entries.
func New(kind Kind, entries []Entry) (Index, error) {
	switch kind {
	case KindGrid, "":
		return NewGrid(entries), nil
	case KindRTree:
		return NewRTree(entries), nil
	default:
		return nil, eris.Wrapf(ErrUnknownKind, "%q", string(kind))
	}
}

// sortedEntries copies entries and orders them by code so that candidate
// lists come out sorted without a per-query sort.
func sortedEntries(entries []Entry) []Entry {
	out := make([]Entry, len(entries))
	copy(out, entries)
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func extentOf(entries []Entry) models.BoundingBox {
	if len(entries) == 0 {
		return models.BoundingBox{}
	}
	ext := entries[0].Bounds
	for _, e := range entries[1:] {
		ext = ext.Union(e.Bounds)
	}
	return ext
}
