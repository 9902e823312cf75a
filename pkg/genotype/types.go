// Package genotype holds the sequence metadata, alignment and record types shared by
// every stage of the windowed classification pipeline.
package genotype

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
)

// Unlabeled is the genotype of a query sequence.
const Unlabeled = 0

var (
	// ErrUnequalLength is returned when alignment rows differ in length
	ErrUnequalLength = errors.New("alignment rows have unequal length")
	// ErrMissingMetadata is returned when an aligned id has no metadata entry
	ErrMissingMetadata = errors.New("sequence has no metadata entry")
	// ErrEmptyAlignment is returned for an alignment without rows or columns
	ErrEmptyAlignment = errors.New("alignment is empty")
	// ErrInvariant marks a value outside its mathematically valid range
	ErrInvariant = errors.New("internal invariant violated")
)

// Sequence is the metadata of one aligned sequence
type Sequence struct {
	ID       string `json:"id"`
	Genotype int    `json:"genotype"` // 1-8, Unlabeled for queries
	Subtype  string `json:"subtype"`  // empty when the subtype is unknown
}

// IsQuery reports whether the sequence carries no genotype label
func (s Sequence) IsQuery() bool {
	return s.Genotype == Unlabeled
}

// Group returns the genotype+subtype code, e.g. "1a", or "3" when the subtype is unknown
func (s Sequence) Group() string {
	if s.IsQuery() {
		return "query"
	}
	return strconv.Itoa(s.Genotype) + s.Subtype
}

// Metadata maps sequence ids to their labels
type Metadata map[string]Sequence

// Genotypes returns the distinct reference genotypes in ascending order
func (m Metadata) Genotypes() []int {
	seen := make(map[int]bool)
	for _, s := range m {
		if !s.IsQuery() {
			seen[s.Genotype] = true
		}
	}
	out := make([]int, 0, len(seen))
	for g := range seen {
		out = append(out, g)
	}
	sort.Ints(out)
	return out
}

// Span is a half-open coordinate range [Start, End) over the alignment
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of columns covered by the span
func (s Span) Len() int {
	return s.End - s.Start
}

// Mid returns the central column of the span
func (s Span) Mid() int {
	return s.Start + s.Len()/2
}

func (s Span) String() string {
	return fmt.Sprintf("%d-%d", s.Start, s.End)
}

// Alignment is an ordered set of equal-length aligned rows
type Alignment struct {
	IDs  []string
	Rows [][]byte
}

// Len returns the number of alignment columns
func (a *Alignment) Len() int {
	if len(a.Rows) == 0 {
		return 0
	}
	return len(a.Rows[0])
}

// Size returns the number of sequences
func (a *Alignment) Size() int {
	return len(a.IDs)
}

// Full returns the span covering the whole alignment
func (a *Alignment) Full() Span {
	return Span{Start: 0, End: a.Len()}
}

// Validate checks the input-shape invariants: non-empty, equal row lengths and a
// metadata entry for every id.
func (a *Alignment) Validate(meta Metadata) error {
	if len(a.Rows) == 0 || a.Len() == 0 {
		return ErrEmptyAlignment
	}
	if len(a.IDs) != len(a.Rows) {
		return fmt.Errorf("%d ids for %d rows: %w", len(a.IDs), len(a.Rows), ErrUnequalLength)
	}
	n := a.Len()
	for i, row := range a.Rows {
		if len(row) != n {
			return fmt.Errorf("%s has %d columns, expected %d: %w", a.IDs[i], len(row), n, ErrUnequalLength)
		}
		if _, ok := meta[a.IDs[i]]; !ok {
			return fmt.Errorf("%s: %w", a.IDs[i], ErrMissingMetadata)
		}
	}
	return nil
}

// Labels returns the metadata of every aligned row, in alignment order
func (a *Alignment) Labels(meta Metadata) []Sequence {
	out := make([]Sequence, len(a.IDs))
	for i, id := range a.IDs {
		out[i] = meta[id]
		out[i].ID = id
	}
	return out
}

// CheckUnit returns ErrInvariant unless 0 <= v <= 1
func CheckUnit(kind string, v float64) error {
	if !(v >= 0 && v <= 1) {
		return fmt.Errorf("%s %v outside [0,1]: %w", kind, v, ErrInvariant)
	}
	return nil
}
